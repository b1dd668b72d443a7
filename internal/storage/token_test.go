package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := NewTokenSigner("test-secret")

	token, err := signer.Sign("reports/20250101/abc.docx", time.Minute, PresignOptions{})
	require.NoError(t, err)

	_, err = signer.Verify(token, "reports/20250101/abc.docx")
	assert.NoError(t, err)
}

func TestTokenSigner_CarriesResponseOptions(t *testing.T) {
	signer := NewTokenSigner("test-secret")

	want := PresignOptions{
		ContentDisposition: `attachment; filename="report.docx"`,
		ContentType:        "application/pdf",
	}
	token, err := signer.Sign("reports/20250101/abc.docx", time.Minute, want)
	require.NoError(t, err)

	got, err := signer.Verify(token, "reports/20250101/abc.docx")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTokenSigner_WrongKey(t *testing.T) {
	signer := NewTokenSigner("test-secret")

	token, err := signer.Sign("reports/20250101/abc.docx", time.Minute, PresignOptions{})
	require.NoError(t, err)

	_, err = signer.Verify(token, "reports/20250101/other.docx")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSigner_Expired(t *testing.T) {
	signer := NewTokenSigner("test-secret")

	token, err := signer.Sign("reports/20250101/abc.docx", -time.Minute, PresignOptions{})
	require.NoError(t, err)

	_, err = signer.Verify(token, "reports/20250101/abc.docx")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSigner_WrongSecret(t *testing.T) {
	token, err := NewTokenSigner("secret-a").Sign("k", time.Minute, PresignOptions{})
	require.NoError(t, err)

	_, err = NewTokenSigner("secret-b").Verify(token, "k")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
