package storage

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for expired, forged or mismatched tokens.
var ErrInvalidToken = errors.New("storage: invalid access token")

// TokenSigner issues HMAC-signed access tokens for the local backend,
// which has no native presigning. A token grants read access to exactly
// one key until its expiry.
type TokenSigner struct {
	secret []byte
}

type accessClaims struct {
	Key         string `json:"key"`
	ContentType string `json:"ct,omitempty"`
	Disposition string `json:"cd,omitempty"`
	jwtlib.RegisteredClaims
}

func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

// Sign issues a token for key. The response header overrides ride in
// the claims so the download endpoint can honor them without a lookup.
func (s *TokenSigner) Sign(key string, ttl time.Duration, opts PresignOptions) (string, error) {
	claims := accessClaims{
		Key:         key,
		ContentType: opts.ContentType,
		Disposition: opts.ContentDisposition,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the token signature and expiry and that it was issued
// for key, and returns the response header overrides it carries.
func (s *TokenSigner) Verify(tokenStr, key string) (PresignOptions, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &accessClaims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return PresignOptions{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || claims.Key != key {
		return PresignOptions{}, ErrInvalidToken
	}
	return PresignOptions{
		ContentDisposition: claims.Disposition,
		ContentType:        claims.ContentType,
	}, nil
}
