package storage

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestClassify_NetworkErrorIsTransient(t *testing.T) {
	err := classify("put k", &net.OpError{Op: "dial", Err: errors.New("connection refused")})
	assert.True(t, IsTransient(err))
}

func TestClassify_ThrottlingIsTransient(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "SlowDown", Message: "slow down"}
	assert.True(t, IsTransient(classify("put k", apiErr)))
}

func TestClassify_AuthErrorIsPermanent(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	err := classify("put k", apiErr)
	assert.False(t, IsTransient(err))
	assert.Error(t, err)
}

func TestClassify_MissingBucketIsPermanent(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "missing"}
	assert.False(t, IsTransient(classify("put k", apiErr)))
}

func TestClassify_NoSuchKeyIsNotFound(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	assert.ErrorIs(t, classify("presign k", apiErr), ErrNotFound)
}

func TestClampTTL(t *testing.T) {
	const maxTTL = time.Hour
	assert.Equal(t, maxTTL, clampTTL(0, maxTTL))
	assert.Equal(t, maxTTL, clampTTL(2*maxTTL, maxTTL))
	assert.Equal(t, maxTTL/2, clampTTL(maxTTL/2, maxTTL))
}
