package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// sanity check that the error codes are in the correct range

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		errCode  ErrorCode
		wantCode int
	}{
		{"internal_error", ErrCodeInternalError, 7005},
		{"malformed_request", ErrCodeMalformedRequest, 7006},
		{"rate_limit_exceeded", ErrCodeRateLimitExceeded, 7009},
		{"request_too_large", ErrCodeRequestTooLarge, 7010},
		{"unsupported_media_type", ErrCodeUnsupportedMediaType, 7011},
	}
	for _, tt := range tests {
		if int(tt.errCode) != tt.wantCode {
			t.Errorf("%s: got %d, want %d", tt.name, tt.errCode, tt.wantCode)
		}
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := WrapMalformedRequestError(cause, "invalid JSON body")

	var apiErr *Error
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrCodeMalformedRequest, apiErr.Code())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "invalid JSON body: unexpected end of JSON input", err.Error())

	assert.Equal(t, "request body too large", NewRequestTooLargeError("request body too large").Error())
}
