package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError_DefaultsRetryableForTimeoutAndTransport(t *testing.T) {
	assert.True(t, NewError(ErrTimeout, "deadline").Retryable)
	assert.True(t, NewError(ErrTransport, "dial failed").Retryable)
}

func TestNewError_DefaultsNonRetryableForOtherCodes(t *testing.T) {
	for _, code := range []ErrorCode{ErrValidation, ErrRouting, ErrUnavailable, ErrBackend, ErrEmptyResponse, ErrAuth} {
		assert.False(t, NewError(code, "x").Retryable, "code %s should default to non-retryable", code)
	}
}

func TestBackendError_RetryableOn429And5xx(t *testing.T) {
	assert.True(t, BackendError("openai", "gpt-4o", 429, "rate limited").Retryable)
	assert.True(t, BackendError("openai", "gpt-4o", 500, "server error").Retryable)
	assert.True(t, BackendError("openai", "gpt-4o", 503, "unavailable").Retryable)
}

func TestBackendError_NotRetryableOnOther4xx(t *testing.T) {
	assert.False(t, BackendError("openai", "gpt-4o", 400, "bad request").Retryable)
	assert.False(t, BackendError("openai", "gpt-4o", 401, "unauthorized").Retryable)
	assert.False(t, BackendError("openai", "gpt-4o", 404, "not found").Retryable)
}

func TestBackendError_CarriesProviderModelAndStatus(t *testing.T) {
	e := BackendError("anthropic", "claude-3-5-sonnet", 500, "boom")
	assert.Equal(t, ErrBackend, e.Code)
	assert.Equal(t, "anthropic", e.Provider)
	assert.Equal(t, "claude-3-5-sonnet", e.Model)
	assert.Equal(t, 500, e.HTTPStatus)
}

func TestError_ErrorStringIncludesCauseWhenPresent(t *testing.T) {
	bare := NewError(ErrTimeout, "deadline exceeded")
	assert.Equal(t, "[TIMEOUT_ERROR] deadline exceeded", bare.Error())

	wrapped := NewError(ErrTransport, "dial failed").WithCause(errors.New("connection refused"))
	assert.Equal(t, "[TRANSPORT_ERROR] dial failed: connection refused", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := NewError(ErrBackend, "x").WithCause(cause)
	assert.Equal(t, cause, errors.Unwrap(e))
}

func TestError_WithProviderAndModel(t *testing.T) {
	e := NewError(ErrRouting, "no such model").WithProvider("openai").WithModel("gpt-4o")
	assert.Equal(t, "openai", e.Provider)
	assert.Equal(t, "gpt-4o", e.Model)
}

func TestIsRetryable_UnwrapsWrappedErrors(t *testing.T) {
	base := NewError(ErrTransport, "dial failed")
	wrapped := fmt.Errorf("query failed: %w", base)
	assert.True(t, IsRetryable(wrapped))
}

func TestIsRetryable_FalseForPlainErrors(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("not a types.Error")))
}

func TestIsRetryable_FalseForNonRetryableTypesError(t *testing.T) {
	assert.False(t, IsRetryable(NewError(ErrValidation, "bad input")))
}
