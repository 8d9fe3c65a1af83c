package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesTypeAndMessage(t *testing.T) {
	err := New(ErrorTypeConnection, "endpoint unreachable")
	assert.Equal(t, ErrorTypeConnection, err.Type)
	assert.Contains(t, err.Error(), "endpoint unreachable")
	assert.NotEmpty(t, err.Stack)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := Wrap(cause, ErrorTypeConnection, "broker connect failed")

	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "broker connect failed")
	assert.Contains(t, err.Error(), "dial tcp: refused")
}

func TestWrapKeepsOriginalStack(t *testing.T) {
	inner := New(ErrorTypeSend, "publish failed")
	outer := Wrap(inner, ErrorTypeConnection, "retry gave up")

	require.NotEmpty(t, outer.Stack)
	assert.Equal(t, inner.Stack, outer.Stack, "re-wrap keeps the origin stack")
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeConfig, "bad setting").
		WithDetail("key", "retry_max_attempts").
		WithDetail("value", 0)
	assert.Equal(t, "retry_max_attempts", err.Details["key"])
	assert.Equal(t, 0, err.Details["value"])
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeTimeout, "deadline exceeded")
	assert.True(t, IsType(err, ErrorTypeTimeout))
	assert.False(t, IsType(err, ErrorTypeSend))

	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeTimeout), "works through wrapping")

	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeTimeout))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeSend, TypeOf(New(ErrorTypeSend, "x")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeConnection, "refused")))
	assert.True(t, IsRetryable(New(ErrorTypeTimeout, "slow")))
	assert.False(t, IsRetryable(New(ErrorTypeConfig, "bad")))
	assert.False(t, IsRetryable(nil))
}
