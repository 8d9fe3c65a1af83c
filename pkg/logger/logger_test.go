package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetDefaultsWhenUninitialized(t *testing.T) {
	assert.NotNil(t, Get())
}

func TestWithContextNoValues(t *testing.T) {
	base := Get()
	assert.Same(t, base, WithContext(context.Background()))
}

func TestWithContextAttachesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := globalLogger
	globalLogger = zap.New(core)
	defer func() { globalLogger = prev }()

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, ConnectionIDKey, "conn-1")
	ctx = context.WithValue(ctx, AdapterKey, "mqtt")

	WithContext(ctx).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "conn-1", fields["connection_id"])
	assert.Equal(t, "mqtt", fields["adapter"])
}
