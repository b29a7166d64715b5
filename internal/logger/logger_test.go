package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_AddsCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	ctx := WithCorrelationID(context.Background(), "corr-1")
	require.Equal(t, "corr-1", CorrelationID(ctx))

	FromContext(ctx).Info("hello")
	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "corr-1", entries[0].ContextMap()["correlation_id"])
}

func TestFromContext_WithoutCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	FromContext(context.Background()).Info("plain")
	require.Len(t, logs.All(), 1)
	require.NotContains(t, logs.All()[0].ContextMap(), "correlation_id")
}

func TestInit_Environments(t *testing.T) {
	l, err := Init("production")
	require.NoError(t, err)
	require.NotNil(t, l)
	require.Same(t, l, Base())

	l, err = Init("")
	require.NoError(t, err)
	require.Same(t, l, Base())
}
