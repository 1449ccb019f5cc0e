package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func TestFromContext(t *testing.T) {
	l, _ := observed()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))

	assert.NotNil(t, FromContext(context.Background()))
	assert.NotPanics(t, func() { FromContext(context.Background()).Info("nop") })
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetTenantID(ctx))
	assert.Empty(t, GetUserID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTenantID(ctx, "tenant-a")
	ctx = WithUserID(ctx, "user-9")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "tenant-a", GetTenantID(ctx))
	assert.Equal(t, "user-9", GetUserID(ctx))
}

func TestL_EnrichesEntries(t *testing.T) {
	l, recorded := observed()
	ctx := WithContext(context.Background(), l)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTenantID(ctx, "tenant-a")
	ctx = WithUserID(ctx, "user-9")

	L(ctx).Info("sale committed", zap.String("order_id", "SO-1"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-a", fields["tenant_id"])
	assert.Equal(t, "user-9", fields["user_id"])
	assert.Equal(t, "SO-1", fields["order_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestL_AddsTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	l, recorded := observed()
	ctx, span := tp.Tracer("test").Start(WithContext(context.Background(), l), "op")
	defer span.End()

	L(ctx).Info("traced")

	require.Len(t, recorded.All(), 1)
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
	assert.Equal(t, span.SpanContext().SpanID().String(), GetSpanID(ctx))
}

func TestTraceIDsWithoutSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetSpanID(context.Background()))
}

func TestAudit(t *testing.T) {
	l, recorded := observed()
	ctx := WithTenantID(WithContext(context.Background(), l), "tenant-a")

	Audit(ctx).Warn("tenant mismatch", zap.String("resource_tenant", "tenant-b"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, true, fields["audit"])
	assert.Equal(t, "tenant-a", fields["tenant_id"])
	assert.Equal(t, "tenant-b", fields["resource_tenant"])
}
