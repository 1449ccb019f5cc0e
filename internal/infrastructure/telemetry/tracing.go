package telemetry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of spans started by this module
const TracerName = "github.com/stockledger/backend"

// Span attribute keys for ledger operations
var (
	SpanAttrTenantID       = attribute.Key("ledger.tenant_id")
	SpanAttrOperation      = attribute.Key("ledger.operation")
	SpanAttrSKU            = attribute.Key("ledger.sku")
	SpanAttrSKUCount       = attribute.Key("ledger.sku_count")
	SpanAttrChangeType     = attribute.Key("ledger.change_type")
	SpanAttrEntries        = attribute.Key("ledger.entries")
	SpanAttrOrderNumber    = attribute.Key("ledger.order_number")
	SpanAttrIdempotencyKey = attribute.Key("ledger.idempotency_key")
	SpanAttrReplayed       = attribute.Key("ledger.replayed")
	SpanAttrErrorCode      = attribute.Key("ledger.error_code")
)

// StartSpan starts an internal span from the global tracer provider
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartLedgerSpan starts the span that covers one ledger transaction. The
// name is "ledger.<operation>".
func StartLedgerSpan(ctx context.Context, tenantID uuid.UUID, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, "ledger."+operation,
		SpanAttrTenantID.String(tenantID.String()),
		SpanAttrOperation.String(operation),
	)
}

// EndSpan finishes span with the outcome of err. Domain errors add their
// code as an attribute; business rejections keep an Unset status and only
// lock timeouts and non-domain failures mark the span as an error.
func EndSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	var de *shared.DomainError
	if errors.As(err, &de) {
		span.SetAttributes(SpanAttrErrorCode.String(de.Code))
		if de.Code != shared.CodeLockTimeout {
			span.AddEvent("rejected", trace.WithAttributes(SpanAttrErrorCode.String(de.Code)))
			return
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace id of the span in ctx, or "" without one
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
