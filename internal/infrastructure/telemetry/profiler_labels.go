package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
	ProfilingLabelTenantID  = "tenant_id"
	ProfilingLabelOperation = "operation"
	ProfilingLabelJob       = "job"
)

// MaxLabelValueLength caps label values
const MaxLabelValueLength = 128

// rejectedLabels are unique per request and would explode series count
var rejectedLabels = map[string]bool{
	"request_id":      true,
	"trace_id":        true,
	"span_id":         true,
	"sku":             true,
	"order_number":    true,
	"idempotency_key": true,
}

// WithProfilingLabels runs fn with labels attached to every sample it
// produces. Empty values and per-request keys are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// WithLedgerLabels labels fn with the tenant and ledger operation
func WithLedgerLabels(ctx context.Context, tenantID uuid.UUID, operation string, fn func(context.Context)) {
	WithProfilingLabels(ctx, map[string]string{
		ProfilingLabelTenantID:  tenantID.String(),
		ProfilingLabelOperation: operation,
	}, fn)
}

// sanitizeLabels flattens labels into sorted key/value pairs
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, k := range keys {
		value := labels[k]
		key := sanitizeLabelKey(k)
		if key == "" || value == "" || rejectedLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, value)
	}
	return pairs
}

// sanitizeLabelKey lower-cases key, maps spaces and dashes to underscores
// and drops everything outside [a-z0-9_]
func sanitizeLabelKey(key string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(key) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		case c == ' ' || c == '-':
			b.WriteByte('_')
		}
	}
	return b.String()
}
