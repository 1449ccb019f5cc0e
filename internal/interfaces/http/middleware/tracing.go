package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts the server span for each request. Disabled tracing still
// installs the middleware; the global no-op provider makes it free.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// SpanEnricher tags the request span with the request id and the resolved
// tenant, and marks it failed on 5xx. It must run after TenantAuth.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if rid := GetRequestID(c); rid != "" {
			span.SetAttributes(attribute.String("request_id", rid))
		}
		if tc := GetTenantContext(c); tc != nil {
			span.SetAttributes(telemetry.SpanAttrTenantID.String(tc.TenantID.String()))
			span.SetAttributes(attribute.String("user_id", tc.ActorID.String()))
		}

		c.Next()

		// 4xx are caller mistakes and business rejections, not span failures
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(status)+" "+http.StatusText(status))
		}
		if code := c.GetString(ErrorCodeKey); code != "" {
			span.SetAttributes(telemetry.SpanAttrErrorCode.String(code))
		}
	}
}
