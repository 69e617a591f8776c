package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Caps on header-sourced span attributes. Headers are attacker-controlled,
// so anything copied into a span gets bounded and validated first.
const (
	maxRequestIDLength = 128
	maxAgencyIDLength  = 64
)

var agencyIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig tunes the request tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns the default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "letably-backend",
		Enabled:     true,
	}
}

// Tracing returns the tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig opens a span per request via otelgin, named
// "METHOD route_pattern". Register SpanEnricher after it to attach request
// identity attributes and error status; otelgin ends the span as soon as its
// own handler returns, so enrichment has to happen from inside the chain.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnricher adds request_id, agency_id, and user_id to the active span
// once the request has been handled, and marks 4xx/5xx responses with an
// error status. Running after c.Next() means claims set by the JWT
// middleware are visible.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if requestID := spanRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if agencyID := spanAgencyID(c); agencyID != "" {
			span.SetAttributes(attribute.String("agency_id", agencyID))
		}
		if userID := spanUserID(c); userID != "" {
			span.SetAttributes(attribute.String("user_id", userID))
		}

		markSpanError(span, c.Writer.Status())
	}
}

// markSpanError flags client and server errors on the span. otelgin only
// marks 5xx on its own.
func markSpanError(span trace.Span, statusCode int) {
	if statusCode < http.StatusBadRequest {
		return
	}

	var message string
	switch {
	case statusCode >= http.StatusInternalServerError:
		message = "Internal Server Error"
	case statusCode == http.StatusUnauthorized:
		message = "Unauthorized"
	case statusCode == http.StatusForbidden:
		message = "Forbidden"
	case statusCode == http.StatusNotFound:
		message = "Not Found"
	default:
		message = "Client Error"
	}

	span.SetStatus(codes.Error, message)
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
}

// spanRequestID prefers the id set by the RequestID middleware, falling back
// to the inbound header truncated to a safe length.
func spanRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok && id != "" {
			return id
		}
	}

	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > maxRequestIDLength {
		return headerID[:maxRequestIDLength]
	}
	return headerID
}

// spanAgencyID prefers the JWT claim over the X-Agency-ID header. The header
// is only trusted when it parses as a UUID, since it reaches the span on
// unauthenticated requests.
func spanAgencyID(c *gin.Context) string {
	if agencyID, exists := c.Get(JWTAgencyIDKey); exists {
		if id, ok := agencyID.(string); ok && id != "" {
			return id
		}
	}

	headerAgencyID := c.GetHeader("X-Agency-ID")
	if headerAgencyID != "" && len(headerAgencyID) <= maxAgencyIDLength && agencyIDPattern.MatchString(headerAgencyID) {
		return headerAgencyID
	}
	return ""
}

func spanUserID(c *gin.Context) string {
	if userID, exists := c.Get(JWTUserIDKey); exists {
		if id, ok := userID.(string); ok && id != "" {
			return id
		}
	}
	return ""
}
