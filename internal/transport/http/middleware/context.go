package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// UserIDKey is the context key for authenticated user ID
	UserIDKey = "user_id"
	// UsernameKey is the context key for the authenticated username
	UsernameKey = "username"

	requestContextKey = "request_context"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID   string
	UserID    string
	Username  string
	IP        string
	UserAgent string
}

// ErrorEnvelope mirrors handlers.Envelope for failures produced before a handler runs.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
}

// NewErrorEnvelope builds a failure body carrying the request trace id.
func NewErrorEnvelope(c *gin.Context, message string) ErrorEnvelope {
	return ErrorEnvelope{
		Success: false,
		Message: message,
		TraceID: GetTraceID(c),
	}
}

// EnrichContext adds trace ID and request context to each request
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" || len(traceID) > 128 {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
