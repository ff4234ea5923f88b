package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ctxKey int

const TraceIdKey ctxKey = 1

// GetTraceIdOfRequest returns the trace id the Logger middleware stored on the
// request context. Requests that bypassed the middleware get a fresh id.
func GetTraceIdOfRequest(c *gin.Context) string {
	if traceId, ok := c.Request.Context().Value(TraceIdKey).(string); ok && traceId != "" {
		return traceId
	}
	return uuid.NewString()
}

func WithTraceId(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TraceIdKey, traceId)
}

func TraceIdFromContext(ctx context.Context) string {
	traceId, _ := ctx.Value(TraceIdKey).(string)
	return traceId
}
