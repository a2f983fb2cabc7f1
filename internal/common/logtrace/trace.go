package logtrace

import (
	"context"
)

type requestIdKeyType string

const requestIdKey requestIdKeyType = "requestId"

// WithRequestId returns a copy of ctx carrying the request id.
func WithRequestId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIdKey, id)
}

// RequestIdFromContext extracts the request ID from the context.
// Returns an empty string if the context is nil or if no request ID is found.
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIdKey).(string)
	if !ok {
		return ""
	}
	return r
}

var traceEnabled bool

// SetTraceEnabled toggles route dumping and other verbose diagnostics.
func SetTraceEnabled(enabled bool) {
	traceEnabled = enabled
}

func IsTraceEnabled() bool {
	return traceEnabled
}
