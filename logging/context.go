package logging

import (
	"context"
)

type traceKeyType int

const traceKey = traceKeyType(iota)

// WithTrace returns a context whose C* log calls are written regardless of the logger level and
// carry a "trace" field set to tag. An empty tag leaves ctx untraced.
func WithTrace(ctx context.Context, tag string) context.Context {
	if tag == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey, tag)
}

// TraceTag returns the tag ctx was traced with, or "".
func TraceTag(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tag, _ := ctx.Value(traceKey).(string)
	return tag
}
