// Package requestctx carries per-request values shared by middleware, handlers and services.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type (
	loggerKey struct{}
	traceKey  struct{}
)

var nop = zap.NewNop()

// TraceInfo is the Cloud Trace context of the current request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// Resource returns the fully qualified trace name Cloud Logging uses to group entries, or ""
// when either half is unknown.
func (t TraceInfo) Resource() string {
	if t.ProjectID == "" || t.TraceID == "" {
		return ""
	}
	return "projects/" + t.ProjectID + "/traces/" + t.TraceID
}

// WithLogger attaches logger to ctx. A nil logger clears any logger set further up.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the request logger, or a no-op logger when none is attached.
func Logger(ctx context.Context) *zap.Logger {
	return LoggerOr(ctx, nop)
}

// LoggerOr returns the request logger when one is attached and fallback otherwise.
func LoggerOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx != nil {
		if logger, _ := ctx.Value(loggerKey{}).(*zap.Logger); logger != nil {
			return logger
		}
	}
	if fallback == nil {
		return nop
	}
	return fallback
}

func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey{}, info)
}

func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey{}).(TraceInfo)
	return info, ok
}

// TraceID is shorthand for Trace(ctx).TraceID.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}
