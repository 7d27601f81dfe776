package kit

import "context"

type ctxKey int

const (
	transportKey ctxKey = iota
	requestIDKey
	traceIDKey
)

// Transports stamped on the context by the serving layer.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
	TransportGo   = "go"
)

func withValue(ctx context.Context, k ctxKey, v string) context.Context {
	return context.WithValue(ctx, k, v)
}

func value(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithTransport records which surface the call came in through.
func WithTransport(ctx context.Context, t string) context.Context {
	return withValue(ctx, transportKey, t)
}

// GetTransport returns TransportGo for direct library calls.
func GetTransport(ctx context.Context) string {
	if t := value(ctx, transportKey); t != "" {
		return t
	}
	return TransportGo
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string { return value(ctx, requestIDKey) }

// WithTraceID tags ctx so the attempts of queries run under it are
// journalled together.
func WithTraceID(ctx context.Context, id string) context.Context {
	return withValue(ctx, traceIDKey, id)
}

func GetTraceID(ctx context.Context) string { return value(ctx, traceIDKey) }

// LogAttrs returns the call metadata as slog key/value pairs. Unset values
// are left out.
func LogAttrs(ctx context.Context) []any {
	attrs := []any{"transport", GetTransport(ctx)}
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := GetTraceID(ctx); id != "" {
		attrs = append(attrs, "trace_id", id)
	}
	return attrs
}
