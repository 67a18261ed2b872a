package kit

import "context"

type contextKey string

const (
	TransportKey contextKey = "kit_transport"
	RequestIDKey contextKey = "kit_request_id"
)

// Transport names recorded in the request context.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport returns the transport that carried the request, "http" when unset.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return TransportHTTP
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}
