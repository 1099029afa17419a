package queue

import "context"

// CorrelationIDKey is the context key holding the correlation id of the
// envelope being handled. Pass it to logger.WithContextValue to log it.
type CorrelationIDKey struct{}

// WithCorrelationID returns ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, CorrelationIDKey{}, id)
}

// CorrelationIDFrom returns the correlation id carried by ctx, if any.
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(CorrelationIDKey{}).(string)
	return id
}
