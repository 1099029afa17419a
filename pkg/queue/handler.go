package queue

import "context"

// Handler processes a decoded envelope.
type Handler interface {
	Handle(ctx context.Context, env *Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env *Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env *Envelope) error { return f(ctx, env) }

// TypedHandlerFunc handles one payload type.
type TypedHandlerFunc[T any] func(ctx context.Context, env *Envelope, payload *T) error

// NewHandler returns a Handler that passes the payload of type T to fn.
// Envelopes carrying another payload are dead-lettered.
func NewHandler[T any](fn TypedHandlerFunc[T]) Handler {
	return HandlerFunc(func(ctx context.Context, env *Envelope) error {
		payload, ok := payloadOf[T](env)
		if !ok {
			return Permanent(ErrPayloadMismatch)
		}
		return fn(ctx, env, payload)
	})
}

func payloadOf[T any](env *Envelope) (*T, bool) {
	for _, p := range []any{env.Notification, env.Slip, env.Report, env.Email, env.Push} {
		if v, ok := p.(*T); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
