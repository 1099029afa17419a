package notification

import (
	"context"
	"slices"
	"sync"
)

// Channel delivers messages through one provider. Send must not panic or
// return provider failures as errors; it reports them in the Result.
type Channel interface {
	Type() ChannelType
	Supports(t ChannelType) bool
	Send(ctx context.Context, msg Message) Result
}

// Registry maps channel types to channels.
type Registry struct {
	mu       sync.RWMutex
	channels map[ChannelType]Channel
}

// NewRegistry creates a registry holding channels.
func NewRegistry(channels ...Channel) *Registry {
	r := &Registry{channels: make(map[ChannelType]Channel, len(channels))}
	for _, ch := range channels {
		r.Register(ch)
	}
	return r
}

// Register adds ch under its type, replacing any previous channel.
func (r *Registry) Register(ch Channel) {
	if ch == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.Type()] = ch
}

// Lookup returns the channel for t. Channels registered under another type
// are used when they report support for t.
func (r *Registry) Lookup(t ChannelType) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ch, ok := r.channels[t]; ok {
		return ch, true
	}
	for _, ct := range r.typesLocked() {
		if ch := r.channels[ct]; ch.Supports(t) {
			return ch, true
		}
	}
	return nil, false
}

// Types returns the registered channel types in sorted order.
func (r *Registry) Types() []ChannelType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typesLocked()
}

func (r *Registry) typesLocked() []ChannelType {
	types := make([]ChannelType, 0, len(r.channels))
	for t := range r.channels {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
