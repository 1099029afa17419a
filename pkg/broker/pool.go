package broker

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpConnection is the part of *amqp.Connection the pool needs.
type amqpConnection interface {
	Channel() (*amqp.Channel, error)
}

// ChannelPool leases confirm-mode channels on one connection. A leased
// channel belongs to a single caller until it is released.
type ChannelPool struct {
	conn  amqpConnection
	slots chan struct{}

	mu     sync.Mutex
	idle   []*amqp.Channel
	closed bool
}

// NewChannelPool returns a pool handing out at most size channels at a time.
func NewChannelPool(conn amqpConnection, size int) *ChannelPool {
	return &ChannelPool{
		conn:  conn,
		slots: make(chan struct{}, max(size, 1)),
	}
}

// Acquire leases a channel, waiting for a free slot until ctx is done.
// Every successful Acquire must be paired with Release.
func (p *ChannelPool) Acquire(ctx context.Context) (*amqp.Channel, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case p.slots <- struct{}{}:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return nil, ErrClosed
	}
	for len(p.idle) > 0 {
		ch := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !ch.IsClosed() {
			p.mu.Unlock()
			return ch, nil
		}
	}
	p.mu.Unlock()

	ch, err := p.conn.Channel()
	if err != nil {
		<-p.slots
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		<-p.slots
		return nil, err
	}
	return ch, nil
}

// Release returns a leased channel. Broken or closed channels are discarded.
func (p *ChannelPool) Release(ch *amqp.Channel, broken bool) {
	defer func() { <-p.slots }()
	if ch == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if broken || p.closed || ch.IsClosed() {
		_ = ch.Close()
		return
	}
	p.idle = append(p.idle, ch)
}

// Close closes idle channels. Leased channels are closed when released.
func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, ch := range p.idle {
		_ = ch.Close()
	}
	p.idle = nil
}
