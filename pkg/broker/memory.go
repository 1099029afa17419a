package broker

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slipverify/notifier/pkg/logger"
)

// Memory is an in-process Broker that follows the same routing and
// dead-letter rules as the AMQP server for a given Topology.
type Memory struct {
	mu         sync.Mutex
	exchanges  map[string]Exchange
	queues     map[string]*memoryQueue
	publishErr error
	closed     bool
	logger     *slog.Logger
}

type memoryQueue struct {
	def     Queue
	pending []Delivery
	signal  chan struct{}
}

// NewMemory returns a memory broker with topology declared.
func NewMemory(topology Topology, opts ...MemoryOption) *Memory {
	m := &Memory{
		exchanges: make(map[string]Exchange, len(topology.Exchanges)),
		queues:    make(map[string]*memoryQueue, len(topology.Queues)),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, ex := range topology.Exchanges {
		m.exchanges[ex.Name] = ex
	}
	for _, q := range topology.Queues {
		m.queues[q.Name] = &memoryQueue{def: q, signal: make(chan struct{}, 1)}
	}
	return m
}

// MemoryOption configures a Memory broker.
type MemoryOption func(*Memory)

// WithMemoryLogger sets the logger used for routing diagnostics.
func WithMemoryLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if l != nil {
			m.logger = l
		}
	}
}

// SetPublishError makes every following Publish fail with err until it is
// reset with nil. It simulates an unreachable server.
func (m *Memory) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

func (m *Memory) Publish(ctx context.Context, exchange, routingKey string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.publishErr != nil {
		return m.publishErr
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.Headers = maps.Clone(msg.Headers)

	targets, err := m.route(exchange, routingKey)
	if err != nil {
		return err
	}
	for _, q := range targets {
		m.enqueue(q, Delivery{
			Message:    msg,
			Queue:      q.def.Name,
			Exchange:   exchange,
			RoutingKey: routingKey,
		})
	}
	return nil
}

// route resolves the queues a message reaches. Caller holds m.mu.
func (m *Memory) route(exchange, routingKey string) ([]*memoryQueue, error) {
	if exchange == "" {
		q, ok := m.queues[routingKey]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnroutable, routingKey)
		}
		return []*memoryQueue{q}, nil
	}

	ex, ok := m.exchanges[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExchange, exchange)
	}

	var targets []*memoryQueue
	for _, q := range m.queues {
		for _, key := range q.def.Bindings[exchange] {
			matched := key == routingKey
			if ex.Kind == KindTopic {
				matched = MatchTopic(key, routingKey)
			}
			if matched {
				targets = append(targets, q)
				break
			}
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: exchange %q key %q", ErrUnroutable, exchange, routingKey)
	}
	return targets, nil
}

// enqueue appends d and wakes a consumer. Caller holds m.mu.
func (m *Memory) enqueue(q *memoryQueue, d Delivery) {
	q.pending = append(q.pending, d)
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (m *Memory) Consume(ctx context.Context, queue string, prefetch int, handler HandlerFunc) error {
	if prefetch < 1 {
		return ErrInvalidPrefetch
	}
	if handler == nil {
		return ErrNilHandler
	}

	m.mu.Lock()
	q, ok := m.queues[queue]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}

	sem := make(chan struct{}, prefetch)
	var wg sync.WaitGroup
	defer wg.Wait()

	// Handlers outlive cancellation so in-flight work can settle.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sem <- struct{}{}:
		}

		d, ok := m.next(q)
		if !ok {
			<-sem
			select {
			case <-ctx.Done():
				return nil
			case <-q.signal:
			}
			continue
		}

		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			m.settle(q, d, handler(handlerCtx, d))
		}()
	}
}

func (m *Memory) next(q *memoryQueue) (Delivery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(q.pending) == 0 {
		return Delivery{}, false
	}
	d := q.pending[0]
	q.pending = q.pending[1:]
	if len(q.pending) > 0 {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return d, true
}

func (m *Memory) settle(q *memoryQueue, d Delivery, outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch outcome {
	case Ack:
	case Requeue:
		d.Redelivered = true
		m.enqueue(q, d)
	default:
		if q.def.DeadLetterExchange == "" {
			m.logger.Warn("rejected message dropped, queue has no dead-letter exchange",
				logger.Queue(q.def.Name), logger.MessageID(d.ID))
			return
		}
		targets, err := m.route(q.def.DeadLetterExchange, q.def.DeadLetterRoutingKey)
		if err != nil {
			m.logger.Error("failed to dead-letter message", logger.Queue(q.def.Name), logger.Error(err))
			return
		}
		for _, target := range targets {
			m.enqueue(target, Delivery{
				Message:    d.Message,
				Queue:      target.def.Name,
				Exchange:   q.def.DeadLetterExchange,
				RoutingKey: q.def.DeadLetterRoutingKey,
			})
		}
	}
}

// Messages returns a snapshot of the messages waiting in queue.
func (m *Memory) Messages(queue string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[queue]
	if !ok {
		return nil
	}
	out := make([]Message, 0, len(q.pending))
	for _, d := range q.pending {
		out = append(out, d.Message)
	}
	return out
}

// Len returns the number of messages waiting in queue.
func (m *Memory) Len(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[queue]; ok {
		return len(q.pending)
	}
	return 0
}

func (m *Memory) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && m.publishErr == nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
