package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/slipverify/notifier/pkg/logger"
)

// RabbitMQ is a Broker backed by an AMQP 0-9-1 server.
type RabbitMQ struct {
	cfg      Config
	topology Topology
	logger   *slog.Logger
	dial     func(url string, cfg amqp.Config) (*amqp.Connection, error)

	mu    sync.RWMutex
	conn  *amqp.Connection
	pool  *ChannelPool
	ready chan struct{}

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// RabbitMQOption configures a RabbitMQ broker.
type RabbitMQOption func(*RabbitMQ)

// WithLogger sets the broker logger.
func WithLogger(l *slog.Logger) RabbitMQOption {
	return func(r *RabbitMQ) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTopology replaces DefaultTopology.
func WithTopology(t Topology) RabbitMQOption {
	return func(r *RabbitMQ) { r.topology = t }
}

// NewRabbitMQ creates the broker and starts connecting in the background.
// It never fails because the server is unreachable: until the first
// connection succeeds Healthy reports false and Publish returns
// ErrNotConnected.
func NewRabbitMQ(ctx context.Context, cfg Config, opts ...RabbitMQOption) *RabbitMQ {
	r := &RabbitMQ{
		cfg:      cfg,
		topology: DefaultTopology(),
		logger:   logger.Nop(),
		dial:     amqp.DialConfig,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.ReconnectInterval <= 0 {
		r.cfg.ReconnectInterval = 10 * time.Second
	}
	if r.cfg.PublishTimeout <= 0 {
		r.cfg.PublishTimeout = 5 * time.Second
	}
	r.logger = r.logger.With(logger.Component("broker"))

	r.wg.Add(1)
	go r.maintain(ctx)
	return r
}

// maintain dials, declares the topology and waits for the connection to drop,
// forever, until the broker is closed or ctx is done.
func (r *RabbitMQ) maintain(ctx context.Context) {
	defer r.wg.Done()

	for {
		conn, err := r.connect()
		if err != nil {
			r.logger.WarnContext(ctx, "broker unavailable, running degraded",
				logger.Error(err),
				slog.Duration("retry_in", r.cfg.ReconnectInterval),
			)
			if !r.sleep(ctx, r.cfg.ReconnectInterval) {
				return
			}
			continue
		}

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		r.setConnection(conn)
		r.logger.InfoContext(ctx, "broker connected")

		select {
		case amqpErr := <-closed:
			r.setConnection(nil)
			if amqpErr != nil {
				r.logger.WarnContext(ctx, "broker connection lost", logger.Error(amqpErr))
			}
		case <-ctx.Done():
			r.setConnection(nil)
			_ = conn.Close()
			return
		case <-r.done:
			r.setConnection(nil)
			_ = conn.Close()
			return
		}

		if !r.sleep(ctx, r.cfg.ReconnectInterval) {
			return
		}
	}
}

func (r *RabbitMQ) connect() (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(r.cfg.ConnectionName)

	conn, err := r.dial(r.cfg.URL, amqp.Config{
		Heartbeat:  r.cfg.Heartbeat,
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := DeclareTopology(ch, r.topology); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (r *RabbitMQ) setConnection(conn *amqp.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	r.conn = conn
	if conn != nil {
		r.pool = NewChannelPool(conn, r.cfg.PublishChannels)
		close(r.ready)
		return
	}
	select {
	case <-r.ready:
		r.ready = make(chan struct{})
	default:
	}
}

func (r *RabbitMQ) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-r.done:
		return false
	}
}

// waitConnection blocks until a connection is available.
func (r *RabbitMQ) waitConnection(ctx context.Context) (*amqp.Connection, error) {
	for {
		r.mu.RLock()
		conn, ready := r.conn, r.ready
		r.mu.RUnlock()

		if conn != nil && !conn.IsClosed() {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.done:
			return nil, ErrClosed
		case <-ready:
		}
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, exchange, routingKey string, msg Message) error {
	if r.closed.Load() {
		return ErrClosed
	}

	r.mu.RLock()
	pool := r.pool
	r.mu.RUnlock()
	if pool == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()

	ch, err := pool.Acquire(ctx)
	if err != nil {
		return errors.Join(ErrNotConnected, err)
	}
	broken := false
	defer func() { pool.Release(ch, broken) }()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	contentType := msg.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		Headers:      amqp.Table(msg.Headers),
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
	})
	if err != nil {
		broken = true
		return fmt.Errorf("publish to %q: %w", exchange, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		broken = true
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

func (r *RabbitMQ) Consume(ctx context.Context, queue string, prefetch int, handler HandlerFunc) error {
	if prefetch < 1 {
		return ErrInvalidPrefetch
	}
	if handler == nil {
		return ErrNilHandler
	}

	log := r.logger.With(logger.Queue(queue))
	for {
		conn, err := r.waitConnection(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			return nil
		}

		err = r.consume(ctx, conn, queue, prefetch, handler, log)
		if ctx.Err() != nil {
			return nil
		}
		log.WarnContext(ctx, "consumer interrupted, resubscribing", logger.Error(err))
		if !r.sleep(ctx, time.Second) {
			return nil
		}
	}
}

// consume runs one subscription on its own channel until the channel closes
// or ctx is done. In-flight handlers settle before the channel is closed.
func (r *RabbitMQ) consume(
	ctx context.Context,
	conn *amqp.Connection,
	queue string,
	prefetch int,
	handler HandlerFunc,
	log *slog.Logger,
) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	tag := queue + "-" + uuid.NewString()[:8]
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %q: %w", queue, err)
	}

	sem := make(chan struct{}, prefetch)
	var wg sync.WaitGroup
	defer wg.Wait()

	handlerCtx := context.WithoutCancel(ctx)
	log.InfoContext(ctx, "consumer started", slog.Int("prefetch", prefetch))

	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel(tag, false)
			log.InfoContext(ctx, "consumer stopping, waiting for in-flight messages")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer func() {
					<-sem
					wg.Done()
				}()
				outcome := handler(handlerCtx, toDelivery(queue, d))
				if err := settle(d, outcome); err != nil {
					log.ErrorContext(handlerCtx, "failed to settle message",
						logger.MessageID(d.MessageId),
						slog.String("outcome", outcome.String()),
						logger.Error(err),
					)
				}
			}()
		}
	}
}

func toDelivery(queue string, d amqp.Delivery) Delivery {
	return Delivery{
		Message: Message{
			ID:          d.MessageId,
			Body:        d.Body,
			ContentType: d.ContentType,
			Timestamp:   d.Timestamp,
			Headers:     map[string]any(d.Headers),
		},
		Queue:       queue,
		Exchange:    d.Exchange,
		RoutingKey:  d.RoutingKey,
		Redelivered: d.Redelivered,
	}
}

func settle(d amqp.Delivery, outcome Outcome) error {
	switch outcome {
	case Ack:
		return d.Ack(false)
	case Requeue:
		return d.Nack(false, true)
	default:
		return d.Nack(false, false)
	}
}

func (r *RabbitMQ) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn != nil && !r.conn.IsClosed()
}

// Close stops reconnecting and closes the connection.
func (r *RabbitMQ) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)
	r.wg.Wait()
	return nil
}

// DeclareTopology declares every exchange, queue and binding in t on ch.
func DeclareTopology(ch *amqp.Channel, t Topology) error {
	for _, ex := range t.Exchanges {
		if err := ch.ExchangeDeclare(ex.Name, ex.Kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %q: %w", ex.Name, err)
		}
	}
	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(q.Name, true, false, false, false, queueArgs(q)); err != nil {
			return fmt.Errorf("declare queue %q: %w", q.Name, err)
		}
		for exchange, keys := range q.Bindings {
			for _, key := range keys {
				if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
					return fmt.Errorf("bind queue %q to %q with %q: %w", q.Name, exchange, key, err)
				}
			}
		}
	}
	return nil
}

func queueArgs(q Queue) amqp.Table {
	args := amqp.Table{}
	if q.DeadLetterExchange != "" {
		args["x-dead-letter-exchange"] = q.DeadLetterExchange
		if q.DeadLetterRoutingKey != "" {
			args["x-dead-letter-routing-key"] = q.DeadLetterRoutingKey
		}
	}
	if q.MessageTTL > 0 {
		args["x-message-ttl"] = q.MessageTTL.Milliseconds()
	}
	if q.MaxLength > 0 {
		args["x-max-length"] = int64(q.MaxLength)
	}
	if len(args) == 0 {
		return nil
	}
	return args
}
