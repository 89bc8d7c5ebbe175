// Package queue carries click jobs over NATS JetStream so a separate worker
// process can record them.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

const (
	DefaultStream  = "CLICKS"
	DefaultSubject = "clicks.events"
	DefaultDurable = "click-recorder"

	// DrainTimeout bounds how long Close waits for pending messages.
	DrainTimeout = 30 * time.Second

	drainPoll = 20 * time.Millisecond
)

type Config struct {
	URL     string
	Stream  string
	Subject string
	MaxAge  time.Duration // Retention of unconsumed jobs
}

func (c Config) withDefaults() Config {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	return c
}

// Broker owns the NATS connection and the JetStream context.
type Broker struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	cfg    Config
	closed chan struct{} // Closed by the connection's ClosedHandler
}

func Connect(cfg Config) (*Broker, error) {
	cfg = cfg.withDefaults()

	closed := make(chan struct{})
	var once sync.Once
	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("trimrr"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DrainTimeout(DrainTimeout),
		nats.ClosedHandler(func(*nats.Conn) { once.Do(func() { close(closed) }) }),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}

	b := &Broker{conn: conn, js: js, cfg: cfg, closed: closed}
	if err := b.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *Broker) ensureStream() error {
	streamCfg := &nats.StreamConfig{
		Name:      b.cfg.Stream,
		Subjects:  []string{b.cfg.Subject},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy,
		MaxAge:    b.cfg.MaxAge,
		Replicas:  1,
	}

	_, err := b.js.StreamInfo(b.cfg.Stream)
	if errors.Is(err, nats.ErrStreamNotFound) {
		if _, err := b.js.AddStream(streamCfg); err != nil {
			return fmt.Errorf("nats: add stream: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("nats: stream info: %w", err)
	}

	if _, err := b.js.UpdateStream(streamCfg); err != nil {
		return fmt.Errorf("nats: update stream: %w", err)
	}
	return nil
}

// Close drains the connection, flushing pending publishes and finishing
// in-flight deliveries, and returns once the connection is closed. A drain
// that outlives DrainTimeout falls back to a hard close.
func (b *Broker) Close() error {
	if b.conn == nil {
		return nil
	}

	if err := b.conn.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		b.conn.Close()
		return fmt.Errorf("nats: drain connection: %w", err)
	}

	timer := time.NewTimer(DrainTimeout + time.Second)
	defer timer.Stop()

	select {
	case <-b.closed:
		return nil
	case <-timer.C:
		b.conn.Close()
		return errors.New("nats: drain connection: timed out")
	}
}

// Publisher forwards click jobs to the stream. It is a ports.ClickSink, so
// the in-process dispatcher keeps the redirect path non-blocking.
type Publisher struct {
	broker *Broker
}

func NewPublisher(b *Broker) *Publisher {
	return &Publisher{broker: b}
}

func (p *Publisher) Handle(ctx context.Context, job domain.ClickJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("nats: encode click job: %w", err)
	}

	if _, err := p.broker.js.Publish(p.broker.cfg.Subject, data,
		nats.Context(ctx),
		nats.MsgId(uuid.NewString()),
	); err != nil {
		return fmt.Errorf("nats: publish click job: %w", err)
	}
	return nil
}

// Consumer feeds jobs from the stream into a sink. Every job is delivered
// once; a failed record is logged and acked, never redelivered.
type Consumer struct {
	broker  *Broker
	sink    ports.ClickSink
	logger  *slog.Logger
	timeout time.Duration
	sub     *nats.Subscription
}

func NewConsumer(b *Broker, sink ports.ClickSink, timeout time.Duration, logger *slog.Logger) *Consumer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{broker: b, sink: sink, logger: logger, timeout: timeout}
}

// Start subscribes with a durable, manually acked consumer.
func (c *Consumer) Start(durable string) error {
	if durable == "" {
		durable = DefaultDurable
	}

	sub, err := c.broker.js.QueueSubscribe(
		c.broker.cfg.Subject,
		durable,
		c.handle,
		nats.Durable(durable),
		nats.BindStream(c.broker.cfg.Stream),
		nats.ManualAck(),
		nats.AckWait(c.timeout+5*time.Second),
		nats.MaxDeliver(1),
	)
	if err != nil {
		return fmt.Errorf("nats: subscribe: %w", err)
	}
	c.sub = sub
	return nil
}

// Stop drains the subscription and waits until every delivered message has
// been handled, or ctx ends.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.sub == nil {
		return nil
	}
	if err := c.sub.Drain(); err != nil {
		if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return fmt.Errorf("nats: drain: %w", err)
	}
	if err := waitDrained(ctx, c.sub.IsValid, drainPoll); err != nil {
		return fmt.Errorf("nats: drain: %w", err)
	}
	return nil
}

// waitDrained polls until valid reports false. A drained subscription is
// invalidated only after its last callback returns.
func waitDrained(ctx context.Context, valid func() bool, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for valid() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (c *Consumer) handle(msg *nats.Msg) {
	var job domain.ClickJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		c.logger.Error("click job undecodable", slog.Any("err", err))
		if err := msg.Term(); err != nil {
			c.logger.Warn("term failed", slog.Any("err", err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.sink.Handle(ctx, job); err != nil {
		c.logger.Warn("click not recorded", slog.Int64("link_id", job.LinkID), slog.Any("err", err))
	}

	if err := msg.Ack(); err != nil {
		c.logger.Warn("ack failed", slog.Int64("link_id", job.LinkID), slog.Any("err", err))
	}
}
