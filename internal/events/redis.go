package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"energy-dashboard/internal/resilience"

	goredis "github.com/go-redis/redis/v8"
)

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Dial creates a Redis client and pings the server.
func Dial(ctx context.Context, cfg RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisBus publishes events on a Redis channel through a circuit breaker.
// While the breaker is open, events are buffered locally and flushed once
// it closes again. Only the newest maxBuf events are kept.
type RedisBus struct {
	rdb     *goredis.Client
	channel string
	cb      *resilience.Breaker
	logger  *slog.Logger

	mu     sync.Mutex
	buffer []Event
	maxBuf int

	// Callbacks (optional, for metrics)
	OnPublish func(err error)
	OnBuffer  func()
	OnFlush   func(count int)
}

// NewRedisBus wraps rdb. cb guards every publish; its OnStateChange is
// chained so buffered events flush when it closes.
func NewRedisBus(rdb *goredis.Client, cb *resilience.Breaker, maxBuffer int, logger *slog.Logger) *RedisBus {
	if maxBuffer <= 0 {
		maxBuffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &RedisBus{
		rdb:     rdb,
		channel: Channel,
		cb:      cb,
		logger:  logger.With("component", "events"),
		maxBuf:  maxBuffer,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(name string, from, to resilience.State) {
		if prev != nil {
			prev(name, from, to)
		}
		if to == resilience.StateClosed {
			go b.Flush(context.Background())
		}
	}
	return b
}

// Publish sends e to Redis. An open breaker buffers e and returns nil.
func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	err := b.cb.Execute(ctx, func(ctx context.Context) error {
		return b.rdb.Publish(ctx, b.channel, e.JSON()).Err()
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		b.bufferEvent(e)
		return nil
	}
	if b.OnPublish != nil {
		b.OnPublish(err)
	}
	if err != nil {
		return fmt.Errorf("events: publish: %w", err)
	}
	return nil
}

func (b *RedisBus) bufferEvent(e Event) {
	b.mu.Lock()
	if len(b.buffer) >= b.maxBuf {
		b.buffer = b.buffer[1:]
	}
	b.buffer = append(b.buffer, e)
	b.mu.Unlock()
	if b.OnBuffer != nil {
		b.OnBuffer()
	}
}

// Buffered returns the number of events waiting for the breaker to close.
func (b *RedisBus) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Flush republishes buffered events in order and returns how many were
// sent. Events that fail again go back to the front of the buffer.
func (b *RedisBus) Flush(ctx context.Context) int {
	b.mu.Lock()
	pending := b.buffer
	b.buffer = nil
	b.mu.Unlock()

	sent := 0
	for i, e := range pending {
		if err := b.rdb.Publish(ctx, b.channel, e.JSON()).Err(); err != nil {
			b.logger.Warn("flush interrupted", slog.Int("remaining", len(pending)-i), slog.String("error", err.Error()))
			b.mu.Lock()
			b.buffer = append(append([]Event(nil), pending[i:]...), b.buffer...)
			if over := len(b.buffer) - b.maxBuf; over > 0 {
				b.buffer = b.buffer[over:]
			}
			b.mu.Unlock()
			break
		}
		sent++
	}
	if sent > 0 {
		b.logger.Info("flushed buffered events", slog.Int("count", sent))
		if b.OnFlush != nil {
			b.OnFlush(sent)
		}
	}
	return sent
}

// Subscribe relays events from the channel to fn until ctx is cancelled.
// Malformed payloads are logged and skipped.
func (b *RedisBus) Subscribe(ctx context.Context, fn func(Event)) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("events: subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("subscribed", slog.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e, err := Decode([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("dropping malformed event", slog.String("error", err.Error()))
				continue
			}
			fn(e)
		}
	}
}
