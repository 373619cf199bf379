package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"phototag/internal/config"
	"phototag/internal/logging"
)

// Event identifies a pipeline notification.
type Event string

const (
	EventPhotoEnqueued Event = "photo_enqueued"
	EventPhotoTagged   Event = "photo_tagged"
	EventPhotoFailed   Event = "photo_failed"
	EventQueueRequeued Event = "queue_requeued"
)

// Payload carries event-specific fields.
type Payload map[string]any

// Message is the envelope delivered to subscribers.
type Message struct {
	Event       Event     `json:"event"`
	Payload     Payload   `json:"payload,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Service publishes pipeline events and lets idle workers wait for them.
// Delivery is best effort; workers still poll the queue.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Subscribe(ctx context.Context) (<-chan Message, error)
	Close() error
}

const subscriberBuffer = 16

// NewService returns a Redis pub/sub service when an address is configured,
// otherwise an in-process broadcaster that only reaches subscribers inside
// the same process.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg == nil || strings.TrimSpace(cfg.Notifications.RedisAddr) == "" {
		return NewLocal()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Notifications.RedisAddr,
		Password: cfg.Notifications.RedisPassword,
		DB:       cfg.Notifications.RedisDB,
	})
	return NewRedis(client, cfg.Notifications.Channel, logger)
}

func newMessage(event Event, payload Payload) Message {
	return Message{Event: event, Payload: payload, PublishedAt: time.Now().UTC()}
}

// LocalService fans messages out to in-process subscribers.
type LocalService struct {
	mu     sync.Mutex
	subs   map[chan Message]struct{}
	closed bool
}

// NewLocal constructs an in-process broadcaster.
func NewLocal() *LocalService {
	return &LocalService{subs: make(map[chan Message]struct{})}
}

// Publish delivers to every subscriber without blocking; a subscriber whose
// buffer is full misses the message.
func (l *LocalService) Publish(_ context.Context, event Event, payload Payload) error {
	msg := newMessage(event, payload)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	for ch := range l.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel closed when ctx ends or the service closes.
func (l *LocalService) Subscribe(ctx context.Context) (<-chan Message, error) {
	ch := make(chan Message, subscriberBuffer)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		close(ch)
		return ch, nil
	}
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.remove(ch)
	}()
	return ch, nil
}

func (l *LocalService) remove(ch chan Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
}

// Close detaches all subscribers.
func (l *LocalService) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for ch := range l.subs {
		delete(l.subs, ch)
		close(ch)
	}
	return nil
}

// RedisService publishes JSON envelopes on a Redis channel so that workers
// in other processes wake when uploads arrive.
type RedisService struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, channel string, logger *slog.Logger) *RedisService {
	if strings.TrimSpace(channel) == "" {
		channel = config.DefaultNotificationChannel
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RedisService{rdb: rdb, channel: channel, logger: logger}
}

// Publish sends the event on the configured channel.
func (r *RedisService) Publish(ctx context.Context, event Event, payload Payload) error {
	data, err := json.Marshal(newMessage(event, payload))
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe listens on the channel until ctx ends. Malformed messages are
// logged and dropped.
func (r *RedisService) Subscribe(ctx context.Context) (<-chan Message, error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	out := make(chan Message, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					r.logger.Warn("dropping malformed notification",
						logging.String("channel", raw.Channel),
						logging.Error(err),
						logging.String(logging.FieldEventType, "notification_decode_failed"),
					)
					continue
				}
				select {
				case out <- msg:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Ping checks connectivity to Redis.
func (r *RedisService) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisService) Close() error {
	return r.rdb.Close()
}
