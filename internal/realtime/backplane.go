package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBackplane publishes emits to a Redis channel; every process subscribed
// to the channel delivers them to its local room members.
type RedisBackplane struct {
	client  *redis.Client
	channel string
	local   *Router
	logger  *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

type backplaneMessage struct {
	Room  string `json:"room"`
	Frame []byte `json:"frame"`
}

// NewRedisBackplane creates a backplane delivering into local.
func NewRedisBackplane(client *redis.Client, channel string, local *Router, logger *zap.Logger) *RedisBackplane {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBackplane{client: client, channel: channel, local: local, logger: logger}
}

// Start subscribes and begins delivering. It returns once the subscription is
// confirmed, so emits published afterwards are not missed.
func (b *RedisBackplane) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return errors.New("backplane already started")
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})

	go b.run(pubsub.Channel(), b.done)
	b.logger.Info("redis backplane subscribed", zap.String("channel", b.channel))
	return nil
}

func (b *RedisBackplane) run(ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range ch {
		var m backplaneMessage
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			b.logger.Warn("invalid backplane message", zap.Error(err))
			continue
		}
		b.local.Deliver(m.Room, m.Frame)
	}
}

// Emit publishes the frame for every process, this one included.
func (b *RedisBackplane) Emit(ctx context.Context, room string, frame []byte) error {
	payload, err := json.Marshal(backplaneMessage{Room: room, Frame: frame})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Close unsubscribes and waits for the delivery loop to exit.
func (b *RedisBackplane) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()
	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
