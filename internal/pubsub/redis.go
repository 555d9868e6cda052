package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const channelPrefix = "gaurykart:chat:"

// RedisFanout publishes room broadcasts on Redis so every server instance
// delivers them to its own connections.
type RedisFanout struct {
	client *redis.Client
	prefix string
}

func NewRedisFanout(url string) (*RedisFanout, error) {
	if url == "" {
		return nil, errors.New("redis: url is empty")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisFanout{client: c, prefix: channelPrefix}, nil
}

func (f *RedisFanout) Publish(ctx context.Context, room string, payload []byte) error {
	return f.client.Publish(ctx, f.prefix+room, payload).Err()
}

// Subscribe listens on every chat channel until ctx is done. ready runs once
// the pattern subscription is confirmed by the server.
func (f *RedisFanout) Subscribe(ctx context.Context, ready func(), deliver func(room string, payload []byte)) error {
	sub := f.client.PSubscribe(ctx, f.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: subscribe: %w", err)
	}
	if ready != nil {
		ready()
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			room, found := strings.CutPrefix(msg.Channel, f.prefix)
			if !found || room == "" {
				continue
			}
			deliver(room, []byte(msg.Payload))
		}
	}
}

func (f *RedisFanout) Close() error {
	return f.client.Close()
}
