package vapi

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Bus carries webhook messages to whichever process holds the call.
type Bus interface {
	Publish(ctx context.Context, callID string, payload []byte) error
	Subscribe(ctx context.Context, callID string) (Subscription, error)
}

type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

func channelFor(callID string) string { return "vapi:call:" + callID }

type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, callID string, payload []byte) error {
	return b.rdb.Publish(ctx, channelFor(callID), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, callID string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channelFor(callID))
	// wait for the subscription to be confirmed so no message is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for m := range ps.Channel() {
			out <- []byte(m.Payload)
		}
	}()
	return &redisSubscription{ps: ps, out: out}, nil
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan []byte
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }
func (s *redisSubscription) Close() error            { return s.ps.Close() }
