package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBroker fans notifications out over Redis Pub/Sub so multiple server
// instances can share one room channel space.
type RedisBroker struct {
	rdb     *redis.Client
	bufSize int
}

func NewRedisBroker(rdb *redis.Client, bufSize int) *RedisBroker {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &RedisBroker{rdb: rdb, bufSize: bufSize}
}

func channelKey(roomID string) string { return "room:events:" + strings.TrimSpace(roomID) }

func (b *RedisBroker) Publish(ctx context.Context, roomID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return b.rdb.Publish(ctx, channelKey(roomID), raw).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, roomID string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channelKey(roomID))
	// force the subscription to be established before returning
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Event, b.bufSize)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			ev := Event{RoomID: roomID, Payload: []byte(msg.Payload)}
			select {
			case out <- ev:
			default:
				// drop rather than stall the pump
			}
		}
	}()

	cancel := func() { _ = ps.Close() }
	return &Subscription{C: out, cancel: cancel}, nil
}
