package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/badukhouse/baduk-server/internal/obslog"
	"go.uber.org/zap"
)

// Event is one published room notification. Payload is the JSON-encoded
// snapshot exactly as it should reach the client.
type Event struct {
	RoomID  string
	Payload []byte
}

// Broker fans a room's state notifications out to its current subscribers.
// Delivery is fire-and-forget and at-most-once per subscriber per publish:
// a slow or gone subscriber never blocks or fails the publishing operation.
type Broker interface {
	Publish(ctx context.Context, roomID string, payload any) error
	Subscribe(ctx context.Context, roomID string) (*Subscription, error)
}

// Subscription delivers events on C until Close is called.
type Subscription struct {
	C      <-chan Event
	cancel func()
	once   sync.Once
}

func (s *Subscription) Close() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

// LocalBroker is the in-process fan-out used when no Redis is configured.
type LocalBroker struct {
	mu      sync.RWMutex
	subs    map[string]map[int64]chan Event
	nextID  int64
	bufSize int
}

func NewLocalBroker(bufSize int) *LocalBroker {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &LocalBroker{subs: make(map[string]map[int64]chan Event), bufSize: bufSize}
}

func (b *LocalBroker) Publish(ctx context.Context, roomID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	ev := Event{RoomID: roomID, Payload: raw}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs[roomID] {
		select {
		case ch <- ev:
		default:
			// full buffer: drop for this subscriber, never block the publisher
			obslog.L().Debug("notify_drop", zap.String("room_id", roomID), zap.Int64("sub_id", id))
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context, roomID string) (*Subscription, error) {
	ch := make(chan Event, b.bufSize)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[int64]chan Event)
	}
	b.subs[roomID][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if m, ok := b.subs[roomID]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(b.subs, roomID)
			}
		}
		b.mu.Unlock()
		close(ch)
	}
	return &Subscription{C: ch, cancel: cancel}, nil
}
