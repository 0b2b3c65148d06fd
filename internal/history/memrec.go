package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memrec is an in-memory recorder used when no database is configured.
type memrec struct {
	mu     sync.RWMutex
	byUser map[string][]MatchResult
}

func NewMemoryRecorder() Recorder {
	return &memrec{byUser: make(map[string][]MatchResult)}
}

func (m *memrec) Record(ctx context.Context, r MatchResult) error {
	if r.PlayedAt.IsZero() {
		r.PlayedAt = time.Now()
	}
	if r.GameType == "" {
		r.GameType = GameTypeBaduk
	}
	m.mu.Lock()
	m.byUser[r.UserID] = append(m.byUser[r.UserID], r)
	m.mu.Unlock()
	return nil
}

func (m *memrec) ListByUser(ctx context.Context, userID string) ([]MatchResult, error) {
	m.mu.RLock()
	list := append([]MatchResult(nil), m.byUser[userID]...)
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].PlayedAt.After(list[j].PlayedAt) })
	return list, nil
}
