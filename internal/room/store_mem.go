package room

import (
	"context"
	"sync"
)

// memstore is an in-memory store used for tests and DB-less development runs.
// A per-room mutex keeps each room's read-modify-write atomic without
// serializing operations on different rooms.
type memstore struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	locks map[string]*sync.Mutex
}

func NewMemoryStore() Store {
	return &memstore{
		rooms: make(map[string]*Room),
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *memstore) roomLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *memstore) Create(ctx context.Context, r *Room) error {
	cp := *r
	m.mu.Lock()
	m.rooms[r.ID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *memstore) Get(ctx context.Context, id string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memstore) Save(ctx context.Context, r *Room) error {
	_, err := m.Update(ctx, r.ID, func(cur *Room) error {
		v := cur.Version
		*cur = *r
		cur.Version = v
		return nil
	})
	return err
}

func (m *memstore) Update(ctx context.Context, id string, fn func(*Room) error) (*Room, error) {
	l := m.roomLock(id)
	l.Lock()
	defer l.Unlock()

	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	cur := *r
	if err := fn(&cur); err != nil {
		return nil, err
	}
	cur.Version++

	m.mu.Lock()
	m.rooms[id] = &cur
	m.mu.Unlock()

	cp := cur
	return &cp, nil
}

func (m *memstore) ListByStatus(ctx context.Context, st Status) ([]*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Room
	for _, r := range m.rooms {
		if r.Status == st {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memstore) ListAll(ctx context.Context) ([]*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memstore) RoomsByUser(ctx context.Context, userID string) ([]*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Room
	for _, r := range m.rooms {
		if r.IsParticipant(userID) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}
