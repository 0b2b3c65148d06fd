package user

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memdir is an in-memory directory used when no database is configured.
type memdir struct {
	mu     sync.RWMutex
	byID   map[string]*User
	byName map[string]*User
}

func NewMemoryDirectory() Directory {
	return &memdir{
		byID:   make(map[string]*User),
		byName: make(map[string]*User),
	}
}

func (m *memdir) LoginOrRegister(ctx context.Context, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty user name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.byName[name]; ok {
		cp := *u
		return &cp, nil
	}
	u := &User{ID: uuid.NewString(), Name: name, CreatedAt: time.Now()}
	m.byID[u.ID] = u
	m.byName[name] = u
	cp := *u
	return &cp, nil
}

func (m *memdir) Resolve(ctx context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byID[strings.TrimSpace(id)]; ok {
		return u.Name, nil
	}
	return "", ErrNotFound
}
