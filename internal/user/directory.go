package user

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

// User is a registered player identity.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory resolves and registers player identities. Registration is a
// trivial upsert-by-name: logging in with a known name returns the existing
// identity.
type Directory interface {
	LoginOrRegister(ctx context.Context, name string) (*User, error)
	Resolve(ctx context.Context, id string) (string, error)
}
