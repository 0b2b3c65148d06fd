package room

import "context"

// Store is durable keyed storage of rooms; pure CRUD, no policy.
//
// Update is the unit of consistency: it applies fn to the current persisted
// room and commits atomically, so two concurrent mutations of the same room
// cannot both succeed against stale state. An error returned by fn aborts the
// update without writing and is passed through to the caller. Implementations
// return ErrConflict when a concurrent writer keeps winning.
//
// Rooms are never deleted by the core; retention is an external policy.
type Store interface {
	Create(ctx context.Context, r *Room) error
	Get(ctx context.Context, id string) (*Room, error)
	Save(ctx context.Context, r *Room) error
	Update(ctx context.Context, id string, fn func(*Room) error) (*Room, error)
	ListByStatus(ctx context.Context, st Status) ([]*Room, error)
	ListAll(ctx context.Context) ([]*Room, error)

	// RoomsByUser returns every room the user occupies as host or guest.
	RoomsByUser(ctx context.Context, userID string) ([]*Room, error)
}
