package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each room as a JSON value plus index sets so that
// status listings and the user→room lookup need no full scan.
//
// Update runs the mutation inside WATCH on the room key: the commit fails if
// another writer touched the room between read and write, which makes every
// room mutation an atomic read-modify-write. WATCH is per-key, so operations
// on different rooms never serialize against each other.
type RedisStore struct {
	rdb *redis.Client
}

const updateRetries = 3

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func roomKey(id string) string        { return "room:" + strings.TrimSpace(id) }
func idxStatusKey(st Status) string   { return "room:index:status:" + string(st) }
func idxUserKey(userID string) string { return "room:index:user:" + strings.TrimSpace(userID) }
func idxAllKey() string               { return "room:index:rooms" }

func (s *RedisStore) Create(ctx context.Context, r *Room) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, roomKey(r.ID), raw, 0)
	pipe.SAdd(ctx, idxAllKey(), r.ID)
	pipe.SAdd(ctx, idxStatusKey(r.Status), r.ID)
	if r.HostID != "" {
		pipe.SAdd(ctx, idxUserKey(r.HostID), r.ID)
	}
	if r.GuestID != "" {
		pipe.SAdd(ctx, idxUserKey(r.GuestID), r.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Room, error) {
	raw, err := s.rdb.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	var r Room
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("unmarshal room: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) Save(ctx context.Context, r *Room) error {
	_, err := s.Update(ctx, r.ID, func(cur *Room) error {
		v := cur.Version
		*cur = *r
		cur.Version = v
		return nil
	})
	return err
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Room) error) (*Room, error) {
	key := roomKey(id)
	var updated *Room

	for attempt := 0; attempt < updateRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrRoomNotFound
			}
			if err != nil {
				return err
			}
			var cur Room
			if err := json.Unmarshal(raw, &cur); err != nil {
				return fmt.Errorf("unmarshal room: %w", err)
			}
			prev := cur
			if err := fn(&cur); err != nil {
				return err
			}
			cur.Version++

			newRaw, err := json.Marshal(&cur)
			if err != nil {
				return fmt.Errorf("marshal room: %w", err)
			}

			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, newRaw, 0)
			if prev.Status != cur.Status {
				pipe.SRem(ctx, idxStatusKey(prev.Status), id)
				pipe.SAdd(ctx, idxStatusKey(cur.Status), id)
			}
			if prev.GuestID != cur.GuestID {
				if prev.GuestID != "" {
					pipe.SRem(ctx, idxUserKey(prev.GuestID), id)
				}
				if cur.GuestID != "" {
					pipe.SAdd(ctx, idxUserKey(cur.GuestID), id)
				}
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			updated = &cur
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue // lost the race, re-read and retry
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrConflict
}

func (s *RedisStore) ListByStatus(ctx context.Context, st Status) ([]*Room, error) {
	ids, err := s.rdb.SMembers(ctx, idxStatusKey(st)).Result()
	if err != nil {
		return nil, err
	}
	return s.getAll(ctx, ids)
}

func (s *RedisStore) ListAll(ctx context.Context) ([]*Room, error) {
	ids, err := s.rdb.SMembers(ctx, idxAllKey()).Result()
	if err != nil {
		return nil, err
	}
	return s.getAll(ctx, ids)
}

func (s *RedisStore) RoomsByUser(ctx context.Context, userID string) ([]*Room, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	ids, err := s.rdb.SMembers(ctx, idxUserKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	return s.getAll(ctx, ids)
}

func (s *RedisStore) getAll(ctx context.Context, ids []string) ([]*Room, error) {
	var out []*Room
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if errors.Is(err, ErrRoomNotFound) {
			continue // stale index entry
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
