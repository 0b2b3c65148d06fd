package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/badukhouse/baduk-server/internal/history"
	"github.com/badukhouse/baduk-server/internal/obslog"
	"go.uber.org/zap"
)

// errSkip aborts a store.Update without writing when the per-status policy
// decides the room needs no mutation for this disconnect.
var errSkip = errf("no change")

type discAction int

const (
	discNone discAction = iota
	discForfeit
	discWaitingClosed
	discGuestCleared
	discHostLeftFinished
)

// HandleDisconnect applies the forfeit policy to every room the user occupies.
// It is idempotent: re-invoking it for a user already removed from all rooms
// is a no-op. Each room is mutated atomically on its own; the scan as a whole
// is not, and does not need to be.
func (m *Manager) HandleDisconnect(ctx context.Context, userID string) error {
	rooms, err := m.store.RoomsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list rooms for user: %w", err)
	}
	for _, r := range rooms {
		m.disconnectFromRoom(ctx, r.ID, userID)
	}
	return nil
}

func (m *Manager) disconnectFromRoom(ctx context.Context, roomID, userID string) {
	var (
		action     discAction
		winnerName string
		loserID    string
		loserName  string
		winnerID   string
		guestName  string
	)

	// The room passed in by the scan may be stale; every decision is made on
	// the current state inside the atomic update.
	updated, err := m.store.Update(ctx, roomID, func(cur *Room) error {
		if !cur.IsParticipant(userID) {
			action = discNone
			return errSkip
		}
		isHost := cur.HostID == userID

		switch cur.Status {
		case StatusPlaying:
			action = discForfeit
			if isHost {
				// host held black, so white wins
				cur.Winner = string(White)
				winnerID, winnerName = cur.GuestID, cur.GuestName
				loserID, loserName = cur.HostID, cur.HostName
			} else {
				cur.Winner = string(Black)
				winnerID, winnerName = cur.HostID, cur.HostName
				loserID, loserName = cur.GuestID, cur.GuestName
			}
			cur.Status = StatusFinished
			if !isHost {
				cur.GuestID, cur.GuestName = "", ""
			}
			return nil

		case StatusWaiting:
			// a room with no guest has no other occupant to protect
			if !isHost {
				action = discNone
				return errSkip
			}
			action = discWaitingClosed
			cur.Status = StatusFinished
			return nil

		case StatusFinished:
			if !isHost {
				// recycle the seat without touching the terminal record
				action = discGuestCleared
				cur.GuestID, cur.GuestName = "", ""
				return nil
			}
			if cur.GuestID != "" {
				action = discHostLeftFinished
				guestName = cur.GuestName
			}
			return errSkip
		}
		return errSkip
	})

	if err != nil && !errors.Is(err, errSkip) {
		obslog.L().Error("disconnect_update_error",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}

	switch action {
	case discForfeit:
		// both sides are recorded, the forfeiting player included; the move
		// count is not tracked at forfeit time
		m.record(ctx, winnerID, history.ResultWin, loserName, 0)
		m.record(ctx, loserID, history.ResultLoss, winnerName, 0)

		snap := m.snapshotOf(updated)
		snap.Message = m.render("room.opponent_left",
			map[string]string{"Loser": loserName, "Winner": winnerName},
			fmt.Sprintf("%s left the game. %s wins!", loserName, winnerName))
		m.publish(ctx, roomID, snap)
		obslog.L().Info("room_forfeit",
			zap.String("room_id", roomID),
			zap.String("loser_id", loserID),
			zap.String("winner", updated.Winner),
		)

	case discWaitingClosed:
		// nobody is subscribed to a waiting room, so no notification
		obslog.L().Info("room_waiting_closed",
			zap.String("room_id", roomID),
			zap.String("host_id", userID),
		)

	case discGuestCleared:
		obslog.L().Info("room_guest_left_finished",
			zap.String("room_id", roomID),
			zap.String("guest_id", userID),
		)

	case discHostLeftFinished:
		// the room stays FINISHED and unwritten; the guest is told it is closing
		var snap *Snapshot
		if r, err := m.store.Get(ctx, roomID); err == nil {
			snap = m.snapshotOf(r)
		}
		if snap != nil {
			snap.Message = m.render("room.closing",
				map[string]string{"Guest": guestName},
				"The host has left. This room is closing.")
			m.publish(ctx, roomID, snap)
		}
		obslog.L().Info("room_host_left_finished",
			zap.String("room_id", roomID),
			zap.String("host_id", userID),
		)
	}
}
