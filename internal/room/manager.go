package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/badukhouse/baduk-server/internal/history"
	"github.com/badukhouse/baduk-server/internal/msgcat"
	"github.com/badukhouse/baduk-server/internal/notify"
	"github.com/badukhouse/baduk-server/internal/obslog"
	"github.com/badukhouse/baduk-server/internal/user"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const boardSize = 19

// Manager owns all room lifecycle transitions, turn arbitration, disconnect
// handling and notification triggers. Validation failures are detected before
// any write; a store failure aborts the operation and no notification is
// published (notification only follows a committed write).
type Manager struct {
	store     Store
	users     user.Directory
	history   history.Recorder
	broker    notify.Broker
	messages  *msgcat.Catalog
	nudgeKeys []string
	pick      func(n int) int
}

type Option func(*Manager)

// WithNudgePicker replaces the random nudge phrase picker. Used by tests to
// pin the selected phrase.
func WithNudgePicker(pick func(n int) int) Option {
	return func(m *Manager) { m.pick = pick }
}

func NewManager(store Store, users user.Directory, recorder history.Recorder, broker notify.Broker, messages *msgcat.Catalog, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		users:    users,
		history:  recorder,
		broker:   broker,
		messages: messages,
		pick:     rand.IntN,
	}
	if messages != nil {
		m.nudgeKeys = messages.Keys("nudge.")
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// initialBoardState returns the empty 19x19 board as the JSON matrix the
// clients expect.
func initialBoardState() string {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < boardSize; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("[")
		for j := 0; j < boardSize; j++ {
			if j > 0 {
				b.WriteString(",")
			}
			b.WriteString("0")
		}
		b.WriteString("]")
	}
	b.WriteString("]")
	return b.String()
}

// CreateRoom opens a new WAITING room for the host. No notification is
// published: nobody is subscribed yet.
func (m *Manager) CreateRoom(ctx context.Context, hostID string) (*Room, error) {
	hostName, err := m.users.Resolve(ctx, hostID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	r := &Room{
		ID:         uuid.NewString(),
		HostID:     strings.TrimSpace(hostID),
		HostName:   hostName,
		Status:     StatusWaiting,
		BoardState: initialBoardState(),
		Turn:       Black, // black moves first
		CreatedAt:  time.Now(),
	}
	if err := m.store.Create(ctx, r); err != nil {
		return nil, err
	}
	obslog.L().Info("room_create",
		zap.String("room_id", r.ID),
		zap.String("host_id", r.HostID),
	)
	return r, nil
}

// JoinRoom seats the guest, starts the game and publishes a "guest joined"
// snapshot to the room channel.
func (m *Manager) JoinRoom(ctx context.Context, roomID, guestID string) (*Snapshot, error) {
	guestName, err := m.users.Resolve(ctx, guestID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	updated, err := m.store.Update(ctx, roomID, func(cur *Room) error {
		if cur.Status != StatusWaiting {
			return ErrInvalidState
		}
		if cur.HostID == strings.TrimSpace(guestID) {
			return ErrInvalidState // self-join forbidden
		}
		now := time.Now()
		cur.GuestID = strings.TrimSpace(guestID)
		cur.GuestName = guestName
		cur.Status = StatusPlaying
		cur.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("room_join",
		zap.String("room_id", roomID),
		zap.String("guest_id", guestID),
	)

	snap := m.snapshotOf(updated)
	snap.Message = m.render("room.guest_joined", map[string]string{"Guest": guestName},
		fmt.Sprintf("%s joined the game.", guestName))
	m.publish(ctx, roomID, snap)
	return snap, nil
}

// SubmitMove applies a move for the requesting user. The caller must be the
// host while turn is black, or the guest while turn is white; the board blob
// and next turn are caller-supplied and stored verbatim. Capture counters are
// a partial update: a nil pointer leaves the stored counter unchanged.
//
// No notification is published here; the transport layer relays the returned
// snapshot, which keeps the write path and the broadcast path decoupled.
func (m *Manager) SubmitMove(ctx context.Context, roomID, userID, board string, nextTurn Color, capturedBlack, capturedWhite *int) (*Snapshot, error) {
	updated, err := m.store.Update(ctx, roomID, func(cur *Room) error {
		if cur.Status != StatusPlaying {
			return ErrInvalidState
		}
		isHostTurn := cur.Turn == Black && cur.HostID == userID
		isGuestTurn := cur.Turn == White && cur.GuestID != "" && cur.GuestID == userID
		if !isHostTurn && !isGuestTurn {
			return ErrTurnViolation
		}
		cur.BoardState = board
		cur.Turn = nextTurn
		if capturedBlack != nil {
			cur.CapturedBlack = *capturedBlack
		}
		if capturedWhite != nil {
			cur.CapturedWhite = *capturedWhite
		}
		cur.MoveCount++
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("room_move",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.String("turn", string(updated.Turn)),
		zap.Int("move_count", updated.MoveCount),
	)
	return m.snapshotOf(updated), nil
}

// UpdateGameState is the general-purpose state replace used for authoritative
// end-of-game declarations and rematch/reset flows. Board and turn are always
// overwritten. The caller relays the returned snapshot; nothing is published
// here.
func (m *Manager) UpdateGameState(ctx context.Context, roomID, board string, turn Color, isOver bool, winner string, statusOverride Status, capturedBlack, capturedWhite *int) (*Snapshot, error) {
	var becameFinished bool

	updated, err := m.store.Update(ctx, roomID, func(cur *Room) error {
		cur.BoardState = board
		cur.Turn = turn
		if capturedBlack != nil {
			cur.CapturedBlack = *capturedBlack
		}
		if capturedWhite != nil {
			cur.CapturedWhite = *capturedWhite
		}

		switch {
		case isOver:
			becameFinished = cur.Status != StatusFinished
			cur.Status = StatusFinished
			cur.Winner = winner
		case statusOverride == StatusWaiting:
			// explicit abandon-and-reopen: back to the initial shape
			m.reopen(cur)
		case cur.Status == StatusFinished:
			// rematch without an explicit override
			if cur.GuestID == "" {
				m.reopen(cur)
			} else {
				cur.Status = StatusPlaying
				cur.Winner = ""
				cur.CapturedBlack = 0
				cur.CapturedWhite = 0
				cur.MoveCount = 0
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("room_state_update",
		zap.String("room_id", roomID),
		zap.String("status", string(updated.Status)),
		zap.Bool("is_over", isOver),
		zap.String("winner", updated.Winner),
	)

	if becameFinished {
		m.recordOutcome(ctx, updated)
	}
	return m.snapshotOf(updated), nil
}

// reopen resets a room to its freshly created shape, keeping id, host and
// the caller-supplied board/turn.
func (m *Manager) reopen(cur *Room) {
	cur.Status = StatusWaiting
	cur.Winner = ""
	cur.GuestID = ""
	cur.GuestName = ""
	cur.StartedAt = nil
	cur.CapturedBlack = 0
	cur.CapturedWhite = 0
	cur.MoveCount = 0
}

// recordOutcome writes one MatchResult per seated participant for a finished
// game. Recorder failures are logged, never propagated.
func (m *Manager) recordOutcome(ctx context.Context, r *Room) {
	switch r.Winner {
	case string(Black):
		m.record(ctx, r.HostID, history.ResultWin, r.GuestName, r.MoveCount)
		m.record(ctx, r.GuestID, history.ResultLoss, r.HostName, r.MoveCount)
	case string(White):
		m.record(ctx, r.GuestID, history.ResultWin, r.HostName, r.MoveCount)
		m.record(ctx, r.HostID, history.ResultLoss, r.GuestName, r.MoveCount)
	case WinnerDraw:
		m.record(ctx, r.HostID, history.ResultDraw, r.GuestName, r.MoveCount)
		m.record(ctx, r.GuestID, history.ResultDraw, r.HostName, r.MoveCount)
	}
}

func (m *Manager) record(ctx context.Context, userID string, res history.Result, opponentName string, moves int) {
	if m.history == nil || strings.TrimSpace(userID) == "" {
		return
	}
	err := m.history.Record(ctx, history.MatchResult{
		UserID:       userID,
		Result:       res,
		OpponentName: opponentName,
		MovesCount:   moves,
		GameType:     history.GameTypeBaduk,
		PlayedAt:     time.Now(),
	})
	if err != nil {
		obslog.L().Error("history_record_error",
			zap.String("user_id", userID),
			zap.String("result", string(res)),
			zap.Error(err),
		)
	}
}

// Nudge returns the current snapshot annotated with a reminder phrase for the
// caller's opponent. It is a silent no-op (plain snapshot, no message) when
// the room is not playing, the caller is unknown, or no opponent can be
// identified.
func (m *Manager) Nudge(ctx context.Context, roomID, fromUserID string) (*Snapshot, error) {
	r, err := m.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	snap := m.snapshotOf(r)

	if r.Status != StatusPlaying {
		obslog.L().Warn("nudge_skip", zap.String("room_id", roomID), zap.String("reason", "not_playing"))
		return snap, nil
	}
	if _, err := m.users.Resolve(ctx, fromUserID); err != nil {
		obslog.L().Warn("nudge_skip", zap.String("room_id", roomID), zap.String("reason", "unknown_user"))
		return snap, nil
	}

	var opponent string
	switch {
	case r.HostID == fromUserID:
		opponent = r.GuestName
	case r.GuestID != "" && r.GuestID == fromUserID:
		opponent = r.HostName
	}
	if opponent == "" {
		obslog.L().Warn("nudge_skip", zap.String("room_id", roomID), zap.String("reason", "no_opponent"))
		return snap, nil
	}
	if len(m.nudgeKeys) == 0 {
		return snap, nil
	}

	key := m.nudgeKeys[m.pick(len(m.nudgeKeys))]
	snap.Message = m.render(key, map[string]string{"Opponent": opponent},
		fmt.Sprintf("%s, it's your move!", opponent))
	return snap, nil
}

// GameState returns the current snapshot of a room.
func (m *Manager) GameState(ctx context.Context, roomID string) (*Snapshot, error) {
	r, err := m.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return m.snapshotOf(r), nil
}

// WaitingRooms lists open rooms, newest first.
func (m *Manager) WaitingRooms(ctx context.Context) ([]Listing, error) {
	rooms, err := m.store.ListByStatus(ctx, StatusWaiting)
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	out := make([]Listing, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, Listing{
			RoomID:    r.ID,
			HostName:  r.HostName,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (m *Manager) snapshotOf(r *Room) *Snapshot {
	return &Snapshot{
		RoomID:        r.ID,
		BoardState:    r.BoardState,
		Turn:          r.Turn,
		Status:        r.Status,
		IsOver:        r.Status == StatusFinished,
		Winner:        r.Winner,
		HostName:      r.HostName,
		GuestName:     r.GuestName,
		CapturedBlack: r.CapturedBlack,
		CapturedWhite: r.CapturedWhite,
	}
}

func (m *Manager) render(key string, data map[string]string, fallback string) string {
	if m.messages == nil {
		return fallback
	}
	msg, err := m.messages.Render(key, data)
	if err != nil {
		obslog.L().Warn("message_render_error", zap.String("key", key), zap.Error(err))
		return fallback
	}
	return msg
}

func (m *Manager) publish(ctx context.Context, roomID string, snap *Snapshot) {
	if m.broker == nil {
		return
	}
	if err := m.broker.Publish(ctx, roomID, snap); err != nil {
		obslog.L().Warn("notify_publish_error", zap.String("room_id", roomID), zap.Error(err))
	}
}
