package room

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/badukhouse/baduk-server/internal/history"
	"github.com/badukhouse/baduk-server/internal/msgcat"
	"github.com/badukhouse/baduk-server/internal/notify"
	"github.com/badukhouse/baduk-server/internal/user"
)

type fixture struct {
	mgr     *Manager
	store   Store
	users   user.Directory
	history history.Recorder
	broker  *notify.LocalBroker
	alice   *user.User
	bob     *user.User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	users := user.NewMemoryDirectory()
	alice, err := users.LoginOrRegister(ctx, "alice")
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	bob, err := users.LoginOrRegister(ctx, "bob")
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}

	messages, err := msgcat.New("")
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}

	f := &fixture{
		store:   NewMemoryStore(),
		users:   users,
		history: history.NewMemoryRecorder(),
		broker:  notify.NewLocalBroker(16),
		alice:   alice,
		bob:     bob,
	}
	f.mgr = NewManager(f.store, f.users, f.history, f.broker, messages, opts...)
	return f
}

func (f *fixture) startedGame(t *testing.T) *Room {
	t.Helper()
	ctx := context.Background()
	r, err := f.mgr.CreateRoom(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := f.mgr.JoinRoom(ctx, r.ID, f.bob.ID); err != nil {
		t.Fatalf("join room: %v", err)
	}
	return r
}

func drain(sub *notify.Subscription) []Snapshot {
	var out []Snapshot
	for {
		select {
		case ev := <-sub.C:
			var s Snapshot
			if err := json.Unmarshal(ev.Payload, &s); err == nil {
				out = append(out, s)
			}
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestCreateRoomInitialShape(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.mgr.CreateRoom(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if r.Status != StatusWaiting {
		t.Fatalf("status = %s, want WAITING", r.Status)
	}
	if r.Turn != Black {
		t.Fatalf("turn = %s, want black", r.Turn)
	}
	if r.HostName != "alice" {
		t.Fatalf("host name = %q", r.HostName)
	}
	if r.GuestID != "" || r.StartedAt != nil {
		t.Fatalf("fresh room must have no guest and no start time")
	}

	var board [][]int
	if err := json.Unmarshal([]byte(r.BoardState), &board); err != nil {
		t.Fatalf("board is not a matrix: %v", err)
	}
	if len(board) != 19 || len(board[0]) != 19 {
		t.Fatalf("board is %dx%d, want 19x19", len(board), len(board[0]))
	}
	for _, row := range board {
		for _, c := range row {
			if c != 0 {
				t.Fatalf("fresh board has a stone")
			}
		}
	}
}

func TestCreateRoomUnknownHost(t *testing.T) {
	f := newFixture(t)
	if _, err := f.mgr.CreateRoom(context.Background(), "nope"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestJoinRoomStartsGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.mgr.CreateRoom(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	sub, err := f.broker.Subscribe(ctx, r.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	snap, err := f.mgr.JoinRoom(ctx, r.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if snap.Status != StatusPlaying {
		t.Fatalf("status = %s, want PLAYING", snap.Status)
	}
	if snap.GuestName != "bob" {
		t.Fatalf("guest name = %q", snap.GuestName)
	}
	if !strings.Contains(snap.Message, "bob") {
		t.Fatalf("join message %q does not name the guest", snap.Message)
	}

	got, err := f.store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StartedAt == nil {
		t.Fatalf("started_at not set")
	}

	events := drain(sub)
	if len(events) != 1 {
		t.Fatalf("got %d notifications, want 1", len(events))
	}
}

func TestJoinRoomRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.startedGame(t)

	// already PLAYING
	carol, _ := f.users.LoginOrRegister(ctx, "carol")
	if _, err := f.mgr.JoinRoom(ctx, r.ID, carol.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("join playing room: err = %v, want ErrInvalidState", err)
	}

	// self-join of a waiting room
	r2, err := f.mgr.CreateRoom(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := f.mgr.JoinRoom(ctx, r2.ID, f.alice.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("self join: err = %v, want ErrInvalidState", err)
	}

	// unknown guest
	if _, err := f.mgr.JoinRoom(ctx, r2.ID, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown guest: err = %v, want ErrUserNotFound", err)
	}

	// unknown room
	if _, err := f.mgr.JoinRoom(ctx, "missing", f.bob.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("unknown room: err = %v, want ErrRoomNotFound", err)
	}
}

func TestSubmitMoveAlternatesTurns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	board1 := `[[1]]`
	snap, err := f.mgr.SubmitMove(ctx, r.ID, f.alice.ID, board1, White, nil, nil)
	if err != nil {
		t.Fatalf("host move: %v", err)
	}
	if snap.BoardState != board1 || snap.Turn != White {
		t.Fatalf("snapshot after host move: board=%q turn=%s", snap.BoardState, snap.Turn)
	}

	board2 := `[[1,2]]`
	cb, cw := 3, 0
	snap, err = f.mgr.SubmitMove(ctx, r.ID, f.bob.ID, board2, Black, &cb, &cw)
	if err != nil {
		t.Fatalf("guest move: %v", err)
	}
	if snap.Turn != Black || snap.CapturedBlack != 3 {
		t.Fatalf("snapshot after guest move: turn=%s capturedBlack=%d", snap.Turn, snap.CapturedBlack)
	}

	got, _ := f.store.Get(ctx, r.ID)
	if got.MoveCount != 2 {
		t.Fatalf("move count = %d, want 2", got.MoveCount)
	}
}

func TestSubmitMoveOutOfTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	before, _ := f.store.Get(ctx, r.ID)

	// turn is black, the guest may not move
	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.bob.ID, `[[2]]`, Black, nil, nil); !errors.Is(err, ErrTurnViolation) {
		t.Fatalf("err = %v, want ErrTurnViolation", err)
	}

	after, _ := f.store.Get(ctx, r.ID)
	if after.BoardState != before.BoardState || after.Turn != before.Turn || after.Version != before.Version {
		t.Fatalf("rejected move mutated the room")
	}

	// non-participant
	carol, _ := f.users.LoginOrRegister(ctx, "carol")
	if _, err := f.mgr.SubmitMove(ctx, r.ID, carol.ID, `[[2]]`, Black, nil, nil); !errors.Is(err, ErrTurnViolation) {
		t.Fatalf("outsider move: err = %v, want ErrTurnViolation", err)
	}
}

func TestSubmitMoveRequiresPlaying(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.mgr.CreateRoom(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.alice.ID, `[[1]]`, White, nil, nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestPartialCaptureUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	cb := 5
	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.alice.ID, `[[1]]`, White, &cb, nil); err != nil {
		t.Fatalf("move: %v", err)
	}
	cw := 2
	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.bob.ID, `[[1,2]]`, Black, nil, &cw); err != nil {
		t.Fatalf("move: %v", err)
	}

	got, _ := f.store.Get(ctx, r.ID)
	if got.CapturedBlack != 5 || got.CapturedWhite != 2 {
		t.Fatalf("captures = %d/%d, want 5/2", got.CapturedBlack, got.CapturedWhite)
	}
}

func TestUpdateGameStateFinish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.alice.ID, `[[1]]`, White, nil, nil); err != nil {
		t.Fatalf("move: %v", err)
	}

	snap, err := f.mgr.UpdateGameState(ctx, r.ID, `[[1]]`, White, true, string(Black), "", nil, nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if snap.Status != StatusFinished || !snap.IsOver || snap.Winner != string(Black) {
		t.Fatalf("snapshot = %+v", snap)
	}

	// host won as black, guest lost
	aliceHist, _ := f.history.ListByUser(ctx, f.alice.ID)
	bobHist, _ := f.history.ListByUser(ctx, f.bob.ID)
	if len(aliceHist) != 1 || aliceHist[0].Result != history.ResultWin {
		t.Fatalf("alice history = %+v", aliceHist)
	}
	if len(bobHist) != 1 || bobHist[0].Result != history.ResultLoss {
		t.Fatalf("bob history = %+v", bobHist)
	}
	if aliceHist[0].MovesCount != 1 || aliceHist[0].GameType != history.GameTypeBaduk {
		t.Fatalf("alice record = %+v", aliceHist[0])
	}
	if aliceHist[0].OpponentName != "bob" || bobHist[0].OpponentName != "alice" {
		t.Fatalf("opponent names wrong: %q vs %q", aliceHist[0].OpponentName, bobHist[0].OpponentName)
	}
}

func TestUpdateGameStateDraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	if _, err := f.mgr.UpdateGameState(ctx, r.ID, `[[0]]`, Black, true, WinnerDraw, "", nil, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}
	aliceHist, _ := f.history.ListByUser(ctx, f.alice.ID)
	bobHist, _ := f.history.ListByUser(ctx, f.bob.ID)
	if len(aliceHist) != 1 || aliceHist[0].Result != history.ResultDraw {
		t.Fatalf("alice history = %+v", aliceHist)
	}
	if len(bobHist) != 1 || bobHist[0].Result != history.ResultDraw {
		t.Fatalf("bob history = %+v", bobHist)
	}
}

func TestFinishIsRecordedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	for i := 0; i < 2; i++ {
		if _, err := f.mgr.UpdateGameState(ctx, r.ID, `[[1]]`, White, true, string(Black), "", nil, nil); err != nil {
			t.Fatalf("finish %d: %v", i, err)
		}
	}
	aliceHist, _ := f.history.ListByUser(ctx, f.alice.ID)
	if len(aliceHist) != 1 {
		t.Fatalf("repeated finish recorded %d results, want 1", len(aliceHist))
	}
}

func TestWaitingOverrideResetsRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	cb := 4
	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.alice.ID, `[[1]]`, White, &cb, nil); err != nil {
		t.Fatalf("move: %v", err)
	}

	snap, err := f.mgr.UpdateGameState(ctx, r.ID, initialBoardState(), Black, false, "", StatusWaiting, nil, nil)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if snap.Status != StatusWaiting || snap.GuestName != "" || snap.Winner != "" {
		t.Fatalf("snapshot after reset = %+v", snap)
	}

	got, _ := f.store.Get(ctx, r.ID)
	if got.GuestID != "" || got.StartedAt != nil || got.CapturedBlack != 0 || got.MoveCount != 0 {
		t.Fatalf("reset left residue: %+v", got)
	}
	if got.HostID != f.alice.ID {
		t.Fatalf("reset must keep the host")
	}

	// the reset room is joinable again
	if _, err := f.mgr.JoinRoom(ctx, r.ID, f.bob.ID); err != nil {
		t.Fatalf("rejoin after reset: %v", err)
	}
}

func TestRematchWithGuestSeated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	if _, err := f.mgr.UpdateGameState(ctx, r.ID, `[[1]]`, White, true, string(Black), "", nil, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	snap, err := f.mgr.UpdateGameState(ctx, r.ID, initialBoardState(), Black, false, "", "", nil, nil)
	if err != nil {
		t.Fatalf("rematch: %v", err)
	}
	if snap.Status != StatusPlaying {
		t.Fatalf("status = %s, want PLAYING", snap.Status)
	}
	if snap.Winner != "" || snap.GuestName != "bob" {
		t.Fatalf("rematch snapshot = %+v", snap)
	}
	got, _ := f.store.Get(ctx, r.ID)
	if got.MoveCount != 0 || got.CapturedBlack != 0 || got.CapturedWhite != 0 {
		t.Fatalf("rematch kept counters: %+v", got)
	}
}

func TestRematchWithoutGuestReopens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	// guest forfeits, which clears the seat and finishes the game
	if err := f.mgr.HandleDisconnect(ctx, f.bob.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	snap, err := f.mgr.UpdateGameState(ctx, r.ID, initialBoardState(), Black, false, "", "", nil, nil)
	if err != nil {
		t.Fatalf("rematch: %v", err)
	}
	if snap.Status != StatusWaiting {
		t.Fatalf("status = %s, want WAITING", snap.Status)
	}
	if snap.Winner != "" || snap.GuestName != "" {
		t.Fatalf("reopened snapshot = %+v", snap)
	}
}

func TestHostDisconnectForfeitsGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	sub, err := f.broker.Subscribe(ctx, r.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.alice.ID, `[[1]]`, White, nil, nil); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.bob.ID, `[[1,2]]`, Black, nil, nil); err != nil {
		t.Fatalf("move: %v", err)
	}

	if err := f.mgr.HandleDisconnect(ctx, f.alice.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	got, _ := f.store.Get(ctx, r.ID)
	if got.Status != StatusFinished || got.Winner != string(White) {
		t.Fatalf("room after forfeit = %+v", got)
	}
	// the host left, the guest seat survives
	if got.GuestID != f.bob.ID {
		t.Fatalf("guest seat cleared on host forfeit")
	}

	bobHist, _ := f.history.ListByUser(ctx, f.bob.ID)
	aliceHist, _ := f.history.ListByUser(ctx, f.alice.ID)
	if len(bobHist) != 1 || bobHist[0].Result != history.ResultWin {
		t.Fatalf("bob history = %+v", bobHist)
	}
	if len(aliceHist) != 1 || aliceHist[0].Result != history.ResultLoss {
		t.Fatalf("alice history = %+v", aliceHist)
	}
	if bobHist[0].MovesCount != 0 {
		t.Fatalf("forfeit must record zero moves, got %d", bobHist[0].MovesCount)
	}

	events := drain(sub)
	var over int
	for _, s := range events {
		if s.IsOver {
			over++
			if s.Message == "" {
				t.Fatalf("forfeit notification has no message")
			}
		}
	}
	if over != 1 {
		t.Fatalf("got %d game-over notifications, want 1", over)
	}
}

func TestGuestDisconnectClearsSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	if err := f.mgr.HandleDisconnect(ctx, f.bob.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	got, _ := f.store.Get(ctx, r.ID)
	if got.Status != StatusFinished || got.Winner != string(Black) {
		t.Fatalf("room after guest forfeit = %+v", got)
	}
	if got.GuestID != "" || got.GuestName != "" {
		t.Fatalf("guest seat not cleared")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	for i := 0; i < 3; i++ {
		if err := f.mgr.HandleDisconnect(ctx, f.bob.ID); err != nil {
			t.Fatalf("disconnect %d: %v", i, err)
		}
	}
	got, _ := f.store.Get(ctx, r.ID)
	if got.Status != StatusFinished || got.Winner != string(Black) {
		t.Fatalf("room = %+v", got)
	}
	aliceHist, _ := f.history.ListByUser(ctx, f.alice.ID)
	if len(aliceHist) != 1 {
		t.Fatalf("repeated disconnects recorded %d results, want 1", len(aliceHist))
	}
}

func TestHostDisconnectClosesWaitingRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.mgr.CreateRoom(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.mgr.HandleDisconnect(ctx, f.alice.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	got, _ := f.store.Get(ctx, r.ID)
	if got.Status != StatusFinished || got.Winner != "" {
		t.Fatalf("waiting room after host left = %+v", got)
	}
	aliceHist, _ := f.history.ListByUser(ctx, f.alice.ID)
	if len(aliceHist) != 0 {
		t.Fatalf("closing an empty room must not produce match results")
	}

	open, err := f.mgr.WaitingRooms(ctx)
	if err != nil {
		t.Fatalf("waiting rooms: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("closed room still listed: %+v", open)
	}
}

func TestGuestDisconnectAfterFinishIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	if _, err := f.mgr.UpdateGameState(ctx, r.ID, `[[1]]`, White, true, string(Black), "", nil, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	sub, _ := f.broker.Subscribe(ctx, r.ID)
	defer sub.Close()

	if err := f.mgr.HandleDisconnect(ctx, f.bob.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	got, _ := f.store.Get(ctx, r.ID)
	if got.GuestID != "" {
		t.Fatalf("guest seat not cleared")
	}
	if got.Status != StatusFinished || got.Winner != string(Black) {
		t.Fatalf("terminal record mutated: %+v", got)
	}
	if events := drain(sub); len(events) != 0 {
		t.Fatalf("silent seat clear published %d notifications", len(events))
	}

	// history stays at the one result from the real finish
	bobHist, _ := f.history.ListByUser(ctx, f.bob.ID)
	if len(bobHist) != 1 {
		t.Fatalf("bob history = %+v", bobHist)
	}
}

func TestHostDisconnectAfterFinishNotifiesGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.startedGame(t)

	if _, err := f.mgr.UpdateGameState(ctx, r.ID, `[[1]]`, White, true, string(White), "", nil, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	sub, _ := f.broker.Subscribe(ctx, r.ID)
	defer sub.Close()

	before, _ := f.store.Get(ctx, r.ID)
	if err := f.mgr.HandleDisconnect(ctx, f.alice.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	after, _ := f.store.Get(ctx, r.ID)
	if after.Version != before.Version {
		t.Fatalf("host leaving a finished room must not write")
	}

	events := drain(sub)
	if len(events) != 1 || events[0].Message == "" {
		t.Fatalf("expected one closing notification, got %+v", events)
	}
}

func TestNudge(t *testing.T) {
	// pin the picker so the phrase is deterministic
	f := newFixture(t, WithNudgePicker(func(n int) int { return 0 }))
	ctx := context.Background()
	r := f.startedGame(t)

	snap, err := f.mgr.Nudge(ctx, r.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("nudge: %v", err)
	}
	if snap.Message == "" {
		t.Fatalf("nudge from host produced no message")
	}
	if !strings.Contains(snap.Message, "bob") {
		t.Fatalf("nudge message %q does not name the opponent", snap.Message)
	}

	snap, err = f.mgr.Nudge(ctx, r.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("nudge: %v", err)
	}
	if !strings.Contains(snap.Message, "alice") {
		t.Fatalf("guest nudge message %q does not name the host", snap.Message)
	}
}

func TestNudgeSilentNoOps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// WAITING room: plain snapshot, no message
	r, err := f.mgr.CreateRoom(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, err := f.mgr.Nudge(ctx, r.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("nudge: %v", err)
	}
	if snap.Message != "" {
		t.Fatalf("nudge in waiting room produced %q", snap.Message)
	}

	// unknown caller
	r2 := f.startedGame(t)
	snap, err = f.mgr.Nudge(ctx, r2.ID, "ghost")
	if err != nil {
		t.Fatalf("nudge: %v", err)
	}
	if snap.Message != "" {
		t.Fatalf("nudge from unknown user produced %q", snap.Message)
	}

	// unknown room still errors
	if _, err := f.mgr.Nudge(ctx, "missing", f.alice.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestWaitingRoomsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older, err := f.mgr.CreateRoom(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// nudge CreatedAt apart; the memory store keeps whatever we save
	if _, err := f.store.Update(ctx, older.ID, func(cur *Room) error {
		cur.CreatedAt = cur.CreatedAt.Add(-time.Minute)
		return nil
	}); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	newer, err := f.mgr.CreateRoom(ctx, f.bob.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// a playing room must not be listed
	f.startedGame(t)

	out, err := f.mgr.WaitingRooms(ctx)
	if err != nil {
		t.Fatalf("waiting rooms: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d listings, want 2", len(out))
	}
	if out[0].RoomID != newer.ID || out[1].RoomID != older.ID {
		t.Fatalf("order wrong: %+v", out)
	}
	if out[0].HostName != "bob" {
		t.Fatalf("listing host = %q", out[0].HostName)
	}
}

func TestFullSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.mgr.CreateRoom(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sub, _ := f.broker.Subscribe(ctx, r.ID)
	defer sub.Close()

	if _, err := f.mgr.JoinRoom(ctx, r.ID, f.bob.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.alice.ID, `[[1]]`, White, nil, nil); err != nil {
		t.Fatalf("black move: %v", err)
	}
	if _, err := f.mgr.SubmitMove(ctx, r.ID, f.bob.ID, `[[1,2]]`, Black, nil, nil); err != nil {
		t.Fatalf("white move: %v", err)
	}
	if err := f.mgr.HandleDisconnect(ctx, f.alice.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	snap, err := f.mgr.GameState(ctx, r.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !snap.IsOver || snap.Winner != string(White) {
		t.Fatalf("final snapshot = %+v", snap)
	}

	events := drain(sub)
	var over int
	for _, s := range events {
		if s.IsOver {
			over++
		}
	}
	if over != 1 {
		t.Fatalf("lifecycle published %d game-over notifications, want 1", over)
	}
}
