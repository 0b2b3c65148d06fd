package room

import (
	"strings"
	"time"
)

// Color identifies a side on the board. Black is bound to the host and white
// to the guest for the lifetime of one game instance; the binding resets when
// the room returns to WAITING.
type Color string

const (
	Black Color = "black"
	White Color = "white"
)

// WinnerDraw is the only winner value that is not a Color.
const WinnerDraw = "draw"

// Status represents the room lifecycle state.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// Room is the persisted state of one pairing and its current game. BoardState
// is an opaque blob owned and interpreted only by clients; the server stores
// and relays it verbatim.
type Room struct {
	ID            string     `json:"id"`
	HostID        string     `json:"host_id"`
	HostName      string     `json:"host_name"`
	GuestID       string     `json:"guest_id,omitempty"`
	GuestName     string     `json:"guest_name,omitempty"`
	Status        Status     `json:"status"`
	BoardState    string     `json:"board_state"`
	Turn          Color      `json:"turn"`
	Winner        string     `json:"winner,omitempty"` // "black", "white", "draw" or empty
	CapturedBlack int        `json:"captured_black"`
	CapturedWhite int        `json:"captured_white"`
	MoveCount     int        `json:"move_count"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	Version       int64      `json:"version"`
}

// IsParticipant reports whether userID occupies either seat of the room.
func (r *Room) IsParticipant(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	return r.HostID == userID || (r.GuestID != "" && r.GuestID == userID)
}

// Snapshot is the externally visible projection of a Room sent to clients.
type Snapshot struct {
	RoomID        string `json:"roomId"`
	BoardState    string `json:"boardState"`
	Turn          Color  `json:"turn"`
	Status        Status `json:"status"`
	IsOver        bool   `json:"isGameOver"`
	Winner        string `json:"winner,omitempty"`
	HostName      string `json:"hostName"`
	GuestName     string `json:"guestName,omitempty"`
	CapturedBlack int    `json:"capturedBlack"`
	CapturedWhite int    `json:"capturedWhite"`
	Message       string `json:"message,omitempty"`
}

// Listing is the lobby projection of a waiting room.
type Listing struct {
	RoomID    string    `json:"roomId"`
	HostName  string    `json:"hostName"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Errors
var (
	ErrRoomNotFound  = errf("room not found")
	ErrUserNotFound  = errf("user not found")
	ErrInvalidState  = errf("operation not allowed in current room status")
	ErrTurnViolation = errf("not your turn")
	ErrConflict      = errf("concurrent update detected")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
