package history

import (
	"context"
	"time"
)

// Result of one finished match, from the recorded player's point of view.
type Result string

const (
	ResultWin  Result = "WIN"
	ResultLoss Result = "LOSS"
	ResultDraw Result = "DRAW"
)

// GameTypeBaduk is the only game type this server produces.
const GameTypeBaduk = "baduk"

// MatchResult is an append-only record handed over on every terminal
// transition, forfeits included.
type MatchResult struct {
	UserID       string    `json:"user_id"`
	Result       Result    `json:"result"`
	OpponentName string    `json:"opponent_name"`
	MovesCount   int       `json:"moves_count"`
	GameType     string    `json:"game_type"`
	PlayedAt     time.Time `json:"played_at"`
}

// Recorder persists match results. Record is fire-and-forget from the
// orchestrator's point of view: callers log failures and move on.
type Recorder interface {
	Record(ctx context.Context, r MatchResult) error
	ListByUser(ctx context.Context, userID string) ([]MatchResult, error)
}
