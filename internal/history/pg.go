package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type PGRecorder struct {
	db *sql.DB
}

func NewPGRecorder(databaseURL string) (*PGRecorder, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PGRecorder{db: db}, nil
}

func (r *PGRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PGRecorder) Record(ctx context.Context, res MatchResult) error {
	playedAt := res.PlayedAt
	if playedAt.IsZero() {
		playedAt = time.Now()
	}
	gameType := res.GameType
	if gameType == "" {
		gameType = GameTypeBaduk
	}

	const q = `INSERT INTO game_histories (
	    user_id, result, opponent_name, moves_count, game_type, played_at
	  ) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, q,
		res.UserID, string(res.Result), res.OpponentName, res.MovesCount, gameType, playedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match result: %w", err)
	}
	return nil
}

func (r *PGRecorder) ListByUser(ctx context.Context, userID string) ([]MatchResult, error) {
	const q = `SELECT user_id, result, opponent_name, moves_count, game_type, played_at
	  FROM game_histories
	  WHERE user_id = $1
	  ORDER BY played_at DESC`

	rows, err := r.db.QueryContext(ctx, q, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("select match results: %w", err)
	}
	defer rows.Close()

	var out []MatchResult
	for rows.Next() {
		var m MatchResult
		var result string
		if err := rows.Scan(&m.UserID, &result, &m.OpponentName, &m.MovesCount, &m.GameType, &m.PlayedAt); err != nil {
			return nil, fmt.Errorf("scan match result: %w", err)
		}
		m.Result = Result(result)
		out = append(out, m)
	}
	return out, rows.Err()
}
