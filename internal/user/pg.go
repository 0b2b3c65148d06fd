package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

type PGDirectory struct {
	db *sql.DB
}

func NewPGDirectory(databaseURL string) (*PGDirectory, error) {
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
	return &PGDirectory{db: db}, nil
}

func (d *PGDirectory) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *PGDirectory) LoginOrRegister(ctx context.Context, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty user name")
	}

	// Upsert-by-name: the no-op update lets RETURNING yield the existing row.
	const q = `INSERT INTO users (id, name, created_at)
	  VALUES ($1, $2, NOW())
	  ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
	  RETURNING id, name, created_at`

	var u User
	err := d.db.QueryRowContext(ctx, q, uuid.NewString(), name).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

func (d *PGDirectory) Resolve(ctx context.Context, id string) (string, error) {
	const q = `SELECT name FROM users WHERE id = $1`
	var name string
	err := d.db.QueryRowContext(ctx, q, strings.TrimSpace(id)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select user: %w", err)
	}
	return name, nil
}
