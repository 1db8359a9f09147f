package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/terra-clan/quiz-engine/internal/models"
)

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  answers TEXT NOT NULL DEFAULT '[]',
  results TEXT NOT NULL DEFAULT '[]',
  score REAL NOT NULL,
  total REAL NOT NULL,
  percentage INTEGER NOT NULL,
  remote_addr TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_created_at ON attempts (created_at);
`

// SQLiteRepository implements Repository on an embedded SQLite database
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database and ensures the schema exists
func NewSQLiteRepository(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	if dsn == "" {
		dsn = "file:quiz.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveAttempt(ctx context.Context, a *models.Attempt) error {
	resultsJSON, err := json.Marshal(a.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attempts (id, answers, results, score, total, percentage, remote_addr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		a.ID,
		string(answersJSON(a.Answers)),
		string(resultsJSON),
		a.Score.Score,
		a.Score.Total,
		a.Score.Percentage,
		a.RemoteAddr,
		a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrAttemptExists, a.ID)
	}
	return nil
}

func (r *SQLiteRepository) GetAttempt(ctx context.Context, id string) (*models.Attempt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, answers, results, score, total, percentage, remote_addr, created_at
		FROM attempts WHERE id = $1`, id)

	a, err := scanSQLiteAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAttempts(ctx context.Context, filter models.AttemptFilter) ([]*models.Attempt, error) {
	var since int64
	if filter.Since != nil {
		since = filter.Since.UnixMilli()
	}
	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, answers, results, score, total, percentage, remote_addr, created_at
		FROM attempts
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, since, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.Attempt, 0)
	for rows.Next() {
		a, err := scanSQLiteAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *SQLiteRepository) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attempts WHERE created_at < $1`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete attempts: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAttempt(row rowScanner) (*models.Attempt, error) {
	var a models.Attempt
	var answers, results string
	var createdAt int64

	if err := row.Scan(
		&a.ID,
		&answers,
		&results,
		&a.Score.Score,
		&a.Score.Total,
		&a.Score.Percentage,
		&a.RemoteAddr,
		&createdAt,
	); err != nil {
		return nil, err
	}

	a.Answers = json.RawMessage(answers)
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	if err := json.Unmarshal([]byte(results), &a.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return &a, nil
}
