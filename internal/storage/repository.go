package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/quiz-engine/internal/models"
)

// ErrAttemptExists is returned when an attempt id is archived twice
var ErrAttemptExists = errors.New("attempt already archived")

// Repository defines the interface for attempt persistence
type Repository interface {
	// Attempts
	SaveAttempt(ctx context.Context, a *models.Attempt) error
	// GetAttempt returns nil, nil when the attempt does not exist
	GetAttempt(ctx context.Context, id string) (*models.Attempt, error)
	ListAttempts(ctx context.Context, filter models.AttemptFilter) ([]*models.Attempt, error)
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
