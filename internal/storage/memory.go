package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/terra-clan/quiz-engine/internal/models"
)

// MemoryRepository keeps attempts in process memory
type MemoryRepository struct {
	mu       sync.RWMutex
	attempts map[string]*models.Attempt
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{attempts: make(map[string]*models.Attempt)}
}

func (r *MemoryRepository) SaveAttempt(_ context.Context, a *models.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.attempts[a.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAttemptExists, a.ID)
	}
	cp := *a
	r.attempts[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetAttempt(_ context.Context, id string) (*models.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.attempts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) ListAttempts(_ context.Context, filter models.AttemptFilter) ([]*models.Attempt, error) {
	r.mu.RLock()
	result := make([]*models.Attempt, 0, len(r.attempts))
	for _, a := range r.attempts {
		if filter.Since != nil && a.CreatedAt.Before(*filter.Since) {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*models.Attempt{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *MemoryRepository) DeleteAttemptsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, a := range r.attempts {
		if a.CreatedAt.Before(cutoff) {
			delete(r.attempts, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
