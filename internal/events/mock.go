package events

import (
	"context"
	"sync"

	"github.com/terra-clan/quiz-engine/internal/models"
)

// MockPublisher records events in memory (for testing)
type MockPublisher struct {
	mu     sync.Mutex
	events []models.ScoredEvent
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{events: make([]models.ScoredEvent, 0)}
}

func (m *MockPublisher) PublishAttemptScored(_ context.Context, event models.ScoredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Close is a no-op for the mock publisher
func (m *MockPublisher) Close() error {
	return nil
}

// Events returns all published events
func (m *MockPublisher) Events() []models.ScoredEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ScoredEvent, len(m.events))
	copy(out, m.events)
	return out
}
