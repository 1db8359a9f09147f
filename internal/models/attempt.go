package models

import (
	"encoding/json"
	"time"

	"github.com/terra-clan/quiz-engine/internal/quiz"
)

// Attempt is one graded submission as archived by the grading service
type Attempt struct {
	ID         string          `json:"id"`
	Answers    json.RawMessage `json:"answers"`
	Results    []quiz.Result   `json:"results"`
	Score      quiz.Score      `json:"score"`
	RemoteAddr string          `json:"remote_addr,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AttemptFilter contains options for listing attempts
type AttemptFilter struct {
	Since  *time.Time
	Limit  int
	Offset int
}

// ScoredEvent is published and broadcast for every archived attempt
type ScoredEvent struct {
	AttemptID  string    `json:"attempt_id"`
	Score      float64   `json:"score"`
	Total      float64   `json:"total"`
	Percentage int       `json:"percentage"`
	Questions  int       `json:"questions"`
	ScoredAt   time.Time `json:"scored_at"`
}

// NewScoredEvent builds the event for an attempt
func NewScoredEvent(a *Attempt) ScoredEvent {
	return ScoredEvent{
		AttemptID:  a.ID,
		Score:      a.Score.Score,
		Total:      a.Score.Total,
		Percentage: a.Score.Percentage,
		Questions:  len(a.Results),
		ScoredAt:   a.CreatedAt,
	}
}
