package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terra-clan/quiz-engine/internal/grading"
	"github.com/terra-clan/quiz-engine/internal/models"
	"github.com/terra-clan/quiz-engine/internal/quiz"
)

const maxSubmitBytes = 1 << 20

// Response helpers

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes body without the envelope. The quiz wire format
// (/api/tasks and /api/submit) is a bare JSON array.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"tasks":  s.bank.Len(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.logger.Warn("attempt archive not ready", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Quiz handlers

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bank.Tasks())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmitBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	var subs []grading.Submission
	if err := json.Unmarshal(body, &subs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be a JSON array of answers")
		return
	}

	ctx := r.Context()
	attemptID := attemptIDFromContext(ctx)
	claimed := false

	if attemptID != "" {
		existing, err := s.repo.GetAttempt(ctx, attemptID)
		if err != nil {
			s.logger.Error("failed to look up attempt", "error", err, "attempt_id", attemptID)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to look up attempt")
			return
		}
		if existing != nil {
			s.logger.Info("replaying archived attempt", "attempt_id", attemptID)
			writeJSON(w, http.StatusOK, existing.Results)
			return
		}

		ok, err := s.guard.Claim(ctx, attemptID)
		if err != nil {
			s.logger.Error("failed to claim attempt", "error", err, "attempt_id", attemptID)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to claim attempt")
			return
		}
		if !ok {
			respondError(w, http.StatusConflict, "attempt_in_progress", "attempt is already being graded")
			return
		}
		claimed = true
	} else {
		attemptID = uuid.NewString()
	}

	results, err := s.grader.Grade(subs)
	if err != nil {
		if claimed {
			s.releaseClaim(attemptID)
		}
		if errors.Is(err, grading.ErrUnknownTask) {
			respondError(w, http.StatusBadRequest, "unknown_task", err.Error())
			return
		}
		s.logger.Error("failed to grade submission", "error", err, "attempt_id", attemptID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to grade submission")
		return
	}

	// Results go back in reverse submission order; clients match them by id
	slices.Reverse(results)

	score, err := quiz.Aggregate(results)
	if err != nil && !errors.Is(err, quiz.ErrNoQuestionsAnswered) {
		s.logger.Error("failed to aggregate score", "error", err, "attempt_id", attemptID)
	}

	attempt := &models.Attempt{
		ID:         attemptID,
		Answers:    json.RawMessage(body),
		Results:    results,
		Score:      score,
		RemoteAddr: r.RemoteAddr,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.archive(ctx, attempt); err != nil && claimed {
		// nothing to replay, so a retry must be able to grade again
		s.releaseClaim(attemptID)
	}

	writeJSON(w, http.StatusOK, results)
}

// archive stores the attempt and announces it. A failed save is logged and
// returned; the caller still answers with its marks. Publish failures are
// only logged.
func (s *Server) archive(ctx context.Context, attempt *models.Attempt) error {
	if err := s.repo.SaveAttempt(ctx, attempt); err != nil {
		s.logger.Error("failed to archive attempt", "error", err, "attempt_id", attempt.ID)
		return err
	}

	s.logger.Info("attempt scored",
		"attempt_id", attempt.ID,
		"questions", len(attempt.Results),
		"score", attempt.Score.String(),
	)

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishAttemptScored(ctx, models.NewScoredEvent(attempt)); err != nil {
		s.logger.Error("failed to publish scored attempt", "error", err, "attempt_id", attempt.ID)
	}
	return nil
}

func (s *Server) releaseClaim(attemptID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.guard.Release(ctx, attemptID); err != nil {
		s.logger.Error("failed to release attempt claim", "error", err, "attempt_id", attemptID)
	}
}

// Attempt archive handlers

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	filter := models.AttemptFilter{
		Limit:  50, // default
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = &since
	}

	attempts, err := s.repo.ListAttempts(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list attempts", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list attempts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"attempts": attempts,
		"total":    len(attempts),
	})
}

func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "attempt id is required")
		return
	}

	attempt, err := s.repo.GetAttempt(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get attempt", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get attempt")
		return
	}
	if attempt == nil {
		respondError(w, http.StatusNotFound, "not_found", "attempt not found")
		return
	}

	respondJSON(w, http.StatusOK, attempt)
}
