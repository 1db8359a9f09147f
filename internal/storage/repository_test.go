package storage

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/quiz-engine/internal/models"
	"github.com/terra-clan/quiz-engine/internal/quiz"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func attemptAt(id string, offset time.Duration) *models.Attempt {
	return &models.Attempt{
		ID:         id,
		Answers:    json.RawMessage(`[{"_id":"a","answer":{"value":true}}]`),
		Results:    []quiz.Result{{ID: "a", Mark: 1}, {ID: "b", Mark: 0.5}},
		Score:      quiz.Score{Score: 1.5, Total: 2, Percentage: 75},
		RemoteAddr: "10.0.0.1",
		CreatedAt:  base.Add(offset),
	}
}

func runRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))

	require.NoError(t, repo.SaveAttempt(ctx, attemptAt("old", -48*time.Hour)))
	require.NoError(t, repo.SaveAttempt(ctx, attemptAt("mid", -time.Hour)))
	require.NoError(t, repo.SaveAttempt(ctx, attemptAt("new", 0)))

	err := repo.SaveAttempt(ctx, attemptAt("new", time.Minute))
	assert.ErrorIs(t, err, ErrAttemptExists)

	got, err := repo.GetAttempt(ctx, "mid")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "mid", got.ID)
	assert.Equal(t, []quiz.Result{{ID: "a", Mark: 1}, {ID: "b", Mark: 0.5}}, got.Results)
	assert.Equal(t, quiz.Score{Score: 1.5, Total: 2, Percentage: 75}, got.Score)
	assert.Equal(t, "10.0.0.1", got.RemoteAddr)
	assert.JSONEq(t, `[{"_id":"a","answer":{"value":true}}]`, string(got.Answers))
	assert.True(t, got.CreatedAt.Equal(base.Add(-time.Hour)))

	missing, err := repo.GetAttempt(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := repo.ListAttempts(ctx, models.AttemptFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	page, err := repo.ListAttempts(ctx, models.AttemptFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "mid", page[0].ID)

	since := base.Add(-2 * time.Hour)
	recent, err := repo.ListAttempts(ctx, models.AttemptFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	deleted, err := repo.DeleteAttemptsBefore(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	gone, err := repo.GetAttempt(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, NewMemoryRepository())
}

func TestSQLiteRepository(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "quiz.db")
	repo, err := NewSQLiteRepository(context.Background(), dsn)
	require.NoError(t, err)
	defer repo.Close()

	runRepositoryContract(t, repo)
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("QUIZ_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QUIZ_TEST_POSTGRES_DSN not set, skipping")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := Open(ctx, "postgres", dsn, filepath.Join("..", "..", "migrations"), logger)
	require.NoError(t, err)
	defer repo.Close()

	pg := repo.(*PostgresRepository)
	_, err = pg.Pool().Exec(ctx, `TRUNCATE attempts`)
	require.NoError(t, err)

	runRepositoryContract(t, repo)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", "", nil)
	assert.Error(t, err)

	repo, err := Open(context.Background(), "memory", "", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)
}
