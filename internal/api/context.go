package api

import (
	"context"

	"github.com/terra-clan/quiz-engine/pkg/client"
)

const (
	attemptHeader      = client.AttemptHeader
	maxAttemptIDLength = 64
)

type contextKey string

const attemptContextKey contextKey = "attempt_id"

// attemptIDFromContext returns the attempt id sent by the client, or ""
func attemptIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(attemptContextKey).(string)
	return id
}

func contextWithAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptContextKey, id)
}
