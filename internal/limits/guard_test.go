package limits

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseGuard(t *testing.T, g Guard) {
	ctx := context.Background()
	id := uuid.NewString()

	ok, err := g.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must fail")

	require.NoError(t, g.Release(ctx, id))

	ok, err = g.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "claim after release must succeed")
}

func TestMemoryGuard(t *testing.T) {
	exerciseGuard(t, NewMemoryGuard(time.Hour))
}

func TestMemoryGuardExpiry(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	ok, _ := g.Claim(context.Background(), "a")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = g.Claim(context.Background(), "a")
	assert.True(t, ok, "expired claim must not block")
}

func TestRedisGuard(t *testing.T) {
	addr := os.Getenv("QUIZ_TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("QUIZ_TEST_REDIS_ADDRESS not set, skipping")
	}

	g, err := NewRedisGuard(context.Background(), addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer g.Close()

	exerciseGuard(t, g)
}
