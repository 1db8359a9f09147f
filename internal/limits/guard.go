package limits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard ensures an attempt id is graded at most once while its claim lives
type Guard interface {
	// Claim returns false when the attempt id is already claimed
	Claim(ctx context.Context, attemptID string) (bool, error)
	// Release drops a claim so the attempt can be submitted again
	Release(ctx context.Context, attemptID string) error
	Close() error
}

// RedisGuard stores claims as expiring Redis keys, shared by all server instances
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisGuard connects to Redis and returns a guard
func NewRedisGuard(ctx context.Context, address, password string, db int, ttl time.Duration) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisGuard{client: client, ttl: ttl, prefix: "quiz:attempt:"}, nil
}

func (g *RedisGuard) Claim(ctx context.Context, attemptID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+attemptID, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim attempt: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, attemptID string) error {
	if err := g.client.Del(ctx, g.prefix+attemptID).Err(); err != nil {
		return fmt.Errorf("failed to release attempt: %w", err)
	}
	return nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// MemoryGuard keeps claims in process memory, for single-instance deployments
type MemoryGuard struct {
	mu     sync.Mutex
	ttl    time.Duration
	claims map[string]time.Time
	now    func() time.Time
}

// NewMemoryGuard creates an in-memory guard
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{ttl: ttl, claims: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, attemptID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, expires := range g.claims {
		if !expires.After(now) {
			delete(g.claims, id)
		}
	}
	if _, exists := g.claims[attemptID]; exists {
		return false, nil
	}
	g.claims[attemptID] = now.Add(g.ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, attemptID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, attemptID)
	return nil
}

func (g *MemoryGuard) Close() error {
	return nil
}
