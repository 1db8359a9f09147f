package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Pruner deletes archived attempts created before a cutoff
type Pruner interface {
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner periodically removes attempts older than the retention window
type Cleaner struct {
	pruner    Pruner
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewCleaner creates a new cleanup worker
func NewCleaner(pruner Pruner, interval, retention time.Duration, logger *slog.Logger) *Cleaner {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Cleaner{
		pruner:    pruner,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Start begins the cleanup worker in a goroutine. A non-positive retention
// keeps attempts forever and the worker is not started.
func (c *Cleaner) Start(ctx context.Context) {
	if c.retention <= 0 {
		c.logger.Info("attempt retention disabled, cleanup worker not started")
		return
	}
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	c.logger.Info("cleanup worker started", "interval", c.interval, "retention", c.retention)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce prunes expired attempts and returns how many were removed
func (c *Cleaner) RunOnce(ctx context.Context) int64 {
	cutoff := c.now().Add(-c.retention)
	c.logger.Debug("running cleanup cycle", "cutoff", cutoff)

	deleted, err := c.pruner.DeleteAttemptsBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("failed to delete expired attempts", "error", err)
		return 0
	}

	if deleted > 0 {
		c.logger.Info("expired attempts deleted", "count", deleted, "cutoff", cutoff)
	}
	return deleted
}
