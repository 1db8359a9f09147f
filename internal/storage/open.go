package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Open creates the repository for a driver: memory, sqlite or postgres.
// Postgres migrations are applied from migrationsDir before returning.
func Open(ctx context.Context, driver, dsn, migrationsDir string, logger *slog.Logger) (Repository, error) {
	switch driver {
	case "memory":
		return NewMemoryRepository(), nil
	case "sqlite":
		return NewSQLiteRepository(ctx, dsn)
	case "postgres":
		repo, err := NewPostgresRepository(ctx, PostgresConfig{DSN: dsn})
		if err != nil {
			return nil, err
		}
		if _, err := RunMigrations(ctx, repo.Pool(), os.DirFS(migrationsDir), logger); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
