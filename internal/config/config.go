package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the quiz engine binaries
type Config struct {
	Client   ClientConfig
	Server   ServerConfig
	Bank     BankConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Events   EventsConfig
	Cleanup  CleanupConfig
}

// ClientConfig holds configuration of the interactive quiz runner
type ClientConfig struct {
	GradingURL string
	APIKey     string
	Timeout    time.Duration
	Shuffle    bool
	Protocol   string
	DropPolicy string
	ReportPath string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// BankConfig holds task bank configuration
type BankConfig struct {
	Dir string
}

// DatabaseConfig holds attempt archive configuration
type DatabaseConfig struct {
	Driver        string
	DSN           string
	MigrationsDir string
}

// RedisConfig holds Redis configuration. An empty address disables the
// duplicate-submission guard.
type RedisConfig struct {
	Address    string
	Password   string
	DB         int
	AttemptTTL time.Duration
}

// EventsConfig holds event publisher configuration
type EventsConfig struct {
	Publisher string
	Brokers   []string
	Topic     string
}

// CleanupConfig holds cleanup worker configuration
type CleanupConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Client: ClientConfig{
			GradingURL: getEnv("QUIZ_GRADING_URL", "http://localhost:3000"),
			APIKey:     getEnv("QUIZ_API_KEY", ""),
			Timeout:    getEnvAsDuration("QUIZ_TIMEOUT", 0),
			Shuffle:    getEnvAsBool("QUIZ_SHUFFLE", true),
			Protocol:   getEnv("QUIZ_PROTOCOL", "direct"),
			DropPolicy: getEnv("QUIZ_DROP_POLICY", "zero"),
			ReportPath: getEnv("QUIZ_REPORT_PATH", ""),
		},
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("SERVER_PORT", 3000),
			CORSOrigins: getEnvAsList("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Bank: BankConfig{
			Dir: getEnv("BANK_DIR", "./bank"),
		},
		Database: DatabaseConfig{
			Driver:        getEnv("DATABASE_DRIVER", "sqlite"),
			DSN:           getEnv("DATABASE_DSN", "file:quiz.db?_pragma=busy_timeout(5000)"),
			MigrationsDir: getEnv("DATABASE_MIGRATIONS_DIR", "./migrations"),
		},
		Redis: RedisConfig{
			Address:    getEnv("REDIS_ADDRESS", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			AttemptTTL: getEnvAsDuration("REDIS_ATTEMPT_TTL", 24*time.Hour),
		},
		Events: EventsConfig{
			Publisher: getEnv("EVENTS_PUBLISHER", "gochannel"),
			Brokers:   getEnvAsList("EVENTS_KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:     getEnv("EVENTS_TOPIC", "quiz.attempt_scored"),
		},
		Cleanup: CleanupConfig{
			Interval:  getEnvAsDuration("CLEANUP_INTERVAL", 10*time.Minute),
			Retention: getEnvAsDuration("CLEANUP_RETENTION", 30*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Client.GradingURL == "" {
		return fmt.Errorf("grading service URL is required")
	}

	if c.Client.Timeout < 0 {
		return fmt.Errorf("invalid client timeout: %s", c.Client.Timeout)
	}

	switch c.Client.Protocol {
	case "direct", "packed":
	default:
		return fmt.Errorf("invalid answer protocol: %q", c.Client.Protocol)
	}

	switch c.Client.DropPolicy {
	case "zero", "exclude":
	default:
		return fmt.Errorf("invalid drop policy: %q", c.Client.DropPolicy)
	}

	switch c.Database.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("invalid database driver: %q", c.Database.Driver)
	}

	switch c.Events.Publisher {
	case "gochannel":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required")
		}
	default:
		return fmt.Errorf("invalid events publisher: %q", c.Events.Publisher)
	}

	if c.Cleanup.Interval <= 0 {
		return fmt.Errorf("invalid cleanup interval: %s", c.Cleanup.Interval)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
