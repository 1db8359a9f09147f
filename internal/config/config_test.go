package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.Client.GradingURL)
	assert.Equal(t, time.Duration(0), cfg.Client.Timeout)
	assert.True(t, cfg.Client.Shuffle)
	assert.Equal(t, "direct", cfg.Client.Protocol)
	assert.Equal(t, "zero", cfg.Client.DropPolicy)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "gochannel", cfg.Events.Publisher)
	assert.Empty(t, cfg.Redis.Address)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QUIZ_PROTOCOL", "packed")
	t.Setenv("QUIZ_TIMEOUT", "5s")
	t.Setenv("QUIZ_SHUFFLE", "false")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EVENTS_PUBLISHER", "kafka")
	t.Setenv("EVENTS_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("SERVER_CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "packed", cfg.Client.Protocol)
	assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
	assert.False(t, cfg.Client.Shuffle)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Empty(t, cfg.Server.CORSOrigins)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BANK_DIR=/srv/bank\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("BANK_DIR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/bank", cfg.Bank.Dir)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "port out of range", modify: func(c *Config) { c.Server.Port = 70000 }},
		{name: "empty grading url", modify: func(c *Config) { c.Client.GradingURL = "" }},
		{name: "negative timeout", modify: func(c *Config) { c.Client.Timeout = -time.Second }},
		{name: "unknown protocol", modify: func(c *Config) { c.Client.Protocol = "binary" }},
		{name: "unknown drop policy", modify: func(c *Config) { c.Client.DropPolicy = "ignore" }},
		{name: "unknown driver", modify: func(c *Config) { c.Database.Driver = "mysql" }},
		{name: "postgres without dsn", modify: func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }},
		{name: "kafka without brokers", modify: func(c *Config) { c.Events.Publisher = "kafka"; c.Events.Brokers = nil }},
		{name: "unknown publisher", modify: func(c *Config) { c.Events.Publisher = "nats" }},
		{name: "zero cleanup interval", modify: func(c *Config) { c.Cleanup.Interval = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tc.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
