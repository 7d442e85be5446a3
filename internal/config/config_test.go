package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.WebSocket.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.WebSocket.WriteTimeout)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.GRPC.Address)
	assert.Equal(t, BackendFile, cfg.Persistence.Backend)
	assert.Equal(t, 1000, cfg.Persistence.QueueSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Persistence.PollInterval)
	assert.Equal(t, int64(20), cfg.Game.BaselineHealth)
	assert.False(t, cfg.Game.AuditRNG)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: console
persistence:
  backend: sqlite
  path: /tmp/actions.sqlite
  queue_size: 16
  poll_interval: 5ms
game:
  seed: 42
  baseline_health: 30
  audit_rng: true
`), 0o644))

	t.Setenv("DECKLEDGER_GAME_SEED", "7")
	t.Setenv("DECKLEDGER_SERVER_WEBSOCKET_ADDRESS", "127.0.0.1:1234")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, BackendSQLite, cfg.Persistence.Backend)
	assert.Equal(t, 16, cfg.Persistence.QueueSize)
	assert.Equal(t, 5*time.Millisecond, cfg.Persistence.PollInterval)
	assert.Equal(t, uint64(7), cfg.Game.Seed)
	assert.Equal(t, int64(30), cfg.Game.BaselineHealth)
	assert.True(t, cfg.Game.AuditRNG)
	assert.Equal(t, "127.0.0.1:1234", cfg.Server.WebSocket.Address)
}

func TestLoad_RejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Logging:     LoggingConfig{Level: "info", Format: "json"},
			Persistence: PersistenceConfig{Backend: BackendFile, Path: "a.jsonl", QueueSize: 1, PollInterval: time.Millisecond},
			Database:    DatabaseConfig{URL: "postgres://x", MaxConns: 2, MinConns: 1},
			Game:        GameConfig{BaselineHealth: 20},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"no persistence", func(c *Config) { c.Persistence.Backend = BackendNone; c.Persistence.Path = "" }, true},
		{"unknown backend", func(c *Config) { c.Persistence.Backend = "s3" }, false},
		{"file without path", func(c *Config) { c.Persistence.Path = "" }, false},
		{"postgres without url", func(c *Config) { c.Persistence.Backend = BackendPostgres; c.Database.URL = "" }, false},
		{"zero queue", func(c *Config) { c.Persistence.QueueSize = 0 }, false},
		{"zero poll", func(c *Config) { c.Persistence.PollInterval = 0 }, false},
		{"compress needs zst", func(c *Config) { c.Persistence.Compress = true }, false},
		{"compress with zst", func(c *Config) { c.Persistence.Compress = true; c.Persistence.Path = "a.jsonl.zst" }, true},
		{"min over max", func(c *Config) { c.Database.MinConns = 5 }, false},
		{"zero health", func(c *Config) { c.Game.BaselineHealth = 0 }, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, false},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
