package config

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "HOST", "LOG_LEVEL", "LOG_FORMAT", "STORAGE_TYPE", "REDIS_URL",
		"ALLOWED_ORIGINS", "DEFAULT_MAX_PLAYERS", "MAX_PLAYERS_LIMIT", "BCRYPT_COST"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "", cfg.Host)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, StorageTypeMemory, cfg.StorageType)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 4, cfg.DefaultMaxPlayers)
	assert.Equal(t, 8, cfg.MaxPlayersLimit)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("STORAGE_TYPE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("DEFAULT_MAX_PLAYERS", "2")
	t.Setenv("MAX_PLAYERS_LIMIT", "6")
	t.Setenv("BCRYPT_COST", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, StorageTypeRedis, cfg.StorageType)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2, cfg.DefaultMaxPlayers)
	assert.Equal(t, 6, cfg.MaxPlayersLimit)
	assert.Equal(t, 5, cfg.BcryptCost)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "redis without url", env: map[string]string{"STORAGE_TYPE": "redis", "REDIS_URL": ""}},
		{name: "unknown storage", env: map[string]string{"STORAGE_TYPE": "sqlite"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "bad log format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "limit below default", env: map[string]string{"DEFAULT_MAX_PLAYERS": "6", "MAX_PLAYERS_LIMIT": "4"}},
		{name: "bcrypt cost too low", env: map[string]string{"BCRYPT_COST": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: slog.LevelInfo, LogFormat: "json"}

	cfg.NewLogger(&buf).Info("hello", slog.String("k", "v"))
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg.LogFormat = "text"
	cfg.NewLogger(&buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	cfg.NewLogger(&buf).Debug("hidden")
	assert.Empty(t, buf.String())
}
