package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Storage backends
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Environment keys
const (
	keyPort              = "port"
	keyHost              = "host"
	keyLogLevel          = "log_level"
	keyLogFormat         = "log_format"
	keyStorageType       = "storage_type"
	keyRedisURL          = "redis_url"
	keyAllowedOrigins    = "allowed_origins"
	keyDefaultMaxPlayers = "default_max_players"
	keyMaxPlayersLimit   = "max_players_limit"
	keyBcryptCost        = "bcrypt_cost"
)

// Config holds process configuration read from the environment
type Config struct {
	Port              int
	Host              string
	LogLevel          slog.Level
	LogFormat         string // json or text
	StorageType       string
	RedisURL          string
	AllowedOrigins    []string
	DefaultMaxPlayers int
	MaxPlayersLimit   int
	BcryptCost        int
}

// Load reads configuration from environment variables, applying defaults
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault(keyPort, 3000)
	v.SetDefault(keyHost, "")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "json")
	v.SetDefault(keyStorageType, StorageTypeMemory)
	v.SetDefault(keyRedisURL, "")
	v.SetDefault(keyAllowedOrigins, "*")
	v.SetDefault(keyDefaultMaxPlayers, 4)
	v.SetDefault(keyMaxPlayersLimit, 8)
	v.SetDefault(keyBcryptCost, bcrypt.DefaultCost)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:              v.GetInt(keyPort),
		Host:              v.GetString(keyHost),
		LogFormat:         strings.ToLower(v.GetString(keyLogFormat)),
		StorageType:       strings.ToLower(v.GetString(keyStorageType)),
		RedisURL:          v.GetString(keyRedisURL),
		AllowedOrigins:    splitList(v.GetString(keyAllowedOrigins)),
		DefaultMaxPlayers: v.GetInt(keyDefaultMaxPlayers),
		MaxPlayersLimit:   v.GetInt(keyMaxPlayersLimit),
		BcryptCost:        v.GetInt(keyBcryptCost),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(keyLogLevel))); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	switch c.StorageType {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL required when STORAGE_TYPE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE must be memory or redis, got %q", c.StorageType))
	}
	if c.DefaultMaxPlayers < 1 {
		errs = append(errs, errors.New("DEFAULT_MAX_PLAYERS must be positive"))
	}
	if c.MaxPlayersLimit < c.DefaultMaxPlayers {
		errs = append(errs, errors.New("MAX_PLAYERS_LIMIT must be at least DEFAULT_MAX_PLAYERS"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
