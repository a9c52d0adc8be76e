package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/mcoot/tdlobby/internal/dependencies/clock"
	"github.com/mcoot/tdlobby/internal/services/broadcast"
	"github.com/mcoot/tdlobby/internal/services/lobby"
	"github.com/mcoot/tdlobby/internal/services/session"
	"github.com/mcoot/tdlobby/internal/storage"
	"github.com/mcoot/tdlobby/internal/storage/memory"
	redisstorage "github.com/mcoot/tdlobby/internal/storage/redis"
	"github.com/mcoot/tdlobby/internal/transport/sse"
	"github.com/mcoot/tdlobby/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock

	// Services
	SessionStore    *session.Store
	Registry        *session.Registry
	Router          *broadcast.Router
	LobbyController *lobby.Controller

	// Transports
	Hub  *ws.Hub
	Feed *sse.Feed

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// Settings tunes session creation. Zero value means lobby.DefaultSettings().
	Settings lobby.Settings
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var (
		store   storage.Storage
		closers []io.Closer
	)
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closers = append(closers, redisStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	settings := cfg.Settings
	if settings == (lobby.Settings{}) {
		settings = lobby.DefaultSettings()
	}

	app := NewWithDependencies(store, clock.New(), settings, logger)
	app.closers = closers
	return app, nil
}

// NewWithDependencies creates an App over the given storage and clock
func NewWithDependencies(store storage.Storage, clk clock.Clock, settings lobby.Settings, logger *slog.Logger) *App {
	sessions := session.NewStore(store, clk)
	registry := session.NewRegistry(store)
	hub := ws.NewHub(logger)
	feed := sse.NewFeed(logger)
	router := broadcast.NewRouter(sessions, hub, logger, feed)
	controller := lobby.NewController(sessions, registry, router, settings, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		SessionStore:    sessions,
		Registry:        registry,
		Router:          router,
		LobbyController: controller,
		Hub:             hub,
		Feed:            feed,
	}
}

// Start launches background loops. Call Close to stop them.
func (a *App) Start() {
	go a.Feed.Run()
}

// Close stops background loops and releases storage connections
func (a *App) Close() error {
	a.Feed.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
