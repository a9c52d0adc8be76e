package api

import (
	"context"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"github.com/mcoot/tdlobby/internal/api/handler"
	"github.com/mcoot/tdlobby/internal/api/middleware"
	"github.com/mcoot/tdlobby/internal/api/response"
	basemiddleware "github.com/mcoot/tdlobby/internal/middleware"
	"github.com/mcoot/tdlobby/internal/protocol"
	"github.com/mcoot/tdlobby/internal/services/session"
	"github.com/mcoot/tdlobby/internal/transport/sse"
)

// RouterConfig holds configuration for the HTTP router
type RouterConfig struct {
	Logger         *slog.Logger
	SessionStore   *session.Store
	Feed           *sse.Feed
	WebSocket      http.Handler
	AllowedOrigins []string
}

// NewRouter creates the HTTP router: the WebSocket endpoint plus the read-only API
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(basemiddleware.Logging(cfg.Logger))
	r.NotFoundHandler = http.HandlerFunc(handler.NotFound)

	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	}

	serverHandler := handler.NewServerHandler(cfg.SessionStore)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(basemiddleware.CORS(cfg.AllowedOrigins))

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/servers", serverHandler.List).Methods(http.MethodGet)
	if cfg.Feed != nil {
		snapshot := func(ctx context.Context) (string, any, error) {
			list, err := serverHandler.Snapshot(ctx)
			return protocol.EventServerList, list, err
		}
		api.Handle("/servers/events", sse.NewHandler(cfg.Feed, snapshot)).Methods(http.MethodGet)
	}
	api.HandleFunc("/servers/{id}", serverHandler.Get).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
