package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tdlobby/internal/api/apierr"
	"github.com/mcoot/tdlobby/internal/api/response"
	"github.com/mcoot/tdlobby/internal/model"
	"github.com/mcoot/tdlobby/internal/protocol"
	"github.com/mcoot/tdlobby/internal/services/session"
)

// ServerHandler exposes the session list read-only over HTTP
type ServerHandler struct {
	store *session.Store
}

// NewServerHandler creates a new server handler
func NewServerHandler(store *session.Store) *ServerHandler {
	return &ServerHandler{store: store}
}

// List handles GET /api/v1/servers
func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Snapshot(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/servers/{id}
func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseSessionID(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, apierr.NewInvalidRequestError("Server id must be a number"))
		return
	}

	s, err := h.store.Find(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, protocol.ServerFromModel(s))
}

// Snapshot returns the same list a serverList event carries
func (h *ServerHandler) Snapshot(ctx context.Context) ([]protocol.Server, error) {
	sessions, err := h.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.ServerListFromModel(sessions), nil
}
