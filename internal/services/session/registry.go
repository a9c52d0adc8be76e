package session

import (
	"context"

	"github.com/mcoot/tdlobby/internal/model"
	"github.com/mcoot/tdlobby/internal/storage"
)

// Registry maps each live connection to the session it currently belongs to.
// It is a weak back-reference: callers keep it consistent with the Store.
type Registry struct {
	storage storage.ConnectionRegistry
}

// NewRegistry creates a Registry over the given backend
func NewRegistry(storage storage.ConnectionRegistry) *Registry {
	return &Registry{storage: storage}
}

// Bind records that conn belongs to the session
func (r *Registry) Bind(ctx context.Context, conn model.ConnectionID, id model.SessionID) error {
	return r.storage.BindConnection(ctx, conn, id)
}

// Unbind forgets conn. Unknown connections are ignored.
func (r *Registry) Unbind(ctx context.Context, conn model.ConnectionID) error {
	return r.storage.UnbindConnection(ctx, conn)
}

// SessionOf returns the session conn belongs to, if any
func (r *Registry) SessionOf(ctx context.Context, conn model.ConnectionID) (model.SessionID, bool, error) {
	return r.storage.GetConnectionSession(ctx, conn)
}
