package broadcast

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/tdlobby/internal/model"
	"github.com/mcoot/tdlobby/internal/protocol"
	"github.com/mcoot/tdlobby/internal/services/session"
)

// Transport delivers named events to live connections.
// Both methods are fire-and-forget: they must not block and report no delivery status.
type Transport interface {
	Emit(conn model.ConnectionID, event string, payload any)
	EmitToAll(event string, payload any)
}

// Listener observes events sent to every connection
type Listener interface {
	Publish(event string, payload any)
}

// Router decides who receives an event and hands it to the transport
type Router struct {
	store     *session.Store
	transport Transport
	listeners []Listener
	logger    *slog.Logger
}

// NewRouter creates a Router. Listeners also receive every ToAll event.
func NewRouter(store *session.Store, transport Transport, logger *slog.Logger, listeners ...Listener) *Router {
	return &Router{
		store:     store,
		transport: transport,
		listeners: listeners,
		logger:    logger.With(slog.String("component", "broadcast")),
	}
}

// ToSession sends the event to every current member of the session except exclude.
// Membership is read from the store at call time, so a closed session has no recipients.
// Pass an empty exclude to include everyone.
func (r *Router) ToSession(ctx context.Context, id model.SessionID, event string, payload any, exclude model.ConnectionID) {
	s, err := r.store.Find(ctx, id)
	if err != nil {
		if !errors.Is(err, model.ErrSessionNotFound) {
			r.logger.Error("failed to resolve session recipients",
				slog.Int64("session_id", int64(id)),
				slog.String("event", event),
				slog.Any("error", err))
		}
		return
	}

	for _, conn := range s.ConnectionIDs() {
		if conn == exclude {
			continue
		}
		r.transport.Emit(conn, event, payload)
	}
}

// ToConnection sends the event to a single connection
func (r *Router) ToConnection(ctx context.Context, conn model.ConnectionID, event string, payload any) {
	r.transport.Emit(conn, event, payload)
}

// ToAll sends the event to every connection and listener
func (r *Router) ToAll(ctx context.Context, event string, payload any) {
	r.transport.EmitToAll(event, payload)
	for _, l := range r.listeners {
		l.Publish(event, payload)
	}
}

// SessionList builds the discovery snapshot of every session
func (r *Router) SessionList(ctx context.Context) ([]protocol.Server, error) {
	sessions, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.ServerListFromModel(sessions), nil
}

// AnnounceSessions sends the current serverList snapshot to everyone
func (r *Router) AnnounceSessions(ctx context.Context) {
	list, err := r.SessionList(ctx)
	if err != nil {
		r.logger.Error("failed to build server list", slog.Any("error", err))
		return
	}
	r.ToAll(ctx, protocol.EventServerList, list)
}

// SendSessionList sends the current serverList snapshot to one connection
func (r *Router) SendSessionList(ctx context.Context, conn model.ConnectionID) {
	list, err := r.SessionList(ctx)
	if err != nil {
		r.logger.Error("failed to build server list",
			slog.String("connection_id", string(conn)),
			slog.Any("error", err))
		return
	}
	r.ToConnection(ctx, conn, protocol.EventServerList, list)
}
