package storage

import (
	"context"

	"github.com/mcoot/tdlobby/internal/model"
)

// SessionStore persists active sessions
type SessionStore interface {
	SaveSession(ctx context.Context, session *model.Session) error
	// GetSession returns model.ErrSessionNotFound when the id is unknown
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	// DeleteSession is a no-op for unknown ids
	DeleteSession(ctx context.Context, id model.SessionID) error
	SessionExists(ctx context.Context, id model.SessionID) (bool, error)
	// ListSessions returns every session in creation order
	ListSessions(ctx context.Context) ([]*model.Session, error)
}

// ConnectionRegistry maps live connections to the session they belong to
type ConnectionRegistry interface {
	BindConnection(ctx context.Context, conn model.ConnectionID, id model.SessionID) error
	// UnbindConnection is a no-op for unknown connections
	UnbindConnection(ctx context.Context, conn model.ConnectionID) error
	// GetConnectionSession reports false when the connection is not bound
	GetConnectionSession(ctx context.Context, conn model.ConnectionID) (model.SessionID, bool, error)
}

// Storage defines the interface for session and connection state
type Storage interface {
	SessionStore
	ConnectionRegistry
}
