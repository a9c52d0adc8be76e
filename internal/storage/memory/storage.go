package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/tdlobby/internal/model"
	"github.com/mcoot/tdlobby/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Sessions are copied on the way in and out so stored state only changes through SaveSession.
type Storage struct {
	mu sync.RWMutex

	sessions    map[model.SessionID]*model.Session
	order       []model.SessionID // Creation order
	connections map[model.ConnectionID]model.SessionID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		sessions:    make(map[model.SessionID]*model.Session),
		connections: make(map[model.ConnectionID]model.SessionID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		s.order = append(s.order, session.ID)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return nil
	}
	delete(s.sessions, id)
	s.order = slices.DeleteFunc(s.order, func(other model.SessionID) bool {
		return other == id
	})
	return nil
}

func (s *Storage) SessionExists(ctx context.Context, id model.SessionID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok, nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*model.Session, 0, len(s.order))
	for _, id := range s.order {
		sessions = append(sessions, s.sessions[id].Clone())
	}
	return sessions, nil
}

// Connection operations

func (s *Storage) BindConnection(ctx context.Context, conn model.ConnectionID, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn] = id
	return nil
}

func (s *Storage) UnbindConnection(ctx context.Context, conn model.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, conn)
	return nil
}

func (s *Storage) GetConnectionSession(ctx context.Context, conn model.ConnectionID) (model.SessionID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.connections[conn]
	return id, ok, nil
}

// ConnectionCount returns the number of bound connections
func (s *Storage) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}
