package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcoot/tdlobby/internal/dependencies/clock"
	"github.com/mcoot/tdlobby/internal/model"
	"github.com/mcoot/tdlobby/internal/storage"
)

// Store holds all active sessions and allocates their ids
type Store struct {
	storage storage.SessionStore
	clock   clock.Clock

	mu     sync.Mutex
	lastID model.SessionID
}

// NewStore creates a Store over the given backend
func NewStore(storage storage.SessionStore, clock clock.Clock) *Store {
	return &Store{
		storage: storage,
		clock:   clock,
	}
}

// Create builds a session in the lobby state with host as its only player and stores it
func (s *Store) Create(ctx context.Context, spec model.SessionSpec, host model.Player) (*model.Session, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return nil, err
	}

	host.IsHost = true
	session := &model.Session{
		ID:           id,
		Name:         spec.Name,
		Difficulty:   spec.Difficulty,
		MaxPlayers:   spec.MaxPlayers,
		HostID:       host.ConnectionID,
		Players:      []model.Player{host},
		IsPublic:     spec.IsPublic,
		Locked:       spec.Locked,
		PasswordHash: spec.PasswordHash,
		State:        model.SessionStateLobby,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session %d: %w", id, err)
	}
	return session, nil
}

// Find returns the session or model.ErrSessionNotFound
func (s *Store) Find(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return s.storage.GetSession(ctx, id)
}

// Save persists changes to an existing session
func (s *Store) Save(ctx context.Context, session *model.Session) error {
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("save session %d: %w", session.ID, err)
	}
	return nil
}

// Remove deletes the session. Removing an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id model.SessionID) error {
	if err := s.storage.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return nil
}

// ListAll returns every session in creation order, public or not
func (s *Store) ListAll(ctx context.Context) ([]*model.Session, error) {
	return s.storage.ListSessions(ctx)
}

// nextID derives an id from the current time in milliseconds.
// Ids never repeat or go backwards within the process, and ids already in storage are skipped.
func (s *Store) nextID(ctx context.Context) (model.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := model.SessionID(clock.Millis(s.clock))
	if id <= s.lastID {
		id = s.lastID + 1
	}
	for {
		exists, err := s.storage.SessionExists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !exists {
			break
		}
		id++
	}
	s.lastID = id
	return id, nil
}
