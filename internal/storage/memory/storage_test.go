package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tdlobby/internal/model"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
}

func (s *StorageSuite) newSession(id model.SessionID, name string) *model.Session {
	return &model.Session{
		ID:         id,
		Name:       name,
		Difficulty: "normal",
		MaxPlayers: 4,
		HostID:     "host-1",
		Players: []model.Player{
			{ConnectionID: "host-1", DisplayName: "Host", IsHost: true},
		},
		State:     model.SessionStateLobby,
		CreatedAt: time.Now(),
	}
}

// Session tests

func (s *StorageSuite) TestSaveAndGetSession() {
	session := s.newSession(100, "Castle")

	err := s.storage.SaveSession(s.ctx, session)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetSession(s.ctx, 100)
	s.Require().NoError(err)
	s.Equal(session.ID, retrieved.ID)
	s.Equal(session.Name, retrieved.Name)
	s.Equal(session.Players, retrieved.Players)
}

func (s *StorageSuite) TestGetSessionNotFound() {
	_, err := s.storage.GetSession(s.ctx, 999)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestGetSessionReturnsCopy() {
	_ = s.storage.SaveSession(s.ctx, s.newSession(100, "Castle"))

	retrieved, _ := s.storage.GetSession(s.ctx, 100)
	retrieved.Players = append(retrieved.Players, model.Player{ConnectionID: "intruder"})

	again, _ := s.storage.GetSession(s.ctx, 100)
	s.Len(again.Players, 1)
}

func (s *StorageSuite) TestDeleteSession() {
	_ = s.storage.SaveSession(s.ctx, s.newSession(100, "Castle"))

	err := s.storage.DeleteSession(s.ctx, 100)
	s.Require().NoError(err)

	exists, err := s.storage.SessionExists(s.ctx, 100)
	s.Require().NoError(err)
	s.False(exists)
}

func (s *StorageSuite) TestDeleteSessionIsIdempotent() {
	s.NoError(s.storage.DeleteSession(s.ctx, 100))
	s.NoError(s.storage.DeleteSession(s.ctx, 100))
}

func (s *StorageSuite) TestListSessionsInCreationOrder() {
	_ = s.storage.SaveSession(s.ctx, s.newSession(300, "Third by id"))
	_ = s.storage.SaveSession(s.ctx, s.newSession(100, "First by id"))
	_ = s.storage.SaveSession(s.ctx, s.newSession(200, "Second by id"))

	// Re-saving keeps the original position
	_ = s.storage.SaveSession(s.ctx, s.newSession(300, "Third renamed"))

	sessions, err := s.storage.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(sessions, 3)
	s.Equal(model.SessionID(300), sessions[0].ID)
	s.Equal("Third renamed", sessions[0].Name)
	s.Equal(model.SessionID(100), sessions[1].ID)
	s.Equal(model.SessionID(200), sessions[2].ID)
}

func (s *StorageSuite) TestListSessionsAfterDelete() {
	_ = s.storage.SaveSession(s.ctx, s.newSession(100, "A"))
	_ = s.storage.SaveSession(s.ctx, s.newSession(200, "B"))
	_ = s.storage.DeleteSession(s.ctx, 100)

	sessions, err := s.storage.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(model.SessionID(200), sessions[0].ID)
}

func (s *StorageSuite) TestListSessionsEmpty() {
	sessions, err := s.storage.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Empty(sessions)
}

// Connection tests

func (s *StorageSuite) TestBindAndGetConnection() {
	err := s.storage.BindConnection(s.ctx, "conn-1", 100)
	s.Require().NoError(err)

	id, ok, err := s.storage.GetConnectionSession(s.ctx, "conn-1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(model.SessionID(100), id)
	s.Equal(1, s.storage.ConnectionCount())
}

func (s *StorageSuite) TestGetConnectionNotBound() {
	_, ok, err := s.storage.GetConnectionSession(s.ctx, "conn-1")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StorageSuite) TestUnbindConnection() {
	_ = s.storage.BindConnection(s.ctx, "conn-1", 100)

	s.Require().NoError(s.storage.UnbindConnection(s.ctx, "conn-1"))
	s.Require().NoError(s.storage.UnbindConnection(s.ctx, "conn-1"))

	_, ok, _ := s.storage.GetConnectionSession(s.ctx, "conn-1")
	s.False(ok)
	s.Equal(0, s.storage.ConnectionCount())
}
