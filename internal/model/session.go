package model

import (
	"strconv"
	"time"
)

// SessionID uniquely identifies a hosted session for the lifetime of the process
type SessionID int64

// String returns the decimal form of the id
func (id SessionID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseSessionID parses the decimal form of a session id
func ParseSessionID(s string) (SessionID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return SessionID(n), nil
}

// SessionState represents where a session is in its lifecycle
type SessionState string

const (
	SessionStateLobby      SessionState = "lobby"       // Accepting joins
	SessionStateInProgress SessionState = "in_progress" // Game started, no joins
	SessionStateClosed     SessionState = "closed"      // Host left, terminal
)

// DefaultDifficulty is used when the host does not pick one
const DefaultDifficulty = "normal"

// SessionSpec holds the host-supplied settings for a new session
type SessionSpec struct {
	Name         string
	Difficulty   string
	MaxPlayers   int
	IsPublic     bool
	Locked       bool
	PasswordHash string // bcrypt hash, empty unless Locked
}

// Session is one joinable game instance ("server") and its membership
type Session struct {
	ID           SessionID
	Name         string
	Difficulty   string
	MaxPlayers   int
	HostID       ConnectionID
	Players      []Player // Join order, host first
	IsPublic     bool
	Locked       bool
	PasswordHash string
	State        SessionState
	CreatedAt    time.Time
}

// Started reports whether the session has left the lobby
func (s *Session) Started() bool {
	return s.State != SessionStateLobby
}

// IsFull reports whether another player would exceed MaxPlayers
func (s *Session) IsFull() bool {
	return len(s.Players) >= s.MaxPlayers
}

// IsHost reports whether the connection is this session's host
func (s *Session) IsHost(conn ConnectionID) bool {
	return s.HostID == conn
}

// RemovePlayer drops the connection from Players, reporting whether it was present
func (s *Session) RemovePlayer(conn ConnectionID) bool {
	for i, p := range s.Players {
		if p.ConnectionID == conn {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return true
		}
	}
	return false
}

// ConnectionIDs returns the connection of every player in join order
func (s *Session) ConnectionIDs() []ConnectionID {
	ids := make([]ConnectionID, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ConnectionID
	}
	return ids
}

// Clone returns a deep copy so callers can mutate without touching stored state
func (s *Session) Clone() *Session {
	c := *s
	c.Players = make([]Player, len(s.Players))
	copy(c.Players, s.Players)
	return &c
}
