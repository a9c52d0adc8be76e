package lobby

import (
	"encoding/json"

	"github.com/mcoot/tdlobby/internal/model"
)

// Command is one client intent, tagged with the connection that issued it
type Command interface {
	Actor() model.ConnectionID
}

// Connect is issued when a connection is opened
type Connect struct {
	Conn model.ConnectionID
}

// Host asks to create a session with the actor as host
type Host struct {
	Conn       model.ConnectionID
	Name       string
	Difficulty string
	MaxPlayers int
	PlayerName string
	IsPublic   bool
	Locked     bool
	Password   string
}

// Join asks to enter an existing session
type Join struct {
	Conn       model.ConnectionID
	SessionID  model.SessionID
	Password   string
	PlayerName string
}

// Leave asks to exit the actor's session
type Leave struct {
	Conn model.ConnectionID
}

// StartGame asks to move the actor's session into play
type StartGame struct {
	Conn model.ConnectionID
}

// Relay forwards an opaque gameplay event to the actor's session
type Relay struct {
	Conn  model.ConnectionID
	Event string
	Data  json.RawMessage
}

// Disconnect is issued when a connection is closed, for any reason
type Disconnect struct {
	Conn model.ConnectionID
}

func (c Connect) Actor() model.ConnectionID    { return c.Conn }
func (c Host) Actor() model.ConnectionID       { return c.Conn }
func (c Join) Actor() model.ConnectionID       { return c.Conn }
func (c Leave) Actor() model.ConnectionID      { return c.Conn }
func (c StartGame) Actor() model.ConnectionID  { return c.Conn }
func (c Relay) Actor() model.ConnectionID      { return c.Conn }
func (c Disconnect) Actor() model.ConnectionID { return c.Conn }
