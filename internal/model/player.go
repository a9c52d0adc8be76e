package model

// ConnectionID identifies a single live transport connection.
// It is minted by the transport when the connection opens and means nothing after it closes.
type ConnectionID string

// DefaultDisplayName is used when a player does not supply a name
const DefaultDisplayName = "Player"

// Player is a connection's membership in a session
type Player struct {
	ConnectionID ConnectionID
	DisplayName  string
	IsHost       bool
}
