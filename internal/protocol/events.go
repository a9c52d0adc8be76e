package protocol

// Event names a client may send
const (
	EventHostServer  = "hostServer"
	EventJoinServer  = "joinServer"
	EventLeaveLobby  = "leaveLobby"
	EventStartGame   = "startGame"
	EventGameState   = "gameState"
	EventTowerPlaced = "towerPlaced"
	EventWaveStart   = "waveStart"
)

// Event names the server sends
const (
	EventServerList   = "serverList"
	EventJoinedLobby  = "joinedLobby"
	EventLobbyUpdate  = "lobbyUpdate"
	EventServerClosed = "serverClosed"
	EventGameStarted  = "gameStarted"
	EventError        = "error"
)

// Reasons sent with serverClosed
const (
	ReasonHostLeft         = "Host left the server"
	ReasonHostDisconnected = "Host disconnected"
)

// IsRelayEvent reports whether the event is forwarded opaquely between session members
func IsRelayEvent(event string) bool {
	switch event {
	case EventGameState, EventTowerPlaced, EventWaveStart:
		return true
	default:
		return false
	}
}
