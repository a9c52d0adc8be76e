package protocol

import (
	"github.com/mcoot/tdlobby/internal/model"
)

// PlayerInfo is the public view of a session member
type PlayerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// Server is the public view of a session, as sent in serverList, joinedLobby and lobbyUpdate
type Server struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Difficulty  string       `json:"difficulty"`
	MaxPlayers  int          `json:"maxPlayers"`
	HostID      string       `json:"hostId"`
	Players     []PlayerInfo `json:"players"`
	IsPublic    bool         `json:"isPublic"`
	Locked      bool         `json:"locked"`
	GameStarted bool         `json:"gameStarted"`
}

// GameStartedPayload is the data of a gameStarted event
type GameStartedPayload struct {
	Difficulty string       `json:"difficulty"`
	Players    []PlayerInfo `json:"players"`
}

// PlayersFromModel converts session members, keeping join order
func PlayersFromModel(players []model.Player) []PlayerInfo {
	result := make([]PlayerInfo, len(players))
	for i, p := range players {
		result[i] = PlayerInfo{
			ID:     string(p.ConnectionID),
			Name:   p.DisplayName,
			IsHost: p.IsHost,
		}
	}
	return result
}

// ServerFromModel converts a session. The password hash is never exposed.
func ServerFromModel(s *model.Session) Server {
	return Server{
		ID:          int64(s.ID),
		Name:        s.Name,
		Difficulty:  s.Difficulty,
		MaxPlayers:  s.MaxPlayers,
		HostID:      string(s.HostID),
		Players:     PlayersFromModel(s.Players),
		IsPublic:    s.IsPublic,
		Locked:      s.Locked,
		GameStarted: s.Started(),
	}
}

// ServerListFromModel converts a session snapshot. The result is never nil so it encodes as [].
func ServerListFromModel(sessions []*model.Session) []Server {
	result := make([]Server, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, ServerFromModel(s))
	}
	return result
}

// GameStartedFromModel builds the gameStarted payload for a session
func GameStartedFromModel(s *model.Session) GameStartedPayload {
	return GameStartedPayload{
		Difficulty: s.Difficulty,
		Players:    PlayersFromModel(s.Players),
	}
}
