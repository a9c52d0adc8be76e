package protocol

// HostServerRequest is the data of a hostServer event
type HostServerRequest struct {
	Name       string `json:"name"`
	Difficulty string `json:"difficulty"`
	MaxPlayers int    `json:"maxPlayers"`
	PlayerName string `json:"playerName"`
	IsPublic   bool   `json:"isPublic"`
	Locked     bool   `json:"locked"`
	Password   string `json:"password,omitempty"`
}

// JoinServerRequest is the data of a joinServer event
type JoinServerRequest struct {
	ServerID   int64  `json:"serverId"`
	Password   string `json:"password,omitempty"`
	PlayerName string `json:"playerName"`
}
