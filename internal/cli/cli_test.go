package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tdlobby/internal/api"
	"github.com/mcoot/tdlobby/internal/dependencies/clock"
	"github.com/mcoot/tdlobby/internal/factory"
	"github.com/mcoot/tdlobby/internal/protocol"
	"github.com/mcoot/tdlobby/internal/services/lobby"
	"github.com/mcoot/tdlobby/internal/storage/memory"
	"github.com/mcoot/tdlobby/internal/testutil"
	"github.com/mcoot/tdlobby/internal/transport/ws"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		words   []string
		event   string
		payload any
		wantErr bool
	}{
		{
			name:    "host with options",
			words:   []string{"host", "Castle", "Keep", "max=3", "difficulty=hard", "password=moat", "private", "as=Ann"},
			event:   protocol.EventHostServer,
			payload: protocol.HostServerRequest{Name: "Castle Keep", MaxPlayers: 3, Difficulty: "hard", Password: "moat", Locked: true, PlayerName: "Ann"},
		},
		{
			name:    "host defaults",
			words:   []string{"host"},
			event:   protocol.EventHostServer,
			payload: protocol.HostServerRequest{IsPublic: true},
		},
		{name: "host bad max", words: []string{"host", "max=lots"}, wantErr: true},
		{name: "host unknown option", words: []string{"host", "colour=red"}, wantErr: true},
		{
			name:    "join with password and name",
			words:   []string{"join", "1700000000000", "moat", "as=Bob"},
			event:   protocol.EventJoinServer,
			payload: protocol.JoinServerRequest{ServerID: 1700000000000, Password: "moat", PlayerName: "Bob"},
		},
		{name: "join without id", words: []string{"join"}, wantErr: true},
		{name: "join bad id", words: []string{"join", "castle"}, wantErr: true},
		{name: "leave", words: []string{"leave"}, event: protocol.EventLeaveLobby},
		{name: "start", words: []string{"start"}, event: protocol.EventStartGame},
		{
			name:    "state",
			words:   []string{"state", `{"lives": 10}`},
			event:   protocol.EventGameState,
			payload: json.RawMessage(`{"lives": 10}`),
		},
		{
			name:    "tower without payload",
			words:   []string{"tower"},
			event:   protocol.EventTowerPlaced,
			payload: json.RawMessage(`{}`),
		},
		{name: "tower invalid json", words: []string{"tower", "{nope"}, wantErr: true},
		{name: "wave", words: []string{"wave"}, event: protocol.EventWaveStart},
		{name: "unknown", words: []string{"dance"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, payload, err := ParseCommand(tt.words)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.event, event)
			assert.Equal(t, tt.payload, payload)
		})
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		server   string
		expected string
	}{
		{"http://localhost:3000", "ws://localhost:3000/ws"},
		{"http://localhost:3000/", "ws://localhost:3000/ws"},
		{"https://td.example.com", "wss://td.example.com/ws"},
		{"https://td.example.com/lobby", "wss://td.example.com/lobby/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			c := &Config{ServerURL: tt.server}
			url, err := c.WebSocketURL()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, url)
		})
	}
}

func TestReadSSE(t *testing.T) {
	stream := "event: serverList\ndata: []\n\n: keepalive\n\nevent: serverList\ndata: [\ndata: 1]\n\n"

	var events []string
	err := readSSE(strings.NewReader(stream), func(event, data string) {
		events = append(events, event+"="+data)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"serverList=[]", "serverList=[\n1]"}, events)
}

func TestOutputServerList(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutputTo("text", &buf)

	out.Print([]protocol.Server{
		{ID: 1, Name: "Castle", MaxPlayers: 2, IsPublic: true, Locked: true,
			Players: []protocol.PlayerInfo{{ID: "a", Name: "Ann", IsHost: true}, {ID: "b", Name: "Bob"}}},
		{ID: 2, Name: "Keep", MaxPlayers: 4, GameStarted: true, Players: []protocol.PlayerInfo{{ID: "c"}}},
	})

	text := buf.String()
	assert.Contains(t, text, "Castle")
	assert.Contains(t, text, "full")
	assert.Contains(t, text, "public, locked")
	assert.Contains(t, text, "playing")
	assert.Contains(t, text, "private")
}

func TestOutputEmptyServerList(t *testing.T) {
	var buf bytes.Buffer
	NewOutputTo("text", &buf).Print([]protocol.Server{})
	assert.Equal(t, "No servers\n", buf.String())
}

func TestOutputServerJSON(t *testing.T) {
	var buf bytes.Buffer
	NewOutputTo("json", &buf).Print(protocol.Server{ID: 7, Name: "Castle", Players: []protocol.PlayerInfo{}})

	var decoded protocol.Server
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, int64(7), decoded.ID)
}

func TestOutputEventJSON(t *testing.T) {
	var buf bytes.Buffer
	NewOutputTo("json", &buf).PrintEvent(protocol.EventServerClosed, json.RawMessage(`"Host left the server"`))

	var decoded Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, protocol.EventServerClosed, decoded.Event)
	assert.JSONEq(t, `"Host left the server"`, string(decoded.Data))
}

// syncBuffer lets the shell's listener and the test share output
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newPlayServer(t *testing.T) *httptest.Server {
	t.Helper()
	settings := lobby.DefaultSettings()
	settings.BcryptCost = bcrypt.MinCost
	logger := testutil.NopLogger()
	app := factory.NewWithDependencies(memory.New(), clock.New(), settings, logger)
	app.Start()
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		SessionStore:   app.SessionStore,
		Feed:           app.Feed,
		WebSocket:      ws.NewHandler(app.Hub, app.LobbyController, []string{"*"}, logger),
		AllowedOrigins: []string{"*"},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestShellHostsOverSocket(t *testing.T) {
	server := newPlayServer(t)
	c := &Config{ServerURL: server.URL}
	wsURL, err := c.WebSocketURL()
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	buf := &syncBuffer{}
	shell := NewShell(conn, NewOutputTo("text", buf))
	go shell.Listen()

	err = shell.Run(strings.NewReader("host Castle max=2\nbogus\nlist\nquit\nhost Never\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "joinedLobby: Castle")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), `unknown command "bogus"`)

	resp, err := http.Get(server.URL + "/api/v1/servers")
	require.NoError(t, err)
	defer resp.Body.Close()
	var servers []protocol.Server
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&servers))
	require.Len(t, servers, 1)
	assert.Equal(t, "Castle", servers[0].Name)
}
