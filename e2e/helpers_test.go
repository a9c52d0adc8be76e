package e2e_test

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tdlobby/internal/api"
	"github.com/mcoot/tdlobby/internal/factory"
	"github.com/mcoot/tdlobby/internal/protocol"
	"github.com/mcoot/tdlobby/internal/services/lobby"
	"github.com/mcoot/tdlobby/internal/transport/ws"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	projectRoot := findProjectRoot(t)

	binaryPath := filepath.Join(t.TempDir(), "tdctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/tdctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	app      *factory.App
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	settings := lobby.DefaultSettings()
	settings.BcryptCost = bcrypt.MinCost

	app, err := factory.New(factory.Config{Logger: logger, Settings: settings})
	require.NoError(t, err)
	app.Start()

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		SessionStore:   app.SessionStore,
		Feed:           app.Feed,
		WebSocket:      ws.NewHandler(app.Hub, app.LobbyController, []string{"*"}, logger),
		AllowedOrigins: []string{"*"},
	})

	server := &http.Server{Handler: router}
	go func() {
		if err := server.Serve(listener); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := "http://" + listener.Addr().String()
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:  app,
		addr: serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// player is one game socket driven by a test
type player struct {
	t    *testing.T
	conn *websocket.Conn
}

func connect(t *testing.T, serverURL string) *player {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(serverURL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &player{t: t, conn: conn}
}

func (p *player) send(event string, payload any) {
	p.t.Helper()
	frame, err := protocol.Encode(event, payload)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, frame))
}

// await reads until the named event arrives and decodes its data into v
func (p *player) await(event string, v any) {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, frame, err := p.conn.ReadMessage()
		require.NoError(p.t, err, "waiting for %s", event)
		env, err := protocol.Decode(frame)
		require.NoError(p.t, err)
		if env.Event != event {
			continue
		}
		if v != nil {
			require.NoError(p.t, env.DecodeData(v))
		}
		return
	}
}

// expectNone asserts no frame other than serverList arrives within the window
func (p *player) expectNone(window time.Duration) {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(window)))
	for {
		_, frame, err := p.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			require.ErrorAs(p.t, err, &netErr)
			require.True(p.t, netErr.Timeout())
			return
		}
		env, err := protocol.Decode(frame)
		require.NoError(p.t, err)
		require.Equal(p.t, protocol.EventServerList, env.Event, "unexpected %s", env.Event)
	}
}
