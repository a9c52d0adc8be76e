package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/mcoot/tdlobby/internal/protocol"
)

const playHelp = `Commands:
  host [name] [max=N] [difficulty=D] [password=P] [private] [as=NAME]
  join <server-id> [password] [as=NAME]
  leave
  start
  state <json>      relay gameState to the other players
  tower <json>      relay towerPlaced to the other players
  wave              start the next wave for everyone
  list              show the last server list received
  help
  quit`

// errQuit ends the shell loop
var errQuit = errors.New("quit")

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Open an interactive game socket",
		Long: `Connect to the server's game socket and type commands to host, join and play.

Events from the server are printed as they arrive.

` + playHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			wsURL, err := cfg.WebSocketURL()
			if err != nil {
				return err
			}

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), wsURL, nil)
			if err != nil {
				return fmt.Errorf("connection failed: %w", err)
			}
			defer func() { _ = conn.Close() }()

			out := NewOutputTo(cfg.Output, cmd.OutOrStdout())
			if cfg.Verbose {
				out.PrintMessage("Connected to " + wsURL)
			}

			shell := NewShell(conn, out)
			go shell.Listen()
			return shell.Run(cmd.InOrStdin())
		},
	}
}

// Shell turns typed commands into game socket events
type Shell struct {
	conn *websocket.Conn
	out  *Output

	writeMu sync.Mutex

	mu      sync.Mutex
	servers []protocol.Server
	done    chan struct{}
}

// NewShell creates a Shell over an open game socket
func NewShell(conn *websocket.Conn, out *Output) *Shell {
	return &Shell{conn: conn, out: out, done: make(chan struct{})}
}

// Listen prints inbound events until the socket closes
func (s *Shell) Listen() {
	defer close(s.done)
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(frame)
		if err != nil {
			continue
		}
		if env.Event == protocol.EventServerList {
			var list []protocol.Server
			if env.DecodeData(&list) == nil {
				s.mu.Lock()
				s.servers = list
				s.mu.Unlock()
			}
		}
		s.out.PrintEvent(env.Event, env.Data)
	}
}

// Done is closed once the socket stops delivering events
func (s *Shell) Done() <-chan struct{} {
	return s.done
}

// Run reads commands from in until quit, end of input or a socket error
func (s *Shell) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := s.Execute(scanner.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			var usage usageError
			if errors.As(err, &usage) {
				s.out.PrintMessage(usage.Error())
				continue
			}
			return err
		}
	}
	return scanner.Err()
}

// Execute runs one command line
func (s *Shell) Execute(line string) error {
	words, err := shellwords.Parse(line)
	if err != nil {
		return usageError{err.Error()}
	}
	if len(words) == 0 {
		return nil
	}

	switch words[0] {
	case "quit", "exit":
		return errQuit
	case "help":
		s.out.PrintMessage(playHelp)
		return nil
	case "list":
		s.mu.Lock()
		servers := s.servers
		s.mu.Unlock()
		if servers == nil {
			servers = []protocol.Server{}
		}
		s.out.Print(servers)
		return nil
	}

	event, payload, err := ParseCommand(words)
	if err != nil {
		return err
	}
	return s.send(event, payload)
}

func (s *Shell) send(event string, payload any) error {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// usageError is a mistyped command; the shell reports it and keeps going
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

// ParseCommand maps a split command line to the event and payload to send
func ParseCommand(words []string) (string, any, error) {
	verb, args := words[0], words[1:]

	switch verb {
	case "host":
		req := protocol.HostServerRequest{IsPublic: true}
		var names []string
		for _, arg := range args {
			key, value, hasValue := strings.Cut(arg, "=")
			switch {
			case key == "private" && !hasValue:
				req.IsPublic = false
			case key == "max" && hasValue:
				n, err := strconv.Atoi(value)
				if err != nil {
					return "", nil, usageError{"max must be a number"}
				}
				req.MaxPlayers = n
			case key == "difficulty" && hasValue:
				req.Difficulty = value
			case key == "password" && hasValue:
				req.Password = value
				req.Locked = value != ""
			case key == "as" && hasValue:
				req.PlayerName = value
			case !hasValue:
				names = append(names, arg)
			default:
				return "", nil, usageError{"unknown option " + key}
			}
		}
		req.Name = strings.Join(names, " ")
		return protocol.EventHostServer, req, nil

	case "join":
		if len(args) == 0 {
			return "", nil, usageError{"usage: join <server-id> [password] [as=NAME]"}
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return "", nil, usageError{"server id must be a number"}
		}
		req := protocol.JoinServerRequest{ServerID: id}
		for _, arg := range args[1:] {
			if name, ok := strings.CutPrefix(arg, "as="); ok {
				req.PlayerName = name
				continue
			}
			req.Password = arg
		}
		return protocol.EventJoinServer, req, nil

	case "leave":
		return protocol.EventLeaveLobby, nil, nil

	case "start":
		return protocol.EventStartGame, nil, nil

	case "state", "tower":
		data := json.RawMessage("{}")
		if len(args) > 0 {
			data = json.RawMessage(strings.Join(args, " "))
		}
		if !json.Valid(data) {
			return "", nil, usageError{verb + " payload must be valid JSON"}
		}
		event := protocol.EventGameState
		if verb == "tower" {
			event = protocol.EventTowerPlaced
		}
		return event, data, nil

	case "wave":
		return protocol.EventWaveStart, nil, nil

	default:
		return "", nil, usageError{fmt.Sprintf("unknown command %q (try help)", verb)}
	}
}
