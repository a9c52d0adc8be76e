package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/tdlobby/internal/middleware"
	"github.com/mcoot/tdlobby/internal/model"
	"github.com/mcoot/tdlobby/internal/protocol"
	"github.com/mcoot/tdlobby/internal/services/lobby"
)

// ErrUnknownEvent is returned for inbound event names the server does not handle
var ErrUnknownEvent = errors.New("unknown event")

// Dispatcher applies client commands
type Dispatcher interface {
	Handle(ctx context.Context, cmd lobby.Command) error
}

// Handler upgrades HTTP requests to WebSockets and feeds their frames to a Dispatcher
type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a Handler. An origin list containing "*" accepts any origin.
func NewHandler(hub *Hub, dispatcher Dispatcher, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With(slog.String("component", "ws")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		return
	}

	client := newClient(model.ConnectionID(uuid.NewString()), conn)
	h.hub.Register(client)
	go client.writePump()

	// The request context is cancelled once the handler returns; commands outlive it
	ctx := context.WithoutCancel(r.Context())
	log := h.logger.With(slog.String("connection_id", string(client.id)))

	h.dispatch(ctx, log, lobby.Connect{Conn: client.id})

	err = client.readPump(func(frame []byte) {
		cmd, err := decodeCommand(client.id, frame)
		if err != nil {
			log.Warn("ignoring inbound frame", slog.Any("error", err))
			return
		}
		h.dispatch(ctx, log, cmd)
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		log.Info("websocket closed unexpectedly", slog.Any("error", err))
	}

	h.hub.Unregister(client)
	h.dispatch(ctx, log, lobby.Disconnect{Conn: client.id})
}

// dispatch applies a command. Rejections have already been reported to the client.
// A panicking command is logged and the connection stays open.
func (h *Handler) dispatch(ctx context.Context, log *slog.Logger, cmd lobby.Command) {
	var err error
	middleware.Guard(log.With(slog.String("command", commandName(cmd))), func() {
		err = h.dispatcher.Handle(ctx, cmd)
	})
	if err == nil {
		return
	}
	if isRejection(err) {
		log.Debug("command rejected", slog.String("command", commandName(cmd)), slog.Any("error", err))
		return
	}
	log.Error("command failed", slog.String("command", commandName(cmd)), slog.Any("error", err))
}

// decodeCommand turns one inbound frame into a command for conn
func decodeCommand(conn model.ConnectionID, frame []byte) (lobby.Command, error) {
	env, err := protocol.Decode(frame)
	if err != nil {
		return nil, err
	}

	switch env.Event {
	case protocol.EventHostServer:
		var req protocol.HostServerRequest
		if err := env.DecodeData(&req); err != nil {
			return nil, err
		}
		return lobby.Host{
			Conn:       conn,
			Name:       req.Name,
			Difficulty: req.Difficulty,
			MaxPlayers: req.MaxPlayers,
			PlayerName: req.PlayerName,
			IsPublic:   req.IsPublic,
			Locked:     req.Locked,
			Password:   req.Password,
		}, nil

	case protocol.EventJoinServer:
		var req protocol.JoinServerRequest
		if err := env.DecodeData(&req); err != nil {
			// An unreadable join names no session and is refused as not found
			return lobby.Join{Conn: conn}, nil
		}
		return lobby.Join{
			Conn:       conn,
			SessionID:  model.SessionID(req.ServerID),
			Password:   req.Password,
			PlayerName: req.PlayerName,
		}, nil

	case protocol.EventLeaveLobby:
		return lobby.Leave{Conn: conn}, nil

	case protocol.EventStartGame:
		return lobby.StartGame{Conn: conn}, nil

	case protocol.EventGameState, protocol.EventTowerPlaced, protocol.EventWaveStart:
		return lobby.Relay{Conn: conn, Event: env.Event, Data: env.Data}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func isRejection(err error) bool {
	return errors.Is(err, model.ErrSessionNotFound) ||
		errors.Is(err, model.ErrSessionFull) ||
		errors.Is(err, model.ErrBadPassword) ||
		errors.Is(err, model.ErrAlreadyStarted) ||
		errors.Is(err, model.ErrAlreadyInSession)
}

func commandName(cmd lobby.Command) string {
	switch cmd.(type) {
	case lobby.Connect:
		return "connect"
	case lobby.Host:
		return protocol.EventHostServer
	case lobby.Join:
		return protocol.EventJoinServer
	case lobby.Leave:
		return protocol.EventLeaveLobby
	case lobby.StartGame:
		return protocol.EventStartGame
	case lobby.Relay:
		return "relay"
	case lobby.Disconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
