package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tdlobby/internal/model"
	"github.com/mcoot/tdlobby/internal/protocol"
	"github.com/mcoot/tdlobby/internal/services/broadcast"
	"github.com/mcoot/tdlobby/internal/services/session"
)

// Settings tunes session creation
type Settings struct {
	DefaultMaxPlayers int // Used when the host asks for zero or fewer
	MaxPlayersLimit   int // Upper clamp on MaxPlayers
	BcryptCost        int
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		DefaultMaxPlayers: 4,
		MaxPlayersLimit:   8,
		BcryptCost:        bcrypt.DefaultCost,
	}
}

// ErrUnknownCommand is returned by Handle for commands it does not recognise
var ErrUnknownCommand = errors.New("unknown command")

// Controller runs the session lifecycle state machine.
// Every transition holds a single lock, so no two commands interleave.
type Controller struct {
	store    *session.Store
	registry *session.Registry
	router   *broadcast.Router
	settings Settings
	hasher   Hasher
	logger   *slog.Logger

	mu sync.Mutex
}

// NewController creates a new Controller
func NewController(
	store *session.Store,
	registry *session.Registry,
	router *broadcast.Router,
	settings Settings,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		store:    store,
		registry: registry,
		router:   router,
		settings: settings,
		hasher:   BcryptHasher{Cost: settings.BcryptCost},
		logger:   logger.With(slog.String("component", "lobby")),
	}
}

// Handle dispatches a command to its transition
func (c *Controller) Handle(ctx context.Context, cmd Command) error {
	switch cmd := cmd.(type) {
	case Connect:
		c.Connect(ctx, cmd)
		return nil
	case Host:
		_, err := c.Host(ctx, cmd)
		return err
	case Join:
		_, err := c.Join(ctx, cmd)
		return err
	case Leave:
		return c.Leave(ctx, cmd)
	case StartGame:
		return c.StartGame(ctx, cmd)
	case Relay:
		return c.Relay(ctx, cmd)
	case Disconnect:
		return c.Disconnect(ctx, cmd)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

// Connect greets a new connection with the current server list
func (c *Controller) Connect(ctx context.Context, cmd Connect) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("connection opened", slog.String("connection_id", string(cmd.Conn)))
	c.router.SendSessionList(ctx, cmd.Conn)
}

// Host creates a session with the actor as host and sole player
func (c *Controller) Host(ctx context.Context, cmd Host) (*model.Session, error) {
	// Hashing is slow and needs no session state, so it runs before the lock
	spec, err := c.sessionSpec(cmd)
	if err != nil {
		c.reject(ctx, cmd.Conn, err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.currentSession(ctx, cmd.Conn)
	if err != nil {
		return nil, err
	}
	if current != nil {
		c.reject(ctx, cmd.Conn, model.ErrAlreadyInSession)
		return nil, model.ErrAlreadyInSession
	}

	host := model.Player{ConnectionID: cmd.Conn, DisplayName: displayName(cmd.PlayerName)}
	if cmd.Name == "" {
		spec.Name = host.DisplayName + "'s server"
	}

	s, err := c.store.Create(ctx, spec, host)
	if err != nil {
		return nil, err
	}
	if err := c.registry.Bind(ctx, cmd.Conn, s.ID); err != nil {
		return nil, err
	}

	c.logger.Info("session hosted",
		slog.Int64("session_id", int64(s.ID)),
		slog.String("connection_id", string(cmd.Conn)),
		slog.String("name", s.Name),
		slog.Int("max_players", s.MaxPlayers),
		slog.Bool("locked", s.Locked))

	c.router.ToConnection(ctx, cmd.Conn, protocol.EventJoinedLobby, protocol.ServerFromModel(s))
	c.router.AnnounceSessions(ctx)
	return s, nil
}

// Join adds the actor to an existing session.
// Admission checks run in a fixed order: not found, full, bad password, already started.
func (c *Controller) Join(ctx context.Context, cmd Join) (*model.Session, error) {
	check := c.checkPassword(ctx, cmd)

	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.currentSession(ctx, cmd.Conn)
	if err != nil {
		return nil, err
	}
	if current != nil {
		c.reject(ctx, cmd.Conn, model.ErrAlreadyInSession)
		return nil, model.ErrAlreadyInSession
	}

	s, err := c.store.Find(ctx, cmd.SessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			c.reject(ctx, cmd.Conn, err)
		}
		return nil, err
	}
	if err := c.admit(s, cmd.Password, check); err != nil {
		c.reject(ctx, cmd.Conn, err)
		return nil, err
	}

	s.Players = append(s.Players, model.Player{
		ConnectionID: cmd.Conn,
		DisplayName:  displayName(cmd.PlayerName),
	})
	if err := c.store.Save(ctx, s); err != nil {
		return nil, err
	}
	if err := c.registry.Bind(ctx, cmd.Conn, s.ID); err != nil {
		return nil, err
	}

	c.logger.Info("player joined session",
		slog.Int64("session_id", int64(s.ID)),
		slog.String("connection_id", string(cmd.Conn)),
		slog.Int("players", len(s.Players)))

	view := protocol.ServerFromModel(s)
	c.router.ToConnection(ctx, cmd.Conn, protocol.EventJoinedLobby, view)
	c.router.ToSession(ctx, s.ID, protocol.EventLobbyUpdate, view, "")
	c.router.AnnounceSessions(ctx)
	return s, nil
}

// Leave removes the actor from its session. The host leaving closes the session for everyone.
func (c *Controller) Leave(ctx context.Context, cmd Leave) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.depart(ctx, cmd.Conn, protocol.ReasonHostLeft)
}

// Disconnect handles a closed connection as an implicit leave, then forgets it
func (c *Controller) Disconnect(ctx context.Context, cmd Disconnect) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.depart(ctx, cmd.Conn, protocol.ReasonHostDisconnected)
	if unbindErr := c.registry.Unbind(ctx, cmd.Conn); unbindErr != nil && err == nil {
		err = unbindErr
	}
	c.logger.Debug("connection closed", slog.String("connection_id", string(cmd.Conn)))
	return err
}

// StartGame moves the actor's session into play and announces it.
// Anyone but the host is ignored. A repeat from the host announces again.
func (c *Controller) StartGame(ctx context.Context, cmd StartGame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.currentSession(ctx, cmd.Conn)
	if err != nil || s == nil {
		return err
	}
	if !s.IsHost(cmd.Conn) {
		c.logger.Debug("ignoring start game",
			slog.Int64("session_id", int64(s.ID)),
			slog.String("connection_id", string(cmd.Conn)),
			slog.String("state", string(s.State)))
		return nil
	}

	s.State = model.SessionStateInProgress
	if err := c.store.Save(ctx, s); err != nil {
		return err
	}

	c.logger.Info("game started",
		slog.Int64("session_id", int64(s.ID)),
		slog.Int("players", len(s.Players)))

	c.router.ToSession(ctx, s.ID, protocol.EventGameStarted, protocol.GameStartedFromModel(s), "")
	c.router.AnnounceSessions(ctx)
	return nil
}

// Relay forwards gameplay traffic to the actor's session without inspecting it.
// gameState and towerPlaced skip the sender. waveStart reaches everyone and carries no data.
func (c *Controller) Relay(ctx context.Context, cmd Relay) error {
	if !protocol.IsRelayEvent(cmd.Event) {
		return fmt.Errorf("%w: relay of %q", ErrUnknownCommand, cmd.Event)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.currentSession(ctx, cmd.Conn)
	if err != nil || s == nil {
		return err
	}

	switch cmd.Event {
	case protocol.EventWaveStart:
		c.router.ToSession(ctx, s.ID, cmd.Event, nil, "")
	default:
		c.router.ToSession(ctx, s.ID, cmd.Event, cmd.Data, cmd.Conn)
	}
	return nil
}

// depart removes conn from its session, closing the session when conn is the host.
// Unregistered connections are a no-op.
func (c *Controller) depart(ctx context.Context, conn model.ConnectionID, reason string) error {
	s, err := c.currentSession(ctx, conn)
	if err != nil || s == nil {
		return err
	}

	if s.IsHost(conn) {
		return c.closeSession(ctx, s, reason)
	}

	s.RemovePlayer(conn)
	if err := c.store.Save(ctx, s); err != nil {
		return err
	}
	if err := c.registry.Unbind(ctx, conn); err != nil {
		return err
	}

	c.logger.Info("player left session",
		slog.Int64("session_id", int64(s.ID)),
		slog.String("connection_id", string(conn)),
		slog.Int("players", len(s.Players)))

	c.router.ToSession(ctx, s.ID, protocol.EventLobbyUpdate, protocol.ServerFromModel(s), "")
	c.router.AnnounceSessions(ctx)
	return nil
}

// closeSession tells every member the session is gone, then removes it and unbinds them all
func (c *Controller) closeSession(ctx context.Context, s *model.Session, reason string) error {
	c.router.ToSession(ctx, s.ID, protocol.EventServerClosed, reason, "")

	s.State = model.SessionStateClosed
	if err := c.store.Remove(ctx, s.ID); err != nil {
		return err
	}

	var errs []error
	for _, conn := range s.ConnectionIDs() {
		if err := c.registry.Unbind(ctx, conn); err != nil {
			errs = append(errs, err)
		}
	}

	c.logger.Info("session closed",
		slog.Int64("session_id", int64(s.ID)),
		slog.String("reason", reason),
		slog.Int("players", len(s.Players)))

	c.router.AnnounceSessions(ctx)
	return errors.Join(errs...)
}

// currentSession resolves the session conn is registered to.
// It returns nil when conn is unregistered. A registry entry whose session is gone is dropped.
func (c *Controller) currentSession(ctx context.Context, conn model.ConnectionID) (*model.Session, error) {
	id, ok, err := c.registry.SessionOf(ctx, conn)
	if err != nil || !ok {
		return nil, err
	}

	s, err := c.store.Find(ctx, id)
	if errors.Is(err, model.ErrSessionNotFound) {
		c.logger.Warn("dropping stale connection binding",
			slog.String("connection_id", string(conn)),
			slog.Int64("session_id", int64(id)))
		return nil, c.registry.Unbind(ctx, conn)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// sessionSpec applies defaults and limits to a host request
func (c *Controller) sessionSpec(cmd Host) (model.SessionSpec, error) {
	spec := model.SessionSpec{
		Name:       strings.TrimSpace(cmd.Name),
		Difficulty: cmd.Difficulty,
		MaxPlayers: cmd.MaxPlayers,
		IsPublic:   cmd.IsPublic,
		Locked:     cmd.Locked && cmd.Password != "",
	}
	if spec.Difficulty == "" {
		spec.Difficulty = model.DefaultDifficulty
	}
	if spec.MaxPlayers <= 0 {
		spec.MaxPlayers = c.settings.DefaultMaxPlayers
	}
	if c.settings.MaxPlayersLimit > 0 && spec.MaxPlayers > c.settings.MaxPlayersLimit {
		spec.MaxPlayers = c.settings.MaxPlayersLimit
	}

	if spec.Locked {
		hash, err := c.hasher.Hash(cmd.Password)
		if err != nil {
			return model.SessionSpec{}, err
		}
		spec.PasswordHash = hash
	}
	return spec, nil
}

// reject sends the user-visible reason for err to the actor only
func (c *Controller) reject(ctx context.Context, conn model.ConnectionID, err error) {
	c.logger.Debug("command rejected",
		slog.String("connection_id", string(conn)),
		slog.String("reason", err.Error()))
	c.router.ToConnection(ctx, conn, protocol.EventError, ErrorMessage(err))
}

// checkPassword verifies a join password outside the lock.
// admit repeats the check only if the session's hash differs by then.
func (c *Controller) checkPassword(ctx context.Context, cmd Join) passwordCheck {
	s, err := c.store.Find(ctx, cmd.SessionID)
	if err != nil || !s.Locked {
		return passwordCheck{}
	}
	return passwordCheck{
		hash: s.PasswordHash,
		ok:   c.hasher.Matches(s.PasswordHash, cmd.Password),
	}
}

// admit runs the admission checks that depend on the session itself
func (c *Controller) admit(s *model.Session, password string, check passwordCheck) error {
	if s.IsFull() {
		return model.ErrSessionFull
	}
	if s.Locked && !check.verify(c.hasher, s.PasswordHash, password) {
		return model.ErrBadPassword
	}
	if s.Started() {
		return model.ErrAlreadyStarted
	}
	return nil
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.DefaultDisplayName
	}
	return name
}

// ErrorMessage maps a lifecycle error to the text sent in an error event
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return "Server not found"
	case errors.Is(err, model.ErrSessionFull):
		return "Server is full"
	case errors.Is(err, model.ErrBadPassword):
		return "Incorrect password"
	case errors.Is(err, model.ErrAlreadyStarted):
		return "Game already started"
	case errors.Is(err, model.ErrAlreadyInSession):
		return "Already in a server"
	default:
		return "Internal server error"
	}
}
