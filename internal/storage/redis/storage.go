package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/tdlobby/internal/model"
	"github.com/mcoot/tdlobby/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	s := &Storage{
		client: client,
		cfg:    cfg,
	}

	if cfg.PurgeOnStart {
		if err := s.Purge(ctx); err != nil {
			return nil, fmt.Errorf("purge stale keys: %w", err)
		}
	}

	return s, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Purge removes every key owned by this service
func (s *Storage) Purge(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, allKeysPattern(), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	// Ids are time-derived and monotonic, so scoring by id keeps creation order.
	// NX leaves the position of an existing session alone.
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), data, s.cfg.SessionTTL)
	pipe.ZAddNX(ctx, sessionIndexKey(), redis.Z{
		Score:  float64(session.ID),
		Member: session.ID.String(),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.ZRem(ctx, sessionIndexKey(), id.String())
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) SessionExists(ctx context.Context, id model.SessionID) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.Session, error) {
	members, err := s.client.ZRange(ctx, sessionIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(members) == 0 {
		return []*model.Session{}, nil
	}

	keys := make([]string, 0, len(members))
	for _, member := range members {
		id, err := model.ParseSessionID(member)
		if err != nil {
			continue // Skip invalid index entries
		}
		keys = append(keys, sessionKey(id))
	}

	if len(keys) == 0 {
		return []*model.Session{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue // Session may have expired
		}
		raw, ok := val.(string)
		if !ok {
			continue
		}
		var session model.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			continue // Skip invalid data
		}
		sessions = append(sessions, &session)
	}

	return sessions, nil
}

// Connection operations

func (s *Storage) BindConnection(ctx context.Context, conn model.ConnectionID, id model.SessionID) error {
	return s.client.HSet(ctx, connectionsKey(), string(conn), id.String()).Err()
}

func (s *Storage) UnbindConnection(ctx context.Context, conn model.ConnectionID) error {
	return s.client.HDel(ctx, connectionsKey(), string(conn)).Err()
}

func (s *Storage) GetConnectionSession(ctx context.Context, conn model.ConnectionID) (model.SessionID, bool, error) {
	raw, err := s.client.HGet(ctx, connectionsKey(), string(conn)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt connection entry %q: %w", conn, err)
	}
	return model.SessionID(n), true, nil
}
