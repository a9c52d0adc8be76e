package redis

import (
	"fmt"

	"github.com/mcoot/tdlobby/internal/model"
)

// Key prefix for all relay data
const keyPrefix = "tdlobby"

// sessionKey returns the Redis key for a Session
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%d", keyPrefix, id)
}

// sessionIndexKey returns the Redis key for the ZSET of session ids in creation order
func sessionIndexKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}

// connectionsKey returns the Redis key for the connection -> session HASH
func connectionsKey() string {
	return fmt.Sprintf("%s:connections", keyPrefix)
}

// allKeysPattern matches every key owned by this service
func allKeysPattern() string {
	return keyPrefix + ":*"
}
