package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig contains configuration options for the Redis store
type RedisConfig struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "browserhub:artifacts:"
	KeyPrefix string
}

// RedisStore keeps each session's artifacts in one Redis hash, so a purge is a
// single DEL.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "browserhub:artifacts:"
	}
	return &RedisStore{
		client:    cfg.Client,
		keyPrefix: cfg.KeyPrefix,
		now:       time.Now,
	}, nil
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Put stores a, replacing any artifact with the same name.
func (s *RedisStore) Put(ctx context.Context, a Artifact) error {
	if err := validate(a); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if err := s.client.HSet(ctx, s.sessionKey(a.SessionID), a.Name, payload).Err(); err != nil {
		return fmt.Errorf("failed to store artifact %s/%s: %w", a.SessionID, a.Name, err)
	}
	return nil
}

// Get returns the named artifact of a session.
func (s *RedisStore) Get(ctx context.Context, sessionID, name string) (*Artifact, error) {
	raw, err := s.client.HGet(ctx, s.sessionKey(sessionID), name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s/%s: %w", sessionID, name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get artifact %s/%s: %w", sessionID, name, err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	a.SessionID = sessionID
	a.Name = name
	return &a, nil
}

// List returns the artifact names of a session matching pattern.
func (s *RedisStore) List(ctx context.Context, sessionID, pattern string) ([]string, error) {
	names, err := s.client.HKeys(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts for %s: %w", sessionID, err)
	}
	return filterNames(names, pattern)
}

// Purge drops every artifact of a session.
func (s *RedisStore) Purge(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to purge artifacts for %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
