// Package artifacts keeps captured session artifacts, such as screenshots,
// keyed by session identifier.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"github.com/redis/go-redis/v9"

	"github.com/entrhq/browserhub/pkg/config"
)

// ErrNotFound is returned by Get for a missing artifact.
var ErrNotFound = errors.New("artifact not found")

// Artifact is one captured blob tagged with the session it belongs to.
type Artifact struct {
	SessionID string    `json:"-"`
	Name      string    `json:"-"`
	MimeType  string    `json:"mime_type"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists artifacts per session. Purge of an identifier with no
// artifacts succeeds.
type Store interface {
	Put(ctx context.Context, a Artifact) error
	Get(ctx context.Context, sessionID, name string) (*Artifact, error)

	// List returns artifact names for sessionID matching a glob pattern,
	// sorted. An empty pattern matches everything.
	List(ctx context.Context, sessionID, pattern string) ([]string, error)

	Purge(ctx context.Context, sessionID string) error
	Close() error
}

// Open builds the Store selected by cfg.
func Open(ctx context.Context, cfg config.ArtifactConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisStore(RedisConfig{Client: client, KeyPrefix: cfg.KeyPrefix})
	default:
		return nil, fmt.Errorf("unknown artifact backend: %s", cfg.Backend)
	}
}

// filterNames returns the names matching pattern, sorted.
func filterNames(names []string, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if g.Match(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func validate(a Artifact) error {
	if a.SessionID == "" {
		return fmt.Errorf("artifact session id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("artifact name is required")
	}
	return nil
}
