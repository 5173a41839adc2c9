package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"reelcast/internal/config"
)

// Mirror receives a copy of every recorded progress value.
type Mirror interface {
	Record(ctx context.Context, projectID, processID string, percent int) error
	Forget(ctx context.Context, projectID string) error
}

// RedisMirror publishes progress into one Redis hash per project, keyed by
// process identifier, so dashboards can poll without touching SQLite.
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMirror connects to Redis using cfg and validates the connection.
func NewRedisMirror(cfg config.Redis, ttl time.Duration) (*RedisMirror, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return NewRedisMirrorFromClient(client, cfg.KeyPrefix, ttl), nil
}

// NewRedisMirrorFromClient wraps an existing client.
func NewRedisMirrorFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the hash key holding a project's progress.
func (m *RedisMirror) Key(projectID string) string {
	return m.prefix + strings.TrimSpace(projectID)
}

// Record sets one field of the project's hash and refreshes its expiry.
func (m *RedisMirror) Record(ctx context.Context, projectID, processID string, percent int) error {
	key := m.Key(projectID)
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, processID, percent)
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror progress %s/%s: %w", projectID, processID, err)
	}
	return nil
}

// Forget removes the project's hash.
func (m *RedisMirror) Forget(ctx context.Context, projectID string) error {
	if err := m.client.Del(ctx, m.Key(projectID)).Err(); err != nil {
		return fmt.Errorf("forget progress %s: %w", projectID, err)
	}
	return nil
}

// Ping checks connectivity.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close releases pooled connections.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
