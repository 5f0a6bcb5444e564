// Package redis implements the cross-process run lock for the daily batch.
// With a single worker the database unique index already guarantees
// idempotency; the lock only prevents two workers from burning duplicate
// generation calls on the same day.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockHeld means another process already owns today's run.
	ErrLockHeld = errors.New("redis: run lock already held")

	// ErrNotLockOwner means a release was attempted with the wrong token.
	ErrNotLockOwner = errors.New("redis: not the lock owner")
)

// Config holds Redis connection configuration.
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RunLock is a best-effort daily-run mutex built on SET NX EX.
// Each acquisition stores a caller token so only the owner can release.
type RunLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRunLock creates a run lock backed by a new Redis client.
func NewRunLock(ctx context.Context, cfg Config) (*RunLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to ping: %w", err)
	}

	return &RunLock{
		client: client,
		prefix: "quizhub:daily-run:",
		ttl:    2 * time.Hour,
	}, nil
}

// NewRunLockWithClient wraps an existing client, mainly for tests.
func NewRunLockWithClient(client *redis.Client) *RunLock {
	return &RunLock{
		client: client,
		prefix: "quizhub:daily-run:",
		ttl:    2 * time.Hour,
	}
}

// Acquire takes the lock for the given calendar day. token identifies the
// acquiring run. Returns ErrLockHeld when another process owns the day.
func (l *RunLock) Acquire(ctx context.Context, day string, token string) error {
	ok, err := l.client.SetNX(ctx, l.prefix+day, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to acquire run lock: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// releaseScript deletes the key only when the stored token matches, so a
// slow run cannot release a lock the TTL already handed to someone else.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Release frees the lock if token still owns it.
func (l *RunLock) Release(ctx context.Context, day string, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.prefix + day}, token).Int()
	if err != nil {
		return fmt.Errorf("redis: failed to release run lock: %w", err)
	}
	if n == 0 {
		return ErrNotLockOwner
	}
	return nil
}

// Close closes the underlying client.
func (l *RunLock) Close() error {
	return l.client.Close()
}
