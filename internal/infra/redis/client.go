package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis operations used for session locking.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Lock scripts only touch the key when the caller still owns it.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func lockKey(name string) string {
	return fmt.Sprintf("fetcher:lock:%s", name)
}

// AcquireLock attempts to take the named lock for owner.
func (c *Client) AcquireLock(
	ctx context.Context,
	name, owner string,
	ttl time.Duration,
) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockKey(name), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseLock releases the named lock if owner still holds it.
func (c *Client) ReleaseLock(ctx context.Context, name, owner string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{lockKey(name)}, owner).Err(); err != nil {
		return fmt.Errorf("release lock failed: %w", err)
	}
	return nil
}

// RefreshLock extends the TTL of a lock held by owner.
// It reports false when the lock is no longer owned.
func (c *Client) RefreshLock(
	ctx context.Context,
	name, owner string,
	ttl time.Duration,
) (bool, error) {
	n, err := refreshScript.Run(ctx, c.rdb, []string{lockKey(name)}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("refresh lock failed: %w", err)
	}
	return n == 1, nil
}

// LockOwner returns the current owner of the named lock, or "" when free.
func (c *Client) LockOwner(ctx context.Context, name string) (string, error) {
	owner, err := c.rdb.Get(ctx, lockKey(name)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get failed: %w", err)
	}
	return owner, nil
}
