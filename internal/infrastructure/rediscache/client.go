package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pilabs/users-api/pkg/apperrors"
)

// Client is a thin JSON-serializing wrapper over a redis connection.
// It is best-effort acceleration only; a missing key is a plain miss,
// a broken connection is a typed CacheError so callers can tell the two
// apart and log outages instead of mistaking them for cold caches.
type Client struct {
	rdb *redis.Client
}

// New connects and probes the server; an unreachable redis fails fast.
func New(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperrors.Cache("ping", "", err)
	}
	return &Client{rdb: rdb}, nil
}

// Get reads key into dest. Returns (false, nil) when the key is absent.
// Structured decoding is tried first; when dest is a *string and the stored
// value is not valid JSON, the raw string is returned as-is so the same API
// serves both structured and primitive values.
func (c *Client) Get(ctx context.Context, key string, dest any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Cache("get", key, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		if s, ok := dest.(*string); ok {
			*s = string(b)
			return true, nil
		}
		return false, apperrors.Cache("get", key, err)
	}
	return true, nil
}

// Set stores value under key. Strings go in raw, everything else is JSON
// encoded. A zero ttl means no expiry.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	var payload any
	switch v := value.(type) {
	case string:
		payload = v
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return apperrors.Cache("set", key, err)
		}
		payload = b
	}
	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return apperrors.Cache("set", key, err)
	}
	return nil
}

// Delete removes key and reports how many keys went away (0 or 1).
func (c *Client) Delete(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		return 0, apperrors.Cache("del", key, err)
	}
	return n, nil
}

// Exists reports whether key is present. Diagnostic, not on the hot path.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, apperrors.Cache("exists", key, err)
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime with redis sentinel semantics:
// -1 for a key without expiry, -2 for a missing key.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, apperrors.Cache("ttl", key, err)
	}
	return d, nil
}

// Ping probes the connection; the health endpoint uses it.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return apperrors.Cache("ping", "", err)
	}
	return nil
}

// Raw exposes the underlying connection for middleware that shares it,
// such as the rate limiter.
func (c *Client) Raw() *redis.Client { return c.rdb }

func (c *Client) Close() error { return c.rdb.Close() }
