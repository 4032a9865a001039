// Package defcache keeps loaded game definitions in Redis so repeated plays of
// the same game skip the backend round trip.
package defcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/questlab/player/internal/questlab"
)

const keyPrefix = "questlab:game:"

// Fetcher returns the raw definition document for a game.
type Fetcher interface {
	FetchGame(ctx context.Context, id string) (json.RawMessage, error)
}

// Cache is a read-through definition loader. Redis failures are logged and
// fall back to the backend; they never fail a load on their own.
type Cache struct {
	rdb    redis.UniversalClient
	src    Fetcher
	ttl    time.Duration
	logger *slog.Logger
}

func New(rdb redis.UniversalClient, src Fetcher, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{rdb: rdb, src: src, ttl: ttl, logger: logger}
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func Key(id string) string { return keyPrefix + id }

// LoadGame returns the cached definition or fetches, decodes and caches it.
// Documents that fail to decode are never cached.
func (c *Cache) LoadGame(ctx context.Context, id string) (questlab.Definition, error) {
	raw, err := c.rdb.Get(ctx, Key(id)).Bytes()
	switch {
	case err == nil:
		def, derr := questlab.DecodeDefinition(raw)
		if derr == nil {
			return def, nil
		}
		c.logger.Warn("dropping undecodable cached definition", "game_id", id, "error", derr)
		c.rdb.Del(ctx, Key(id))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("definition cache read failed", "game_id", id, "error", err)
	}

	raw, err = c.src.FetchGame(ctx, id)
	if err != nil {
		return questlab.Definition{}, err
	}
	def, err := questlab.DecodeDefinition(raw)
	if err != nil {
		return questlab.Definition{}, err
	}

	if err := c.rdb.Set(ctx, Key(id), []byte(raw), c.ttl).Err(); err != nil {
		c.logger.Warn("definition cache write failed", "game_id", id, "error", err)
	}
	return def, nil
}

// Invalidate drops a cached definition.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, Key(id)).Err()
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
