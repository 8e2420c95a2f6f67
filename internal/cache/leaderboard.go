package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcadehub/apiserver/config"
	"github.com/arcadehub/apiserver/types"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 30 * time.Second

// LeaderboardCache keeps rendered leaderboard views in Redis with a short
// TTL. The SQL store stays authoritative (the stable tie-break cannot be
// expressed in a sorted set); the cache only bounds read load between
// submissions. All failures degrade to a miss.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewLeaderboardCache connects to Redis and returns the cache.
func NewLeaderboardCache(cfg config.RedisConfig, logger *slog.Logger) (*LeaderboardCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &LeaderboardCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Close closes the Redis connection.
func (c *LeaderboardCache) Close() error {
	return c.client.Close()
}

func (c *LeaderboardCache) key(gameID int) string {
	if gameID == 0 {
		return "leaderboard:global:top"
	}
	return fmt.Sprintf("leaderboard:game:%d:top", gameID)
}

// Get returns the cached view for a game (0 = global), or ok=false.
func (c *LeaderboardCache) Get(ctx context.Context, gameID int) ([]types.LeaderboardEntry, bool) {
	data, err := c.client.Get(ctx, c.key(gameID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("leaderboard cache read failed", "game_id", gameID, "error", err)
		}
		return nil, false
	}

	var entries []types.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("leaderboard cache entry corrupt", "game_id", gameID, "error", err)
		return nil, false
	}
	return entries, true
}

// Set stores the rendered view with the configured TTL.
func (c *LeaderboardCache) Set(ctx context.Context, gameID int, entries []types.LeaderboardEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		c.logger.Warn("leaderboard cache encode failed", "game_id", gameID, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(gameID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("leaderboard cache write failed", "game_id", gameID, "error", err)
	}
}

// Invalidate drops the cached views a submission may have changed: the
// game's own view and the global one.
func (c *LeaderboardCache) Invalidate(ctx context.Context, gameID int) {
	if err := c.client.Del(ctx, c.key(gameID), c.key(0)).Err(); err != nil {
		c.logger.Warn("leaderboard cache invalidate failed", "game_id", gameID, "error", err)
	}
}
