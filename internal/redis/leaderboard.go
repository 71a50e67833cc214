// Package redis keeps the hot leaderboard in a sorted set so rank queries
// never hit the durable store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// leaderboardKey is the sorted set of username -> eco points.
const leaderboardKey = "leaderboard:ecopoints"

// Cache provides Redis-based leaderboard operations
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache creates a new Redis leaderboard cache
func NewCache(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// SetScore sets a user's eco points in the leaderboard
func (c *Cache) SetScore(ctx context.Context, username string, points int) error {
	err := c.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(points),
		Member: username,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting score: %w", err)
	}
	return nil
}

// GetTopN returns the top N users ordered by eco points descending, ties
// broken by username ascending. The sorted set orders equal scores by
// member only lexicographically in one direction, so when the page
// boundary lands inside a group of equal scores the whole group is fetched
// and re-sorted before truncation.
func (c *Cache) GetTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	results, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	if len(results) == int(n) {
		// Pull in every member tied with the boundary score so the
		// deterministic tie-break decides who makes the cut.
		boundary := results[len(results)-1].Score
		tied, err := c.client.ZRangeByScoreWithScores(ctx, leaderboardKey, &redis.ZRangeBy{
			Min: fmt.Sprintf("%f", boundary),
			Max: fmt.Sprintf("%f", boundary),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("getting boundary ties: %w", err)
		}
		seen := make(map[string]bool, len(results))
		for _, z := range results {
			seen[z.Member.(string)] = true
		}
		for _, z := range tied {
			if !seen[z.Member.(string)] {
				results = append(results, z)
			}
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for _, z := range results {
		points := int(z.Score)
		entries = append(entries, domain.LeaderboardEntry{
			Username:  z.Member.(string),
			EcoPoints: points,
			Level:     domain.LevelFor(points),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].EcoPoints != entries[j].EcoPoints {
			return entries[i].EcoPoints > entries[j].EcoPoints
		}
		return entries[i].Username < entries[j].Username
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = int64(i + 1)
	}
	return entries, nil
}

// GetRank returns a user's 1-indexed rank and eco points.
func (c *Cache) GetRank(ctx context.Context, username string) (*domain.LeaderboardEntry, error) {
	pipe := c.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, leaderboardKey, username)
	scoreCmd := pipe.ZScore(ctx, leaderboardKey, username)
	_, err := pipe.Exec(ctx)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting rank result: %w", err)
	}
	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	points := int(score)
	return &domain.LeaderboardEntry{
		Rank:      rank + 1, // Convert 0-indexed to 1-indexed
		Username:  username,
		EcoPoints: points,
		Level:     domain.LevelFor(points),
	}, nil
}

// GetCount returns the total number of users in the leaderboard
func (c *Cache) GetCount(ctx context.Context) (int64, error) {
	count, err := c.client.ZCard(ctx, leaderboardKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// BatchSetScores sets multiple scores using pipelining
func (c *Cache) BatchSetScores(ctx context.Context, scores map[string]int) error {
	if len(scores) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for username, points := range scores {
		pipe.ZAdd(ctx, leaderboardKey, redis.Z{
			Score:  float64(points),
			Member: username,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting scores: %w", err)
	}
	return nil
}

// Reset clears the leaderboard sorted set.
func (c *Cache) Reset(ctx context.Context) error {
	if err := c.client.Del(ctx, leaderboardKey).Err(); err != nil {
		return fmt.Errorf("resetting leaderboard: %w", err)
	}
	return nil
}
