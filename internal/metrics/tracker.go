package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
)

// SyncTracker records publish outcomes per real estate.
type SyncTracker interface {
	Increment(ctx context.Context, outcome, realEstate string) error
	UpdateLastSync(ctx context.Context, at time.Time) error
	GetStats(ctx context.Context) (*SyncStats, error)
}

// RealEstateStats are the counters of one real estate.
type RealEstateStats struct {
	Name      string `json:"name"`
	Published int64  `json:"published"`
	Skipped   int64  `json:"skipped"`
	Errors    int64  `json:"errors"`
}

// SyncStats aggregates every real estate.
type SyncStats struct {
	RealEstates    []RealEstateStats `json:"real_estates"`
	TotalPublished int64             `json:"total_published"`
	TotalSkipped   int64             `json:"total_skipped"`
	TotalErrors    int64             `json:"total_errors"`
	LastSync       time.Time         `json:"last_sync"`
}

// RedisTracker implements SyncTracker on Redis.
type RedisTracker struct {
	client redis.UniversalClient
	log    logger.Logger
}

// NewRedisTracker creates a tracker.
func NewRedisTracker(client redis.UniversalClient, log logger.Logger) *RedisTracker {
	return &RedisTracker{client: client, log: log}
}

// Increment bumps the outcome counter for realEstate.
func (t *RedisTracker) Increment(ctx context.Context, outcome, realEstate string) error {
	key := counterKey(outcome, realEstate)
	ttl := StatsTTLDays * HoursPerDay * time.Hour

	pipe := t.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	pipe.SAdd(ctx, KeyRealEstates, realEstate)

	if _, err := pipe.Exec(ctx); err != nil {
		t.log.Warn("Failed to increment sync counter",
			logger.String("real_estate", realEstate),
			logger.String("redis_key", key),
			logger.Error(err),
		)
		return fmt.Errorf("increment %s counter: %w", outcome, err)
	}
	return nil
}

// UpdateLastSync stores the time of the last publish run.
func (t *RedisTracker) UpdateLastSync(ctx context.Context, at time.Time) error {
	if err := t.client.Set(ctx, KeyLastSync, at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		t.log.Warn("Failed to update last sync", logger.Error(err))
		return fmt.Errorf("update last sync: %w", err)
	}
	return nil
}

// GetStats reads every counter in one pipeline.
func (t *RedisTracker) GetStats(ctx context.Context) (*SyncStats, error) {
	names, err := t.client.SMembers(ctx, KeyRealEstates).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list real estates: %w", err)
	}
	sort.Strings(names)

	pipe := t.client.Pipeline()
	type cmds struct{ published, skipped, errs *redis.StringCmd }
	perRE := make(map[string]cmds, len(names))
	for _, name := range names {
		perRE[name] = cmds{
			published: pipe.Get(ctx, counterKey(OutcomePublished, name)),
			skipped:   pipe.Get(ctx, counterKey(OutcomeSkipped, name)),
			errs:      pipe.Get(ctx, counterKey(OutcomeError, name)),
		}
	}
	lastSyncCmd := pipe.Get(ctx, KeyLastSync)

	if _, execErr := pipe.Exec(ctx); execErr != nil && !errors.Is(execErr, redis.Nil) {
		return nil, fmt.Errorf("execute pipeline: %w", execErr)
	}

	stats := &SyncStats{RealEstates: make([]RealEstateStats, 0, len(names))}
	for _, name := range names {
		c := perRE[name]
		re := RealEstateStats{Name: name}
		// Missing keys (expired or never set) read as zero.
		re.Published, _ = c.published.Int64()
		re.Skipped, _ = c.skipped.Int64()
		re.Errors, _ = c.errs.Int64()

		stats.TotalPublished += re.Published
		stats.TotalSkipped += re.Skipped
		stats.TotalErrors += re.Errors
		stats.RealEstates = append(stats.RealEstates, re)
	}

	if raw, syncErr := lastSyncCmd.Result(); syncErr == nil && raw != "" {
		if parsed, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			stats.LastSync = parsed
		}
	}

	return stats, nil
}

// NopTracker discards everything. Used when no Redis URL is configured.
type NopTracker struct{}

func (NopTracker) Increment(context.Context, string, string) error { return nil }
func (NopTracker) UpdateLastSync(context.Context, time.Time) error { return nil }
func (NopTracker) GetStats(context.Context) (*SyncStats, error)    { return &SyncStats{}, nil }

var (
	_ SyncTracker = (*RedisTracker)(nil)
	_ SyncTracker = NopTracker{}
)
