package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
)

func newTracker(t *testing.T) (*metrics.RedisTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return metrics.NewRedisTracker(client, logger.NewNop()), mr
}

func TestRedisTracker_Increment(t *testing.T) {
	tracker, mr := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Increment(ctx, metrics.OutcomePublished, "kjorbo"))
	require.NoError(t, tracker.Increment(ctx, metrics.OutcomePublished, "kjorbo"))
	require.NoError(t, tracker.Increment(ctx, metrics.OutcomeSkipped, "ukjent"))

	got, err := mr.Get("metasys:sync:published:kjorbo")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
	assert.Equal(t, 30*24*time.Hour, mr.TTL("metasys:sync:published:kjorbo"))

	members, err := mr.Members(metrics.KeyRealEstates)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"kjorbo", "ukjent"}, members)
}

func TestRedisTracker_GetStats(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Increment(ctx, metrics.OutcomePublished, "postgirobygget"))
	require.NoError(t, tracker.Increment(ctx, metrics.OutcomePublished, "kjorbo"))
	require.NoError(t, tracker.Increment(ctx, metrics.OutcomeError, "kjorbo"))
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.UpdateLastSync(ctx, at))

	stats, err := tracker.GetStats(ctx)
	require.NoError(t, err)

	require.Len(t, stats.RealEstates, 2)
	assert.Equal(t, "kjorbo", stats.RealEstates[0].Name)
	assert.Equal(t, int64(1), stats.RealEstates[0].Errors)
	assert.Equal(t, int64(0), stats.RealEstates[0].Skipped)
	assert.Equal(t, int64(2), stats.TotalPublished)
	assert.Equal(t, int64(1), stats.TotalErrors)
	assert.True(t, at.Equal(stats.LastSync))
}

func TestRedisTracker_EmptyStats(t *testing.T) {
	tracker, _ := newTracker(t)

	stats, err := tracker.GetStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats.RealEstates)
	assert.True(t, stats.LastSync.IsZero())
}

func TestRedisTracker_Unavailable(t *testing.T) {
	tracker, mr := newTracker(t)
	mr.Close()

	err := tracker.Increment(context.Background(), metrics.OutcomePublished, "kjorbo")
	require.Error(t, err)
}
