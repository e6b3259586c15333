package stats_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorkit/creatorkit/svc/stats"
)

type fakeSource struct {
	collects atomic.Int64
	stats    stats.CreatorStats
}

func (f *fakeSource) CollectCreatorStats(ctx context.Context, creatorID uuid.UUID) (*stats.CreatorStats, error) {
	f.collects.Add(1)
	cs := f.stats
	cs.CreatorID = creatorID
	return &cs, nil
}

func TestServiceRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := &fakeSource{stats: stats.CreatorStats{
		ActiveMembers: 42,
		TotalEarned:   decimal.RequireFromString("12500.50"),
		Currency:      "INR",
		DonationCount: 7,
	}}
	svc := stats.NewService(src, stats.NewMemoryCache())
	creatorID := uuid.New()

	cs, err := svc.Refresh(ctx, creatorID)
	require.NoError(t, err)
	assert.Equal(t, 42, cs.ActiveMembers)
	assert.False(t, cs.RefreshedAt.IsZero())

	// Get serves the cached snapshot without re-collecting.
	got, err := svc.Get(ctx, creatorID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.ActiveMembers)
	assert.True(t, got.TotalEarned.Equal(decimal.RequireFromString("12500.50")))
	assert.EqualValues(t, 1, src.collects.Load())
}

func TestServiceGetRefreshesOnMiss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := &fakeSource{stats: stats.CreatorStats{ActiveMembers: 3, TotalEarned: decimal.Zero}}
	svc := stats.NewService(src, stats.NewMemoryCache())

	got, err := svc.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 3, got.ActiveMembers)
	assert.EqualValues(t, 1, src.collects.Load())
}

func TestMemoryCacheTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cache := stats.NewMemoryCache()
	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Millisecond))

	require.Eventually(t, func() bool {
		_, err := cache.Get(ctx, "k")
		return err == stats.ErrCacheMiss
	}, time.Second, 5*time.Millisecond)
}
