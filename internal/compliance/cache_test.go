package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func sampleAssessment() Assessment {
	return Assessment{
		ClaimID:   7,
		RunID:     uuid.New(),
		RiskScore: 30,
		RiskLevel: RiskMedium,
		Checks: []Check{
			{ID: 1, ClaimID: 7, Type: CheckEntityEligibility, Status: StatusPass, Message: "ok"},
		},
		EvaluatedAt: time.Date(2024, time.December, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := testCache(t)
	ctx := context.Background()
	want := sampleAssessment()

	_, ok := cache.Get(ctx, 7)
	require.False(t, ok)

	cache.Put(ctx, want)
	got, ok := cache.Get(ctx, 7)
	require.True(t, ok)
	require.Equal(t, want.RunID, got.RunID)
	require.Equal(t, want.RiskScore, got.RiskScore)
	require.Equal(t, want.RiskLevel, got.RiskLevel)
	require.Len(t, got.Checks, 1)
}

func TestCacheInvalidate(t *testing.T) {
	cache := testCache(t)
	ctx := context.Background()

	cache.Put(ctx, sampleAssessment())
	cache.Invalidate(ctx, 7)
	_, ok := cache.Get(ctx, 7)
	require.False(t, ok)
}

func TestCacheNilClientDegradesGracefully(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()

	cache.Put(ctx, sampleAssessment())
	_, ok := cache.Get(ctx, 7)
	require.False(t, ok)
	cache.Invalidate(ctx, 7)
}
