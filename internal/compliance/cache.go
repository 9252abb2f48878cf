package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps the latest assessment per claim in Redis so the presentation
// layer can poll without hitting the database. Cache misses or Redis errors
// are never fatal; the repository remains authoritative.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the assessment cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func assessmentKey(claimID int64) string {
	return fmt.Sprintf("compliance:assessment:%d", claimID)
}

// Get returns the cached assessment for the claim, if present.
func (c *Cache) Get(ctx context.Context, claimID int64) (Assessment, bool) {
	if c == nil || c.client == nil {
		return Assessment{}, false
	}
	raw, err := c.client.Get(ctx, assessmentKey(claimID)).Bytes()
	if err != nil {
		return Assessment{}, false
	}
	var assessment Assessment
	if err := json.Unmarshal(raw, &assessment); err != nil {
		return Assessment{}, false
	}
	return assessment, true
}

// Put stores the assessment, superseding any cached prior run.
func (c *Cache) Put(ctx context.Context, assessment Assessment) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(assessment)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, assessmentKey(assessment.ClaimID), raw, c.ttl).Err()
}

// Invalidate drops the cached assessment for a claim.
func (c *Cache) Invalidate(ctx context.Context, claimID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, assessmentKey(claimID)).Err()
}
