package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScanClaims suppresses re-enqueueing a dispatch whose job is still in
// flight. A claim expires after ttl so a lost job is picked up again by a
// later scan.
type ScanClaims struct {
	client *redis.Client
	ttl    time.Duration
}

// NewScanClaims returns claims that live for ttl, which should cover the
// job's hard execution limit.
func NewScanClaims(client *redis.Client, ttl time.Duration) *ScanClaims {
	return &ScanClaims{client: client, ttl: ttl}
}

// Claim returns true if no other scan holds key.
func (c *ScanClaims) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, "scan:claim:"+key, time.Now().UTC().Format(time.RFC3339), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops a claim, used when the enqueue that followed it failed.
func (c *ScanClaims) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, "scan:claim:"+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

const replanSeqTTL = 24 * time.Hour

func replanKey(taskID int64) string { return "replan:seq:" + strconv.FormatInt(taskID, 10) }

// ReplanSequencer hands out increasing tokens per task so that a replan
// finishing after a newer one started can detect it is stale.
type ReplanSequencer struct {
	client *redis.Client
}

// NewReplanSequencer creates a Redis-backed ReplanSequencer.
func NewReplanSequencer(client *redis.Client) *ReplanSequencer {
	return &ReplanSequencer{client: client}
}

// Begin takes the next token for taskID.
func (s *ReplanSequencer) Begin(ctx context.Context, taskID int64) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, replanKey(taskID))
	pipe.Expire(ctx, replanKey(taskID), replanSeqTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("replan sequence for task %d: %w", taskID, err)
	}
	return incr.Val(), nil
}

// IsLatest reports whether seq is still the newest token for taskID.
// A missing key (expired) counts as latest.
func (s *ReplanSequencer) IsLatest(ctx context.Context, taskID, seq int64) (bool, error) {
	cur, err := s.client.Get(ctx, replanKey(taskID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("read replan sequence for task %d: %w", taskID, err)
	}
	return cur == seq, nil
}
