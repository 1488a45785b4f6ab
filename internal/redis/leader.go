package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// renewScript extends the lease only if this instance still owns it.
var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return 0
`)

// LeaderLease elects a single active instance among several replicas.
type LeaderLease struct {
	client     *redis.Client
	key        string
	instanceID string
	ttl        time.Duration
}

// NewLeaderLease returns a lease stored under key, held for ttl per renewal.
func NewLeaderLease(client *redis.Client, key, instanceID string, ttl time.Duration) *LeaderLease {
	return &LeaderLease{client: client, key: key, instanceID: instanceID, ttl: ttl}
}

// Acquire tries to take the lease, or renews it if this instance already
// holds it. acquired is true only when the lease was newly taken.
func (l *LeaderLease) Acquire(ctx context.Context) (leader, acquired bool, err error) {
	ok, err := l.client.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, false, fmt.Errorf("leader SetNX: %w", err)
	}
	if ok {
		return true, true, nil
	}

	result, err := renewScript.Run(ctx, l.client, []string{l.key}, l.instanceID, l.ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, false, fmt.Errorf("leader renewal: %w", err)
	}
	return result == 1, false, nil
}
