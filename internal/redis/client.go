// Package redis holds the short-lived coordination state shared between
// service instances: the scheduler leader lease, scan claims, replan
// sequence tokens and the outbound rate limiter. The task store remains
// the source of truth; losing Redis only weakens duplicate suppression.
package redis

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient creates and returns a new Redis client.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}
