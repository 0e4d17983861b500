package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReferenceGuard implements ports.ReferenceGuard using Redis SET NX. It is
// the fast first layer in front of the ledger's unique reference index.
type ReferenceGuard struct {
	client *goredis.Client
	prefix string
}

// NewReferenceGuard creates a new Redis-backed reference guard.
func NewReferenceGuard(client *goredis.Client) *ReferenceGuard {
	return &ReferenceGuard{
		client: client,
		prefix: "payref:",
	}
}

// CheckAndSet atomically records a gateway reference if unseen.
// Returns true when the reference is new, false on a redelivery.
func (g *ReferenceGuard) CheckAndSet(ctx context.Context, reference string, ttl time.Duration) (bool, error) {
	key := g.prefix + reference
	result, err := g.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists — reference was already processed
			return false, nil
		}
		return false, fmt.Errorf("redis reference check: %w", err)
	}
	return result == "OK", nil
}
