package redis

import (
	"context"
	"fmt"
	"time"

	"telegram-wallet-bridge/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// ConversationStore implements ports.ConversationStore on Redis, so the
// expectation slot survives process restarts and abandoned slots expire on
// their own.
type ConversationStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewConversationStore creates a new Redis-backed conversation store.
func NewConversationStore(client *goredis.Client, ttl time.Duration) *ConversationStore {
	return &ConversationStore{
		client: client,
		prefix: "conv:",
		ttl:    ttl,
	}
}

// SetExpectation records what the chat's next message should be interpreted
// as, overwriting any previous expectation.
func (s *ConversationStore) SetExpectation(ctx context.Context, chatID string, kind domain.ExpectationKind) error {
	if err := s.client.Set(ctx, s.prefix+chatID, string(kind), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set expectation: %w", err)
	}
	return nil
}

// GetExpectation returns the chat's current expectation, or ok=false when
// there is none.
func (s *ConversationStore) GetExpectation(ctx context.Context, chatID string) (domain.ExpectationKind, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+chatID).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get expectation: %w", err)
	}
	return domain.ExpectationKind(val), true, nil
}

// ClearExpectation removes the chat's expectation slot. Clearing an empty
// slot is a no-op success.
func (s *ConversationStore) ClearExpectation(ctx context.Context, chatID string) error {
	if err := s.client.Del(ctx, s.prefix+chatID).Err(); err != nil {
		return fmt.Errorf("redis clear expectation: %w", err)
	}
	return nil
}
