package memory

import (
	"context"
	"sync"
	"time"

	"telegram-wallet-bridge/internal/core/domain"
)

type slot struct {
	kind      domain.ExpectationKind
	expiresAt time.Time
}

// ConversationStore implements ports.ConversationStore in process memory.
// It serves single-instance deployments and tests; multi-instance setups
// use the Redis store so every replica sees the same slot.
type ConversationStore struct {
	mu    sync.Mutex
	slots map[string]slot
	ttl   time.Duration
	now   func() time.Time
}

// NewConversationStore creates an in-memory conversation store.
func NewConversationStore(ttl time.Duration) *ConversationStore {
	return &ConversationStore{
		slots: make(map[string]slot),
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetExpectation records the chat's expected next input, overwriting any
// previous expectation.
func (s *ConversationStore) SetExpectation(_ context.Context, chatID string, kind domain.ExpectationKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[chatID] = slot{kind: kind, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// GetExpectation returns the chat's current expectation. Expired slots read
// as absent and are dropped lazily.
func (s *ConversationStore) GetExpectation(_ context.Context, chatID string) (domain.ExpectationKind, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[chatID]
	if !ok {
		return "", false, nil
	}
	if s.now().After(sl.expiresAt) {
		delete(s.slots, chatID)
		return "", false, nil
	}
	return sl.kind, true, nil
}

// ClearExpectation removes the chat's slot. Clearing an empty slot is a
// no-op success.
func (s *ConversationStore) ClearExpectation(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, chatID)
	return nil
}
