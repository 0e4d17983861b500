package domain

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// TokenTTL is the validity window of a connection token.
const TokenTTL = 10 * time.Minute

// ConnectionToken is a single-use, time-bounded credential exchanged for a
// chat-identity binding. Tokens are never deleted; redeemed tokens keep the
// redeemer's chat metadata for audit.
type ConnectionToken struct {
	ID                string     `json:"id"`
	AccountID         string     `json:"account_id"`
	AccountEmail      string     `json:"account_email"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         time.Time  `json:"expires_at"`
	Used              bool       `json:"used"`
	UsedAt            *time.Time `json:"used_at,omitempty"`
	RedeemedChatID    string     `json:"redeemed_chat_id,omitempty"`
	RedeemedUsername  string     `json:"redeemed_username,omitempty"`
	RedeemedFirstName string     `json:"redeemed_first_name,omitempty"`
	RedeemedLastName  string     `json:"redeemed_last_name,omitempty"`
}

// IsExpired reports whether the token's validity window has passed.
func (t *ConnectionToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsRedeemable reports whether the token can still be exchanged for a binding.
func (t *ConnectionToken) IsRedeemable(now time.Time) bool {
	return !t.Used && !t.IsExpired(now)
}

// NewTokenID generates a 128-bit random token identifier. The identifier
// carries no information about the account it was issued for.
func NewTokenID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic("token id entropy unavailable: " + err.Error())
	}
	return "ct_" + hex.EncodeToString(buf)
}
