package domain

import "time"

// IdentityBinding is the durable link between a chat identity and an account.
// At most one binding exists per chat id, and at most one chat id is bound
// per account; redemption replaces any previous binding on either side.
type IdentityBinding struct {
	ChatID      string    `json:"chat_id"` // string form of the platform-native numeric id
	AccountID   string    `json:"account_id"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Account is the upstream account snapshot this service reads. WalletBalance
// is in major currency units and is written only by the funding reconciler.
type Account struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	IsBooker      bool   `json:"is_booker"`
	WalletBalance int64  `json:"wallet_balance"`
}
