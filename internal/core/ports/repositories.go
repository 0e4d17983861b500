package ports

import (
	"context"
	"time"

	"telegram-wallet-bridge/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// TokenRepository defines persistence for connection tokens. Tokens are
// write-once plus a single conditional used-flag flip; they are never
// deleted.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.ConnectionToken) error
	GetByID(ctx context.Context, id string) (*domain.ConnectionToken, error)
	// GetByIDForUpdate locks the token row for the duration of the
	// transaction. MUST be called within a transaction block.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.ConnectionToken, error)
	// MarkUsed flips used to true only if it is currently false, stamping
	// the redeemer's chat metadata. Returns false when the token was
	// already consumed by a concurrent redemption.
	MarkUsed(ctx context.Context, tx pgx.Tx, id string, r TokenRedemption) (bool, error)
}

// TokenRedemption carries the audit metadata stamped on a consumed token.
type TokenRedemption struct {
	ChatID    string
	Username  string
	FirstName string
	LastName  string
	UsedAt    time.Time
}

// BindingRepository defines persistence for chat-to-account bindings.
type BindingRepository interface {
	// Upsert writes the binding keyed by chat id, overwriting any prior
	// binding for that chat. Used inside the redemption transaction.
	Upsert(ctx context.Context, tx pgx.Tx, b *domain.IdentityBinding) error
	// DeleteOthersByAccountID removes any binding the account holds under
	// a different chat id, enforcing one chat per account.
	DeleteOthersByAccountID(ctx context.Context, tx pgx.Tx, accountID, keepChatID string) error
	GetByChatID(ctx context.Context, chatID string) (*domain.IdentityBinding, error)
	GetByAccountID(ctx context.Context, accountID string) (*domain.IdentityBinding, error)
	// Delete unbinds a chat id. Deleting a never-bound chat id is a no-op
	// success.
	Delete(ctx context.Context, chatID string) error
}

// AccountRepository reads upstream accounts and owns the single wallet
// balance write performed by the reconciler.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIDForUpdate locks the account row. MUST be called within a
	// transaction block.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error)
	UpdateWalletBalance(ctx context.Context, tx pgx.Tx, id string, balance int64) error
}

// LedgerRepository defines persistence for the append-only wallet ledger.
type LedgerRepository interface {
	// CreateCredit appends a credit entry. Returns false without error when
	// an entry with the same gateway reference already exists.
	CreateCredit(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) (bool, error)
	CreateCancellation(ctx context.Context, entry *domain.LedgerEntry) error
	GetCreditByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error)
}

// TicketRepository reads purchased tickets for display.
type TicketRepository interface {
	ListByAccountID(ctx context.Context, accountID string) ([]domain.Ticket, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
