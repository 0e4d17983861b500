package postgres

import (
	"context"
	"errors"
	"fmt"

	"telegram-wallet-bridge/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. The wallet_ledger table
// carries a partial unique index on (reference) WHERE tag = 'credit', which
// is what makes CreateCredit the exactly-once decision point.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const ledgerColumns = `id, transaction_id, account_id, amount, previous_balance, new_balance,
	tag, status, reference, chat_id, created_at`

// CreateCredit appends a credit entry within a transaction. A duplicate
// gateway reference hits the unique index and reports inserted=false
// without error.
func (r *LedgerRepo) CreateCredit(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) (bool, error) {
	query := `INSERT INTO wallet_ledger
		(id, transaction_id, account_id, amount, previous_balance, new_balance, tag, status, reference, chat_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (reference) WHERE tag = 'credit' DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		e.ID, e.TransactionID, e.AccountID, e.Amount, e.PreviousBalance, e.NewBalance,
		e.Tag, e.Status, e.Reference, e.ChatID, e.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert credit entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CreateCancellation appends a cancelled-payment audit entry. Cancellations
// do not participate in reference uniqueness.
func (r *LedgerRepo) CreateCancellation(ctx context.Context, e *domain.LedgerEntry) error {
	query := `INSERT INTO wallet_ledger
		(id, transaction_id, account_id, amount, previous_balance, new_balance, tag, status, reference, chat_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.TransactionID, e.AccountID, e.Amount, e.PreviousBalance, e.NewBalance,
		e.Tag, e.Status, e.Reference, e.ChatID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cancellation entry: %w", err)
	}
	return nil
}

// GetCreditByReference fetches the credit entry recorded for a gateway
// reference, or nil when none exists.
func (r *LedgerRepo) GetCreditByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM wallet_ledger WHERE reference = $1 AND tag = 'credit'`

	e := &domain.LedgerEntry{}
	err := r.pool.QueryRow(ctx, query, reference).Scan(
		&e.ID, &e.TransactionID, &e.AccountID, &e.Amount, &e.PreviousBalance, &e.NewBalance,
		&e.Tag, &e.Status, &e.Reference, &e.ChatID, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credit by reference: %w", err)
	}
	return e, nil
}
