package postgres

import (
	"context"
	"errors"
	"fmt"

	"telegram-wallet-bridge/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// BindingRepo implements ports.BindingRepository.
type BindingRepo struct {
	pool Pool
}

// NewBindingRepo creates a new BindingRepo.
func NewBindingRepo(pool Pool) *BindingRepo {
	return &BindingRepo{pool: pool}
}

const bindingColumns = `chat_id, account_id, username, first_name, last_name, connected_at`

// Upsert writes the binding keyed by chat id inside the redemption
// transaction, replacing any prior binding for that chat.
func (r *BindingRepo) Upsert(ctx context.Context, tx pgx.Tx, b *domain.IdentityBinding) error {
	query := `INSERT INTO identity_bindings (chat_id, account_id, username, first_name, last_name, connected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chat_id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			connected_at = EXCLUDED.connected_at`

	_, err := tx.Exec(ctx, query,
		b.ChatID, b.AccountID, b.Username, b.FirstName, b.LastName, b.ConnectedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert binding: %w", err)
	}
	return nil
}

// DeleteOthersByAccountID removes bindings the account holds under any other
// chat id, keeping one chat per account.
func (r *BindingRepo) DeleteOthersByAccountID(ctx context.Context, tx pgx.Tx, accountID, keepChatID string) error {
	query := `DELETE FROM identity_bindings WHERE account_id = $1 AND chat_id <> $2`

	_, err := tx.Exec(ctx, query, accountID, keepChatID)
	if err != nil {
		return fmt.Errorf("delete prior bindings: %w", err)
	}
	return nil
}

// GetByChatID fetches the binding for a chat id.
func (r *BindingRepo) GetByChatID(ctx context.Context, chatID string) (*domain.IdentityBinding, error) {
	query := `SELECT ` + bindingColumns + ` FROM identity_bindings WHERE chat_id = $1`

	b, err := scanBinding(r.pool.QueryRow(ctx, query, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get binding by chat id: %w", err)
	}
	return b, nil
}

// GetByAccountID fetches the binding an account holds, if any.
func (r *BindingRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.IdentityBinding, error) {
	query := `SELECT ` + bindingColumns + ` FROM identity_bindings WHERE account_id = $1`

	b, err := scanBinding(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get binding by account id: %w", err)
	}
	return b, nil
}

// Delete unbinds a chat id. Deleting an absent binding is a no-op success.
func (r *BindingRepo) Delete(ctx context.Context, chatID string) error {
	query := `DELETE FROM identity_bindings WHERE chat_id = $1`

	_, err := r.pool.Exec(ctx, query, chatID)
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	return nil
}

func scanBinding(row pgx.Row) (*domain.IdentityBinding, error) {
	b := &domain.IdentityBinding{}
	var username, firstName, lastName *string
	err := row.Scan(&b.ChatID, &b.AccountID, &username, &firstName, &lastName, &b.ConnectedAt)
	if err != nil {
		return nil, err
	}
	if username != nil {
		b.Username = *username
	}
	if firstName != nil {
		b.FirstName = *firstName
	}
	if lastName != nil {
		b.LastName = *lastName
	}
	return b, nil
}
