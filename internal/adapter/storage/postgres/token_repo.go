package postgres

import (
	"context"
	"errors"
	"fmt"

	"telegram-wallet-bridge/internal/core/domain"
	"telegram-wallet-bridge/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// TokenRepo implements ports.TokenRepository.
type TokenRepo struct {
	pool Pool
}

// NewTokenRepo creates a new TokenRepo.
func NewTokenRepo(pool Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

const tokenColumns = `id, account_id, account_email, created_at, expires_at, used, used_at,
	redeemed_chat_id, redeemed_username, redeemed_first_name, redeemed_last_name`

// Create inserts a new connection token.
func (r *TokenRepo) Create(ctx context.Context, t *domain.ConnectionToken) error {
	query := `INSERT INTO connection_tokens (id, account_id, account_email, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.AccountID, t.AccountEmail, t.CreatedAt, t.ExpiresAt, t.Used,
	)
	if err != nil {
		return fmt.Errorf("insert connection token: %w", err)
	}
	return nil
}

// GetByID fetches a token by its id (without locking).
func (r *TokenRepo) GetByID(ctx context.Context, id string) (*domain.ConnectionToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM connection_tokens WHERE id = $1`

	t, err := scanToken(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token by id: %w", err)
	}
	return t, nil
}

// GetByIDForUpdate fetches a token by id with pessimistic locking.
// This MUST be called within a transaction.
func (r *TokenRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.ConnectionToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM connection_tokens WHERE id = $1 FOR UPDATE`

	t, err := scanToken(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token for update: %w", err)
	}
	return t, nil
}

// MarkUsed flips the used flag only when it is still false. The WHERE guard
// makes a lost race visible as zero affected rows.
func (r *TokenRepo) MarkUsed(ctx context.Context, tx pgx.Tx, id string, red ports.TokenRedemption) (bool, error) {
	query := `UPDATE connection_tokens
		SET used = TRUE, used_at = $1,
			redeemed_chat_id = $2, redeemed_username = $3,
			redeemed_first_name = $4, redeemed_last_name = $5
		WHERE id = $6 AND used = FALSE`

	tag, err := tx.Exec(ctx, query,
		red.UsedAt, red.ChatID, red.Username, red.FirstName, red.LastName, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanToken(row pgx.Row) (*domain.ConnectionToken, error) {
	t := &domain.ConnectionToken{}
	var (
		chatID, username, firstName, lastName *string
	)
	err := row.Scan(
		&t.ID, &t.AccountID, &t.AccountEmail, &t.CreatedAt, &t.ExpiresAt,
		&t.Used, &t.UsedAt, &chatID, &username, &firstName, &lastName,
	)
	if err != nil {
		return nil, err
	}
	if chatID != nil {
		t.RedeemedChatID = *chatID
	}
	if username != nil {
		t.RedeemedUsername = *username
	}
	if firstName != nil {
		t.RedeemedFirstName = *firstName
	}
	if lastName != nil {
		t.RedeemedLastName = *lastName
	}
	return t, nil
}
