package postgres

import (
	"context"
	"testing"
	"time"

	"telegram-wallet-bridge/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBinding() *domain.IdentityBinding {
	return &domain.IdentityBinding{
		ChatID:      "12345",
		AccountID:   "acct-1",
		Username:    "ada",
		FirstName:   "Ada",
		ConnectedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func bindingRow(b *domain.IdentityBinding) *pgxmock.Rows {
	cols := []string{"chat_id", "account_id", "username", "first_name", "last_name", "connected_at"}
	return pgxmock.NewRows(cols).AddRow(
		b.ChatID, b.AccountID, nilIfEmpty(b.Username), nilIfEmpty(b.FirstName), nilIfEmpty(b.LastName), b.ConnectedAt,
	)
}

func TestBindingRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBindingRepo(mock)
	b := newTestBinding()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO identity_bindings").
		WithArgs(b.ChatID, b.AccountID, b.Username, b.FirstName, b.LastName, b.ConnectedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Upsert(context.Background(), tx, b)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBindingRepo_DeleteOthersByAccountID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBindingRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM identity_bindings WHERE account_id").
		WithArgs("acct-1", "12345").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.DeleteOthersByAccountID(context.Background(), tx, "acct-1", "12345")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBindingRepo_GetByChatID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBindingRepo(mock)
	b := newTestBinding()

	mock.ExpectQuery("SELECT .+ FROM identity_bindings WHERE chat_id").
		WithArgs(b.ChatID).
		WillReturnRows(bindingRow(b))

	result, err := repo.GetByChatID(context.Background(), b.ChatID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, b.AccountID, result.AccountID)
	assert.Equal(t, "ada", result.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBindingRepo_GetByChatID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBindingRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM identity_bindings WHERE chat_id").
		WithArgs("999").
		WillReturnRows(pgxmock.NewRows([]string{"chat_id"}))

	result, err := repo.GetByChatID(context.Background(), "999")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBindingRepo_GetByAccountID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBindingRepo(mock)
	b := newTestBinding()

	mock.ExpectQuery("SELECT .+ FROM identity_bindings WHERE account_id").
		WithArgs(b.AccountID).
		WillReturnRows(bindingRow(b))

	result, err := repo.GetByAccountID(context.Background(), b.AccountID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, b.ChatID, result.ChatID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBindingRepo_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBindingRepo(mock)

	mock.ExpectExec("DELETE FROM identity_bindings WHERE chat_id").
		WithArgs("12345").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err = repo.Delete(context.Background(), "12345")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
