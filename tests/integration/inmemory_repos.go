package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"telegram-wallet-bridge/internal/core/domain"
	"telegram-wallet-bridge/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Token Repo ---

type inMemoryTokenRepo struct {
	mu     sync.RWMutex
	tokens map[string]*domain.ConnectionToken
}

func newInMemoryTokenRepo() *inMemoryTokenRepo {
	return &inMemoryTokenRepo{tokens: make(map[string]*domain.ConnectionToken)}
}

func (r *inMemoryTokenRepo) Create(ctx context.Context, token *domain.ConnectionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r *inMemoryTokenRepo) GetByID(ctx context.Context, id string) (*domain.ConnectionToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTokenRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.ConnectionToken, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTokenRepo) MarkUsed(ctx context.Context, tx pgx.Tx, id string, red ports.TokenRedemption) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.Used {
		return false, nil
	}
	t.Used = true
	usedAt := red.UsedAt
	t.UsedAt = &usedAt
	t.RedeemedChatID = red.ChatID
	t.RedeemedUsername = red.Username
	t.RedeemedFirstName = red.FirstName
	t.RedeemedLastName = red.LastName
	return true, nil
}

// --- In-Memory Binding Repo ---

type inMemoryBindingRepo struct {
	mu     sync.RWMutex
	byChat map[string]*domain.IdentityBinding
}

func newInMemoryBindingRepo() *inMemoryBindingRepo {
	return &inMemoryBindingRepo{byChat: make(map[string]*domain.IdentityBinding)}
}

func (r *inMemoryBindingRepo) Upsert(ctx context.Context, tx pgx.Tx, b *domain.IdentityBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.byChat[b.ChatID] = &cp
	return nil
}

func (r *inMemoryBindingRepo) DeleteOthersByAccountID(ctx context.Context, tx pgx.Tx, accountID, keepChatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for chatID, b := range r.byChat {
		if b.AccountID == accountID && chatID != keepChatID {
			delete(r.byChat, chatID)
		}
	}
	return nil
}

func (r *inMemoryBindingRepo) GetByChatID(ctx context.Context, chatID string) (*domain.IdentityBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byChat[chatID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *inMemoryBindingRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.IdentityBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.byChat {
		if b.AccountID == accountID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryBindingRepo) Delete(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byChat, chatID)
	return nil
}

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[string]*domain.Account)}
}

func (r *inMemoryAccountRepo) put(a *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.accounts[a.ID] = &cp
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryAccountRepo) UpdateWalletBalance(ctx context.Context, tx pgx.Tx, id string, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account not found")
	}
	a.WalletBalance = balance
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.Mutex
	entries []*domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) CreateCredit(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Tag == domain.LedgerTagCredit && e.Reference == entry.Reference {
			return false, nil
		}
	}
	cp := *entry
	r.entries = append(r.entries, &cp)
	return true, nil
}

func (r *inMemoryLedgerRepo) CreateCancellation(ctx context.Context, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *inMemoryLedgerRepo) GetCreditByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Tag == domain.LedgerTagCredit && e.Reference == reference {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryLedgerRepo) all() []domain.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LedgerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// --- In-Memory Ticket Repo ---

type inMemoryTicketRepo struct {
	mu      sync.RWMutex
	tickets []domain.Ticket
}

func newInMemoryTicketRepo() *inMemoryTicketRepo {
	return &inMemoryTicketRepo{}
}

func (r *inMemoryTicketRepo) ListByAccountID(ctx context.Context, accountID string) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
