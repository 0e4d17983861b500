package service

import (
	"context"
	"sync"
	"time"

	"telegram-wallet-bridge/internal/core/domain"
	"telegram-wallet-bridge/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

type fakeTransactor struct{}

func (fakeTransactor) Begin(_ context.Context) (pgx.Tx, error) { return &mockTx{}, nil }

// fakeTokenRepo holds tokens in a map with the conditional used flip done
// under a mutex, mirroring the row-level guarantee of the real store.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.ConnectionToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*domain.ConnectionToken)}
}

func (r *fakeTokenRepo) Create(_ context.Context, token *domain.ConnectionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r *fakeTokenRepo) GetByID(_ context.Context, id string) (*domain.ConnectionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTokenRepo) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id string) (*domain.ConnectionToken, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTokenRepo) MarkUsed(_ context.Context, _ pgx.Tx, id string, red ports.TokenRedemption) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.Used {
		return false, nil
	}
	t.Used = true
	t.UsedAt = &red.UsedAt
	t.RedeemedChatID = red.ChatID
	t.RedeemedUsername = red.Username
	t.RedeemedFirstName = red.FirstName
	t.RedeemedLastName = red.LastName
	return true, nil
}

type fakeBindingRepo struct {
	mu        sync.Mutex
	byChat    map[string]*domain.IdentityBinding
	deleteErr error
}

func newFakeBindingRepo() *fakeBindingRepo {
	return &fakeBindingRepo{byChat: make(map[string]*domain.IdentityBinding)}
}

func (r *fakeBindingRepo) Upsert(_ context.Context, _ pgx.Tx, b *domain.IdentityBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.byChat[b.ChatID] = &cp
	return nil
}

func (r *fakeBindingRepo) DeleteOthersByAccountID(_ context.Context, _ pgx.Tx, accountID, keepChatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for chatID, b := range r.byChat {
		if b.AccountID == accountID && chatID != keepChatID {
			delete(r.byChat, chatID)
		}
	}
	return nil
}

func (r *fakeBindingRepo) GetByChatID(_ context.Context, chatID string) (*domain.IdentityBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byChat[chatID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBindingRepo) GetByAccountID(_ context.Context, accountID string) (*domain.IdentityBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.byChat {
		if b.AccountID == accountID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeBindingRepo) Delete(_ context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.byChat, chatID)
	return nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newFakeAccountRepo(accounts ...*domain.Account) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: make(map[string]*domain.Account)}
	for _, a := range accounts {
		cp := *a
		r.accounts[a.ID] = &cp
	}
	return r
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAccountRepo) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id string) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeAccountRepo) UpdateWalletBalance(_ context.Context, _ pgx.Tx, id string, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.WalletBalance = balance
	}
	return nil
}

type fakeLedgerRepo struct {
	mu        sync.Mutex
	entries   []domain.LedgerEntry
	byRef     map[string]bool
	createErr error // consumed by the next CreateCredit call
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{byRef: make(map[string]bool)}
}

func (r *fakeLedgerRepo) CreateCredit(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return false, err
	}
	if r.byRef[entry.Reference] {
		return false, nil
	}
	r.byRef[entry.Reference] = true
	r.entries = append(r.entries, *entry)
	return true, nil
}

func (r *fakeLedgerRepo) CreateCancellation(_ context.Context, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLedgerRepo) GetCreditByReference(_ context.Context, reference string) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].Reference == reference && r.entries[i].Tag == domain.LedgerTagCredit {
			cp := r.entries[i]
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeTicketRepo struct {
	tickets map[string][]domain.Ticket
}

func (r *fakeTicketRepo) ListByAccountID(_ context.Context, accountID string) ([]domain.Ticket, error) {
	if r.tickets == nil {
		return nil, nil
	}
	return r.tickets[accountID], nil
}

type fakeConvStore struct {
	mu    sync.Mutex
	slots map[string]domain.ExpectationKind
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{slots: make(map[string]domain.ExpectationKind)}
}

func (s *fakeConvStore) SetExpectation(_ context.Context, chatID string, kind domain.ExpectationKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[chatID] = kind
	return nil
}

func (s *fakeConvStore) GetExpectation(_ context.Context, chatID string) (domain.ExpectationKind, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.slots[chatID]
	return kind, ok, nil
}

func (s *fakeConvStore) ClearExpectation(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, chatID)
	return nil
}

type fakeRefGuard struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeRefGuard() *fakeRefGuard { return &fakeRefGuard{seen: make(map[string]bool)} }

func (g *fakeRefGuard) CheckAndSet(_ context.Context, reference string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.seen[reference] {
		return false, nil
	}
	g.seen[reference] = true
	return true, nil
}

// sentMessage records one outbound notifier call.
type sentMessage struct {
	ChatID   string
	Text     string
	Keyboard [][]ports.InlineButton
	PhotoURL string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *fakeNotifier) SendMessage(_ context.Context, chatID, text string, keyboard [][]ports.InlineButton) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text, Keyboard: keyboard})
	return nil
}

func (n *fakeNotifier) SendPhoto(_ context.Context, chatID, photoURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{ChatID: chatID, PhotoURL: photoURL})
	return nil
}

func (n *fakeNotifier) last() sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMessage{}
	}
	return n.sent[len(n.sent)-1]
}

type fakeGateway struct {
	link      string
	initErr   error
	last      ports.InitTransactionRequest
	charge    *ports.GatewayCharge
	verifyErr error
}

func (g *fakeGateway) InitializeTransaction(_ context.Context, req ports.InitTransactionRequest) (string, error) {
	g.last = req
	if g.initErr != nil {
		return "", g.initErr
	}
	return g.link, nil
}

func (g *fakeGateway) VerifyTransaction(_ context.Context, _ string) (*ports.GatewayCharge, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.charge, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []ports.TransactionEmail
	err  error
}

func (m *fakeMailer) SendTransactionEmail(_ context.Context, email ports.TransactionEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}
