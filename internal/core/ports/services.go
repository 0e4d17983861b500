package ports

import (
	"context"
	"time"

	"telegram-wallet-bridge/internal/core/domain"
)

// --- Infrastructure ports ---

// ConversationStore tracks the single expected-next-input slot per chat.
// Setting a new expectation overwrites any previous one.
type ConversationStore interface {
	SetExpectation(ctx context.Context, chatID string, kind domain.ExpectationKind) error
	// GetExpectation returns the current expectation, or ok=false when the
	// chat has none. A store error is never reported as "none".
	GetExpectation(ctx context.Context, chatID string) (kind domain.ExpectationKind, ok bool, err error)
	ClearExpectation(ctx context.Context, chatID string) error
}

// ReferenceGuard is the first-layer duplicate suppression for gateway
// references. It is advisory: a hit must be confirmed against the ledger
// before a delivery is treated as a duplicate, since a guard entry can
// outlive a reconciliation attempt that failed before commit.
type ReferenceGuard interface {
	// CheckAndSet atomically records the reference if unseen. Returns true
	// when the reference is new.
	CheckAndSet(ctx context.Context, reference string, ttl time.Duration) (bool, error)
}

// InlineButton is one button of an inline keyboard row. Exactly one of URL
// or CallbackData is set.
type InlineButton struct {
	Text         string
	URL          string
	CallbackData string
}

// ChatNotifier delivers outbound messages to the chat platform. Delivery is
// best-effort; callers treat failures as log-only.
type ChatNotifier interface {
	SendMessage(ctx context.Context, chatID string, text string, keyboard [][]InlineButton) error
	SendPhoto(ctx context.Context, chatID string, photoURL string) error
}

// PaymentGateway is the HTTP payment API consumed as a black box.
type PaymentGateway interface {
	// InitializeTransaction requests a hosted payment page. The returned
	// URL is empty only alongside a non-nil error.
	InitializeTransaction(ctx context.Context, req InitTransactionRequest) (string, error)
	// VerifyTransaction fetches the gateway's view of a charge by reference.
	VerifyTransaction(ctx context.Context, reference string) (*GatewayCharge, error)
}

// InitTransactionRequest carries the payment-page parameters, including the
// correlation metadata resolved back during reconciliation.
type InitTransactionRequest struct {
	Email       string
	AmountMinor int64
	ChatID      string
	AccountID   string
	Purpose     string
	CallbackURL string
}

// GatewayCharge is the verified state of a gateway charge.
type GatewayCharge struct {
	Status      string
	AmountMinor int64
	Reference   string
	PaidAt      time.Time
}

// Mailer sends transactional email. Best-effort; never blocks the caller's
// result.
type Mailer interface {
	SendTransactionEmail(ctx context.Context, m TransactionEmail) error
}

// TransactionEmail is the template payload for a wallet transaction notice.
type TransactionEmail struct {
	To            string
	Name          string
	Status        string
	Tag           string
	TxName        string
	Amount        int64
	TransactionID string
	Date          string
}

// APITokenService signs and validates the bearer tokens used by the profile
// web service on the internal API.
type APITokenService interface {
	Generate(subject string) (string, time.Time, error)
	// Validate returns the token subject.
	Validate(token string) (string, error)
}

// --- Business ports ---

// TokenService issues and redeems connection tokens.
type TokenService interface {
	// Issue creates a single-use token valid for the fixed window and
	// returns its id.
	Issue(ctx context.Context, accountID, accountEmail string) (string, error)
	// Redeem consumes a token, binds the chat identity and returns the
	// account snapshot for display.
	Redeem(ctx context.Context, req RedeemRequest) (*domain.Account, error)
	// ConnectionStatus reports the current binding snapshot for an account.
	ConnectionStatus(ctx context.Context, accountID string) (*ConnectionStatus, error)
}

// RedeemRequest carries the pasted token and the redeemer's chat identity.
type RedeemRequest struct {
	TokenID   string
	ChatID    string
	Username  string
	FirstName string
	LastName  string
}

// ConnectionStatus is the binding snapshot returned to the profile web page.
type ConnectionStatus struct {
	Connected bool
	Binding   *domain.IdentityBinding
}

// FundingOutcome classifies a reconciliation result.
type FundingOutcome string

const (
	FundingCredited   FundingOutcome = "credited"
	FundingDuplicate  FundingOutcome = "duplicate"
	FundingUnresolved FundingOutcome = "unresolved"
	FundingIgnored    FundingOutcome = "ignored"
)

// FundingResult reports what a reconciliation did.
type FundingResult struct {
	Outcome       FundingOutcome
	TransactionID string
	Amount        int64 // major units
	NewBalance    int64
	Account       *domain.Account
}

// GatewayEvent is the decoded asynchronous gateway notification.
type GatewayEvent struct {
	Event       string
	AmountMinor int64
	Reference   string
	PaidAt      time.Time
	ChatID      string
	AccountID   string
	Purpose     string
}

// FundingService generates payment links and reconciles gateway callbacks.
type FundingService interface {
	// CreatePaymentLink returns the hosted payment page URL, or "" when the
	// gateway declined or was unreachable. It never mutates state and never
	// returns an error past this boundary.
	CreatePaymentLink(ctx context.Context, email string, amountMajor int64, chatID, accountID string) string
	Reconcile(ctx context.Context, event GatewayEvent) (*FundingResult, error)
	// ConfirmByReference verifies a charge against the gateway and routes a
	// successful one through Reconcile. It backs the browser return leg of
	// the payment page, which carries only the reference, so crediting does
	// not wait on the asynchronous webhook.
	ConfirmByReference(ctx context.Context, chatID, reference string) (*FundingResult, error)
	// LogCancellation appends a zero-amount cancelled ledger entry. It
	// never touches the balance.
	LogCancellation(ctx context.Context, chatID, reference string) error
}

// InboundMessage is a text message received on the chat webhook.
type InboundMessage struct {
	ChatID    string
	Text      string
	Username  string
	FirstName string
	LastName  string
}

// InboundCallback is a button press received on the chat webhook.
type InboundCallback struct {
	ChatID    string
	Data      string
	Username  string
	FirstName string
	LastName  string
}

// BotService routes inbound chat traffic. Errors are internal: handlers log
// them and still acknowledge the platform.
type BotService interface {
	HandleMessage(ctx context.Context, msg InboundMessage) error
	HandleCallback(ctx context.Context, cb InboundCallback) error
}
