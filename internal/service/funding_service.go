package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"telegram-wallet-bridge/internal/core/domain"
	"telegram-wallet-bridge/internal/core/ports"
	"telegram-wallet-bridge/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// referenceGuardTTL bounds the Redis first-layer duplicate window. The
// ledger's unique reference index remains the durable guard.
const referenceGuardTTL = 48 * time.Hour

const fundingTxName = "Wallet Funding"

// FundingServiceImpl implements ports.FundingService.
type FundingServiceImpl struct {
	accountRepo ports.AccountRepository
	bindingRepo ports.BindingRepository
	ledgerRepo  ports.LedgerRepository
	transactor  ports.DBTransactor
	gateway     ports.PaymentGateway
	refGuard    ports.ReferenceGuard
	mailer      ports.Mailer // nil = transactional email disabled
	callbackURL string
	now         func() time.Time
	log         zerolog.Logger
}

// NewFundingService creates a new FundingServiceImpl.
func NewFundingService(
	accountRepo ports.AccountRepository,
	bindingRepo ports.BindingRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	gateway ports.PaymentGateway,
	refGuard ports.ReferenceGuard,
	mailer ports.Mailer,
	callbackURL string,
	log zerolog.Logger,
) *FundingServiceImpl {
	return &FundingServiceImpl{
		accountRepo: accountRepo,
		bindingRepo: bindingRepo,
		ledgerRepo:  ledgerRepo,
		transactor:  transactor,
		gateway:     gateway,
		refGuard:    refGuard,
		mailer:      mailer,
		callbackURL: callbackURL,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// CreatePaymentLink requests a hosted payment page from the gateway. It
// returns "" on any failure; no state has been mutated at this point, so the
// caller treats absence as "try again later".
func (s *FundingServiceImpl) CreatePaymentLink(ctx context.Context, email string, amountMajor int64, chatID, accountID string) string {
	if email == "" || amountMajor <= 0 {
		s.log.Warn().Str("chat_id", chatID).Int64("amount", amountMajor).Msg("payment link request rejected")
		return ""
	}

	link, err := s.gateway.InitializeTransaction(ctx, ports.InitTransactionRequest{
		Email:       email,
		AmountMinor: domain.MajorToMinor(amountMajor),
		ChatID:      chatID,
		AccountID:   accountID,
		Purpose:     "wallet-funding",
		CallbackURL: s.redirectURL(chatID),
	})
	if err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Msg("payment link creation failed")
		return ""
	}

	s.log.Info().
		Str("chat_id", chatID).
		Str("account_id", accountID).
		Int64("amount", amountMajor).
		Msg("payment link created")

	return link
}

// redirectURL embeds the chat identity in the post-payment redirect so the
// confirmation can be routed back into the chat without re-asking the user.
func (s *FundingServiceImpl) redirectURL(chatID string) string {
	if s.callbackURL == "" {
		return ""
	}
	return s.callbackURL + "?chat_id=" + url.QueryEscape(chatID)
}

// Reconcile matches a gateway charge.success notification to the chat
// identity recorded at link creation and applies the balance increment
// exactly once per reference.
func (s *FundingServiceImpl) Reconcile(ctx context.Context, event ports.GatewayEvent) (*ports.FundingResult, error) {
	if event.Event != "charge.success" {
		return &ports.FundingResult{Outcome: ports.FundingIgnored}, nil
	}

	// An unresolvable chat identity is acknowledged, not errored: the
	// gateway will not usefully retry on a failure status.
	binding, err := s.bindingRepo.GetByChatID(ctx, event.ChatID)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("resolve binding: %w", err))
	}
	if binding == nil {
		s.log.Warn().Str("chat_id", event.ChatID).Str("reference", event.Reference).Msg("charge for unbound chat, ignoring")
		return &ports.FundingResult{Outcome: ports.FundingUnresolved}, nil
	}

	account, err := s.accountRepo.GetByID(ctx, binding.AccountID)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		s.log.Warn().Str("account_id", binding.AccountID).Str("reference", event.Reference).Msg("charge for missing account, ignoring")
		return &ports.FundingResult{Outcome: ports.FundingUnresolved}, nil
	}

	// Layer 1: Redis reference guard. The guard is advisory: a hit is
	// trusted only when the ledger holds a committed credit for the
	// reference. A hit without a committed entry means an earlier attempt
	// failed mid-transaction, so the delivery falls through to the
	// database's unique index. Degraded Redis falls through the same way.
	if s.refGuard != nil {
		fresh, err := s.refGuard.CheckAndSet(ctx, event.Reference, referenceGuardTTL)
		if err != nil {
			s.log.Warn().Err(err).Str("reference", event.Reference).Msg("reference guard unavailable, falling through to ledger index")
		} else if !fresh {
			prior, err := s.ledgerRepo.GetCreditByReference(ctx, event.Reference)
			if err != nil {
				return nil, apperror.ErrStorageUnavailable(fmt.Errorf("look up credit by reference: %w", err))
			}
			if prior != nil {
				s.log.Info().Str("reference", event.Reference).Str("tx_id", prior.TransactionID).Msg("duplicate gateway delivery suppressed by reference guard")
				return &ports.FundingResult{Outcome: ports.FundingDuplicate, TransactionID: prior.TransactionID, Account: account}, nil
			}
			s.log.Warn().Str("reference", event.Reference).Msg("reference guard hit without a committed credit, retrying reconciliation")
		}
	}

	amount, remainder := domain.MinorToMajor(event.AmountMinor)
	if remainder != 0 {
		s.log.Warn().
			Int64("amount_minor", event.AmountMinor).
			Str("reference", event.Reference).
			Msg("gateway amount not a whole major unit, remainder dropped")
	}
	if amount <= 0 {
		s.log.Error().Int64("amount_minor", event.AmountMinor).Str("reference", event.Reference).Msg("non-positive charge amount, ignoring")
		return &ports.FundingResult{Outcome: ports.FundingIgnored, Account: account}, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock the account row; the balance is read and written under the lock.
	locked, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, account.ID)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("lock account: %w", err))
	}
	if locked == nil {
		return &ports.FundingResult{Outcome: ports.FundingUnresolved}, nil
	}

	now := s.now()
	entry := &domain.LedgerEntry{
		ID:              uuid.New(),
		TransactionID:   domain.NewFundingTransactionID(now),
		AccountID:       locked.ID,
		Amount:          amount,
		PreviousBalance: locked.WalletBalance,
		NewBalance:      locked.WalletBalance + amount,
		Tag:             domain.LedgerTagCredit,
		Status:          domain.LedgerStatusSuccessful,
		Reference:       event.Reference,
		ChatID:          event.ChatID,
		CreatedAt:       now,
	}

	// Layer 2: the unique index on credit references makes this insert the
	// point of exactly-once decision.
	inserted, err := s.ledgerRepo.CreateCredit(ctx, dbTx, entry)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("append ledger entry: %w", err))
	}
	if !inserted {
		result := &ports.FundingResult{Outcome: ports.FundingDuplicate, Account: locked}
		if prior, err := s.ledgerRepo.GetCreditByReference(ctx, event.Reference); err == nil && prior != nil {
			result.TransactionID = prior.TransactionID
		}
		s.log.Info().Str("reference", event.Reference).Str("tx_id", result.TransactionID).Msg("duplicate gateway delivery, ledger entry already exists")
		return result, nil
	}

	if err := s.accountRepo.UpdateWalletBalance(ctx, dbTx, locked.ID, entry.NewBalance); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("update balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("commit tx: %w", err))
	}

	// Post-condition check. A mismatch means another writer touched the
	// balance outside the reconciler; there is no compensating transaction,
	// so it is logged for manual follow-up.
	if after, err := s.accountRepo.GetByID(ctx, locked.ID); err == nil && after != nil && after.WalletBalance != entry.NewBalance {
		s.log.Error().
			Str("account_id", locked.ID).
			Int64("expected_balance", entry.NewBalance).
			Int64("stored_balance", after.WalletBalance).
			Str("reference", event.Reference).
			Msg("balance mismatch after reconciliation")
	}

	s.sendTransactionEmail(ctx, locked, entry)

	s.log.Info().
		Str("account_id", locked.ID).
		Str("tx_id", entry.TransactionID).
		Str("reference", event.Reference).
		Int64("amount", amount).
		Int64("new_balance", entry.NewBalance).
		Msg("wallet funded")

	return &ports.FundingResult{
		Outcome:       ports.FundingCredited,
		TransactionID: entry.TransactionID,
		Amount:        amount,
		NewBalance:    entry.NewBalance,
		Account:       locked,
	}, nil
}

// ConfirmByReference resolves a charge through the gateway's verify API and
// credits it via Reconcile. The browser redirect after payment carries only
// the reference and chat id, so this path works whether or not the webhook
// has arrived; whichever lands second is a duplicate.
func (s *FundingServiceImpl) ConfirmByReference(ctx context.Context, chatID, reference string) (*ports.FundingResult, error) {
	charge, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verify transaction: %w", err)
	}

	if charge.Status != "success" {
		s.log.Info().Str("reference", reference).Str("status", charge.Status).Msg("verified charge not successful, no credit")
		if err := s.LogCancellation(ctx, chatID, reference); err != nil {
			s.log.Error().Err(err).Str("reference", reference).Msg("cancellation logging failed")
		}
		return &ports.FundingResult{Outcome: ports.FundingIgnored}, nil
	}

	return s.Reconcile(ctx, ports.GatewayEvent{
		Event:       "charge.success",
		AmountMinor: charge.AmountMinor,
		Reference:   charge.Reference,
		PaidAt:      charge.PaidAt,
		ChatID:      chatID,
	})
}

// LogCancellation appends a zero-amount cancelled entry for audit. The
// balance is never touched.
func (s *FundingServiceImpl) LogCancellation(ctx context.Context, chatID, reference string) error {
	binding, err := s.bindingRepo.GetByChatID(ctx, chatID)
	if err != nil {
		return apperror.ErrStorageUnavailable(fmt.Errorf("resolve binding: %w", err))
	}
	if binding == nil {
		s.log.Warn().Str("chat_id", chatID).Msg("cancellation for unbound chat, nothing to log")
		return nil
	}

	if reference == "" {
		reference = "N/A"
	}

	now := s.now()
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		TransactionID: domain.NewCancellationTransactionID(now),
		AccountID:     binding.AccountID,
		Amount:        0,
		Tag:           domain.LedgerTagCancelled,
		Status:        domain.LedgerStatusCancelled,
		Reference:     reference,
		ChatID:        chatID,
		CreatedAt:     now,
	}
	if err := s.ledgerRepo.CreateCancellation(ctx, entry); err != nil {
		return apperror.ErrStorageUnavailable(fmt.Errorf("append cancellation entry: %w", err))
	}

	s.log.Info().Str("account_id", binding.AccountID).Str("reference", reference).Msg("cancelled payment logged")
	return nil
}

// sendTransactionEmail delivers the funding notice, best-effort.
func (s *FundingServiceImpl) sendTransactionEmail(ctx context.Context, account *domain.Account, entry *domain.LedgerEntry) {
	if s.mailer == nil || account.Email == "" {
		return
	}
	err := s.mailer.SendTransactionEmail(ctx, ports.TransactionEmail{
		To:            account.Email,
		Name:          account.FullName,
		Status:        string(entry.Status),
		Tag:           string(entry.Tag),
		TxName:        fundingTxName,
		Amount:        entry.Amount,
		TransactionID: entry.TransactionID,
		Date:          entry.CreatedAt.Format("January 2, 2006"),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Str("tx_id", entry.TransactionID).Msg("transaction email failed")
	}
}
