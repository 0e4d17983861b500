package service

import (
	"context"
	"fmt"
	"time"

	"telegram-wallet-bridge/internal/core/domain"
	"telegram-wallet-bridge/internal/core/ports"
	"telegram-wallet-bridge/pkg/apperror"

	"github.com/rs/zerolog"
)

// TokenServiceImpl implements ports.TokenService.
type TokenServiceImpl struct {
	tokenRepo   ports.TokenRepository
	bindingRepo ports.BindingRepository
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	now         func() time.Time
	log         zerolog.Logger
}

// NewTokenService creates a new TokenServiceImpl.
func NewTokenService(
	tokenRepo ports.TokenRepository,
	bindingRepo ports.BindingRepository,
	accountRepo ports.AccountRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *TokenServiceImpl {
	return &TokenServiceImpl{
		tokenRepo:   tokenRepo,
		bindingRepo: bindingRepo,
		accountRepo: accountRepo,
		transactor:  transactor,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// Issue creates a single-use connection token with a fixed validity window.
func (s *TokenServiceImpl) Issue(ctx context.Context, accountID, accountEmail string) (string, error) {
	if accountID == "" || accountEmail == "" {
		return "", apperror.ErrInvalidRequest("accountId and accountEmail are required")
	}

	now := s.now()
	token := &domain.ConnectionToken{
		ID:           domain.NewTokenID(),
		AccountID:    accountID,
		AccountEmail: accountEmail,
		CreatedAt:    now,
		ExpiresAt:    now.Add(domain.TokenTTL),
		Used:         false,
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return "", apperror.ErrStorageUnavailable(fmt.Errorf("create token: %w", err))
	}

	s.log.Info().
		Str("account_id", accountID).
		Time("expires_at", token.ExpiresAt).
		Msg("connection token issued")

	return token.ID, nil
}

// Redeem consumes a connection token and binds the redeemer's chat identity
// to the token's account. The binding write and the used-flag flip commit
// atomically; the flip itself is conditional so that concurrent redemptions
// of one token cannot both succeed.
func (s *TokenServiceImpl) Redeem(ctx context.Context, req ports.RedeemRequest) (*domain.Account, error) {
	if req.TokenID == "" || req.ChatID == "" {
		return nil, apperror.ErrInvalidRequest("token and chat id are required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	token, err := s.tokenRepo.GetByIDForUpdate(ctx, dbTx, req.TokenID)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("lock token: %w", err))
	}
	if token == nil {
		return nil, apperror.ErrTokenNotFound()
	}

	now := s.now()
	if token.IsExpired(now) {
		return nil, apperror.ErrTokenExpired()
	}
	if token.Used {
		return nil, apperror.ErrTokenAlreadyUsed()
	}

	account, err := s.accountRepo.GetByID(ctx, token.AccountID)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}

	// One chat per account: redeeming from a new device replaces any
	// binding the account held under another chat id.
	if err := s.bindingRepo.DeleteOthersByAccountID(ctx, dbTx, account.ID, req.ChatID); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("clear prior binding: %w", err))
	}

	binding := &domain.IdentityBinding{
		ChatID:      req.ChatID,
		AccountID:   account.ID,
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		ConnectedAt: now,
	}
	if err := s.bindingRepo.Upsert(ctx, dbTx, binding); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("write binding: %w", err))
	}

	// The flip is conditional on used = FALSE; a concurrent redemption that
	// already consumed the token makes this report zero rows.
	consumed, err := s.tokenRepo.MarkUsed(ctx, dbTx, token.ID, ports.TokenRedemption{
		ChatID:    req.ChatID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		UsedAt:    now,
	})
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("mark token used: %w", err))
	}
	if !consumed {
		return nil, apperror.ErrTokenAlreadyUsed()
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("account_id", account.ID).
		Str("chat_id", req.ChatID).
		Str("username", req.Username).
		Msg("chat identity bound to account")

	return account, nil
}

// ConnectionStatus reports the current binding snapshot for an account.
func (s *TokenServiceImpl) ConnectionStatus(ctx context.Context, accountID string) (*ports.ConnectionStatus, error) {
	if accountID == "" {
		return nil, apperror.ErrInvalidRequest("accountId is required")
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}

	binding, err := s.bindingRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("load binding: %w", err))
	}

	return &ports.ConnectionStatus{
		Connected: binding != nil,
		Binding:   binding,
	}, nil
}
