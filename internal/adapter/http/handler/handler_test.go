package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"telegram-wallet-bridge/internal/core/domain"
	"telegram-wallet-bridge/internal/core/ports"
	"telegram-wallet-bridge/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Stubs ---

type stubBotSvc struct {
	mu        sync.Mutex
	messages  []ports.InboundMessage
	callbacks []ports.InboundCallback
	err       error
}

func (s *stubBotSvc) HandleMessage(_ context.Context, msg ports.InboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *stubBotSvc) HandleCallback(_ context.Context, cb ports.InboundCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
	return s.err
}

type stubFundingSvc struct {
	mu            sync.Mutex
	events        []ports.GatewayEvent
	cancellations []string
	confirmed     []string
	result        *ports.FundingResult
	reconcileErr  error
	confirmErr    error
}

func (s *stubFundingSvc) CreatePaymentLink(context.Context, string, int64, string, string) string {
	return ""
}

func (s *stubFundingSvc) Reconcile(_ context.Context, event ports.GatewayEvent) (*ports.FundingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if s.reconcileErr != nil {
		return nil, s.reconcileErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return &ports.FundingResult{Outcome: ports.FundingIgnored}, nil
}

func (s *stubFundingSvc) ConfirmByReference(_ context.Context, _, reference string) (*ports.FundingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = append(s.confirmed, reference)
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return &ports.FundingResult{Outcome: ports.FundingIgnored}, nil
}

func (s *stubFundingSvc) LogCancellation(_ context.Context, _, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancellations = append(s.cancellations, reference)
	return nil
}

type stubTokenSvc struct {
	token     string
	issueErr  error
	status    *ports.ConnectionStatus
	statusErr error

	issuedID    string
	issuedEmail string
}

func (s *stubTokenSvc) Issue(_ context.Context, accountID, accountEmail string) (string, error) {
	s.issuedID, s.issuedEmail = accountID, accountEmail
	return s.token, s.issueErr
}

func (s *stubTokenSvc) Redeem(context.Context, ports.RedeemRequest) (*domain.Account, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTokenSvc) ConnectionStatus(context.Context, string) (*ports.ConnectionStatus, error) {
	return s.status, s.statusErr
}

type stubAPITokenSvc struct{}

func (stubAPITokenSvc) Generate(string) (string, time.Time, error) { return "", time.Time{}, nil }

func (stubAPITokenSvc) Validate(token string) (string, error) {
	if token != "valid-token" {
		return "", apperror.ErrInvalidToken()
	}
	return "profile-service", nil
}

type stubNotifier struct {
	mu     sync.Mutex
	chatID string
	text   string
}

func (s *stubNotifier) SendMessage(_ context.Context, chatID, text string, _ [][]ports.InlineButton) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatID, s.text = chatID, text
	return nil
}

func (s *stubNotifier) SendPhoto(context.Context, string, string) error { return nil }

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Name() string               { return s.name }

// --- Fixtures ---

type routerFixture struct {
	router   *gin.Engine
	bot      *stubBotSvc
	funding  *stubFundingSvc
	tokens   *stubTokenSvc
	notifier *stubNotifier
}

func setupRouter(t *testing.T, mutate func(*RouterDeps)) *routerFixture {
	t.Helper()
	f := &routerFixture{
		bot:      &stubBotSvc{},
		funding:  &stubFundingSvc{},
		tokens:   &stubTokenSvc{token: "ct_abc123"},
		notifier: &stubNotifier{},
	}
	deps := RouterDeps{
		BotSvc:         f.bot,
		FundingSvc:     f.funding,
		TokenSvc:       f.tokens,
		APITokenSvc:    stubAPITokenSvc{},
		Notifier:       f.notifier,
		HealthCheckers: []ports.HealthChecker{stubChecker{name: "postgresql"}},
		Logger:         zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.router = SetupRouter(deps)
	return f
}

func doJSON(router *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w
}

// --- Telegram webhook ---

func TestTelegramWebhook_MessageRouted(t *testing.T) {
	f := setupRouter(t, nil)

	body := []byte(`{"update_id":1,"message":{"message_id":10,"from":{"id":42,"username":"ada","first_name":"Ada"},"chat":{"id":42},"text":"/start"}}`)
	w := doJSON(f.router, http.MethodPost, "/webhook", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	require.Len(t, f.bot.messages, 1)
	assert.Equal(t, "42", f.bot.messages[0].ChatID)
	assert.Equal(t, "/start", f.bot.messages[0].Text)
}

func TestTelegramWebhook_CallbackRouted(t *testing.T) {
	f := setupRouter(t, nil)

	body := []byte(`{"update_id":2,"callback_query":{"id":"cb1","from":{"id":42,"username":"ada"},"message":{"message_id":11,"chat":{"id":42}},"data":"show_profile"}}`)
	w := doJSON(f.router, http.MethodPost, "/webhook", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.bot.callbacks, 1)
	assert.Equal(t, "show_profile", f.bot.callbacks[0].Data)
}

func TestTelegramWebhook_MalformedStillAcked(t *testing.T) {
	f := setupRouter(t, nil)

	w := doJSON(f.router, http.MethodPost, "/webhook", []byte(`{not json`), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Empty(t, f.bot.messages)
}

func TestTelegramWebhook_ServiceErrorStillAcked(t *testing.T) {
	f := setupRouter(t, nil)
	f.bot.err = errors.New("downstream down")

	body := []byte(`{"update_id":3,"message":{"message_id":12,"from":{"id":7},"chat":{"id":7},"text":"hi"}}`)
	w := doJSON(f.router, http.MethodPost, "/webhook", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTelegramWebhook_UnroutedUpdateKindAcked(t *testing.T) {
	f := setupRouter(t, nil)

	// Edited messages are not routed.
	body := []byte(`{"update_id":4,"edited_message":{"message_id":13,"chat":{"id":7},"text":"edit"}}`)
	w := doJSON(f.router, http.MethodPost, "/webhook", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.bot.messages)
}

// --- Paystack webhook ---

func paystackBody(event, reference, chatID string, amount int64) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"event": event,
		"data": map[string]interface{}{
			"amount":    amount,
			"reference": reference,
			"paid_at":   "2025-06-01T12:00:00Z",
			"metadata": map[string]string{
				"telegramID": chatID,
				"accountID":  "acc-1",
				"purpose":    "wallet_funding",
			},
		},
	})
	return b
}

func TestPaystackWebhook_ChargeSuccessCredits(t *testing.T) {
	f := setupRouter(t, nil)
	f.funding.result = &ports.FundingResult{
		Outcome:       ports.FundingCredited,
		TransactionID: "wallet-fund-1-abc1234",
		Amount:        500,
		NewBalance:    600,
	}

	w := doJSON(f.router, http.MethodPost, "/paystack-webhook", paystackBody("charge.success", "ref-1", "42", 50000), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	require.Len(t, f.funding.events, 1)
	event := f.funding.events[0]
	assert.Equal(t, "ref-1", event.Reference)
	assert.Equal(t, int64(50000), event.AmountMinor)
	assert.Equal(t, "42", event.ChatID)
	assert.Equal(t, "acc-1", event.AccountID)

	// Credited outcome triggers the chat confirmation.
	assert.Equal(t, "42", f.notifier.chatID)
	assert.Contains(t, f.notifier.text, "wallet-fund-1-abc1234")
	assert.Contains(t, f.notifier.text, "₦500")
	assert.Contains(t, f.notifier.text, "₦600")
}

func TestPaystackWebhook_DuplicateNoNotification(t *testing.T) {
	f := setupRouter(t, nil)
	f.funding.result = &ports.FundingResult{Outcome: ports.FundingDuplicate}

	w := doJSON(f.router, http.MethodPost, "/paystack-webhook", paystackBody("charge.success", "ref-1", "42", 50000), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.notifier.chatID)
}

func TestPaystackWebhook_FailedChargeLogsCancellation(t *testing.T) {
	f := setupRouter(t, nil)

	w := doJSON(f.router, http.MethodPost, "/paystack-webhook", paystackBody("charge.failed", "ref-2", "42", 50000), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.funding.events)
	assert.Equal(t, []string{"ref-2"}, f.funding.cancellations)
}

func TestPaystackWebhook_UnrelatedEventIgnored(t *testing.T) {
	f := setupRouter(t, nil)

	w := doJSON(f.router, http.MethodPost, "/paystack-webhook", paystackBody("transfer.success", "ref-3", "42", 50000), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.funding.events)
	assert.Empty(t, f.funding.cancellations)
}

func TestPaystackWebhook_ReconcileErrorStillAcked(t *testing.T) {
	f := setupRouter(t, nil)
	f.funding.reconcileErr = errors.New("database down")

	w := doJSON(f.router, http.MethodPost, "/paystack-webhook", paystackBody("charge.success", "ref-4", "42", 50000), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
}

func TestPaystackWebhook_SignatureEnforced(t *testing.T) {
	const secret = "sk_test_secret"
	f := setupRouter(t, func(deps *RouterDeps) {
		deps.PaystackSecretKey = secret
		deps.VerifySignature = true
	})

	body := paystackBody("charge.success", "ref-5", "42", 50000)

	// No signature header.
	w := doJSON(f.router, http.MethodPost, "/paystack-webhook", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.funding.events)

	// Wrong signature.
	w = doJSON(f.router, http.MethodPost, "/paystack-webhook", body, map[string]string{
		"X-Paystack-Signature": "deadbeef",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid signature passes through to the handler.
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	w = doJSON(f.router, http.MethodPost, "/paystack-webhook", body, map[string]string{
		"X-Paystack-Signature": hex.EncodeToString(mac.Sum(nil)),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.funding.events, 1)
}

func TestPaymentCallback_ConfirmsAndNotifies(t *testing.T) {
	f := setupRouter(t, nil)
	f.funding.result = &ports.FundingResult{
		Outcome:       ports.FundingCredited,
		TransactionID: "wallet-fund-1-abc1234",
		Amount:        500,
		NewBalance:    600,
	}

	w := doJSON(f.router, http.MethodGet, "/payment-callback?reference=ref-9&chat_id=42", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Payment confirmed")
	assert.Equal(t, []string{"ref-9"}, f.funding.confirmed)
	assert.Equal(t, "42", f.notifier.chatID)
	assert.Contains(t, f.notifier.text, "wallet-fund-1-abc1234")
}

func TestPaymentCallback_TrxrefFallback(t *testing.T) {
	f := setupRouter(t, nil)
	f.funding.result = &ports.FundingResult{Outcome: ports.FundingDuplicate}

	w := doJSON(f.router, http.MethodGet, "/payment-callback?trxref=ref-10&chat_id=42", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ref-10"}, f.funding.confirmed)
	// Duplicate outcome does not re-notify the chat.
	assert.Empty(t, f.notifier.chatID)
}

func TestPaymentCallback_MissingReference(t *testing.T) {
	f := setupRouter(t, nil)

	w := doJSON(f.router, http.MethodGet, "/payment-callback?chat_id=42", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.funding.confirmed)
}

func TestPaymentCallback_UnsafeChatID(t *testing.T) {
	f := setupRouter(t, nil)

	w := doJSON(f.router, http.MethodGet, "/payment-callback?reference=ref-11&chat_id=..%2Fetc", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.funding.confirmed)
}

func TestPaymentCallback_ConfirmErrorStaysCalm(t *testing.T) {
	f := setupRouter(t, nil)
	f.funding.confirmErr = errors.New("gateway timeout")

	w := doJSON(f.router, http.MethodGet, "/payment-callback?reference=ref-12&chat_id=42", nil, nil)

	// The webhook path still settles the charge later.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "confirmation is on its way")
	assert.Empty(t, f.notifier.chatID)
}

// --- Internal API ---

func authed() map[string]string {
	return map[string]string{"Authorization": "Bearer valid-token"}
}

func TestCreateToken_Success(t *testing.T) {
	f := setupRouter(t, nil)

	body := []byte(`{"userId":"acc-1","userEmail":"ada@example.com"}`)
	w := doJSON(f.router, http.MethodPost, "/api/telegram/create-token", body, authed())

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ct_abc123", data["token"])
	assert.Equal(t, domain.TokenTTL.Seconds(), data["expires_in"])
	assert.Equal(t, "acc-1", f.tokens.issuedID)
	assert.Equal(t, "ada@example.com", f.tokens.issuedEmail)
}

func TestCreateToken_MissingFields(t *testing.T) {
	f := setupRouter(t, nil)

	w := doJSON(f.router, http.MethodPost, "/api/telegram/create-token", []byte(`{}`), authed())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.tokens.issuedID)
}

func TestCreateToken_InvalidEmail(t *testing.T) {
	f := setupRouter(t, nil)

	body := []byte(`{"userId":"acc-1","userEmail":"not-an-email"}`)
	w := doJSON(f.router, http.MethodPost, "/api/telegram/create-token", body, authed())

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateToken_RequiresAuth(t *testing.T) {
	f := setupRouter(t, nil)

	body := []byte(`{"userId":"acc-1","userEmail":"ada@example.com"}`)

	w := doJSON(f.router, http.MethodPost, "/api/telegram/create-token", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(f.router, http.MethodPost, "/api/telegram/create-token", body, map[string]string{
		"Authorization": "Bearer forged",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.tokens.issuedID)
}

func TestConnectionStatus_Connected(t *testing.T) {
	connectedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := setupRouter(t, nil)
	f.tokens.status = &ports.ConnectionStatus{
		Connected: true,
		Binding: &domain.IdentityBinding{
			ChatID:      "42",
			AccountID:   "acc-1",
			Username:    "ada",
			FirstName:   "Ada",
			ConnectedAt: connectedAt,
		},
	}

	w := doJSON(f.router, http.MethodGet, "/api/telegram/connection-status/acc-1", nil, authed())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["connected"])
	binding := data["binding"].(map[string]interface{})
	assert.Equal(t, "42", binding["chat_id"])
	assert.Equal(t, "ada", binding["username"])
	assert.Equal(t, "2025-06-01T12:00:00Z", binding["connected_at"])
}

func TestConnectionStatus_NotConnected(t *testing.T) {
	f := setupRouter(t, nil)
	f.tokens.status = &ports.ConnectionStatus{Connected: false}

	w := doJSON(f.router, http.MethodGet, "/api/telegram/connection-status/acc-1", nil, authed())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, false, data["connected"])
	assert.NotContains(t, data, "binding")
}

func TestConnectionStatus_AccountNotFound(t *testing.T) {
	f := setupRouter(t, nil)
	f.tokens.statusErr = apperror.ErrAccountNotFound()

	w := doJSON(f.router, http.MethodGet, "/api/telegram/connection-status/missing", nil, authed())

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectionStatus_RejectsUnsafeID(t *testing.T) {
	f := setupRouter(t, nil)
	f.tokens.status = &ports.ConnectionStatus{Connected: false}

	w := doJSON(f.router, http.MethodGet, "/api/telegram/connection-status/acc%3B--drop", nil, authed())

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Ops surface ---

func TestHealthCheck_AllHealthy(t *testing.T) {
	f := setupRouter(t, func(deps *RouterDeps) {
		deps.HealthCheckers = []ports.HealthChecker{
			stubChecker{name: "postgresql"},
			stubChecker{name: "redis"},
		}
	})

	w := doJSON(f.router, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	f := setupRouter(t, func(deps *RouterDeps) {
		deps.HealthCheckers = []ports.HealthChecker{
			stubChecker{name: "postgresql"},
			stubChecker{name: "redis", err: errors.New("connection refused")},
		}
	})

	w := doJSON(f.router, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	redis := deps["redis"].(map[string]interface{})
	assert.Equal(t, "unhealthy", redis["status"])
}

func TestPing(t *testing.T) {
	f := setupRouter(t, nil)

	w := doJSON(f.router, http.MethodGet, "/ping", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["uptime"])
}

func TestRoot_ListsEndpoints(t *testing.T) {
	f := setupRouter(t, nil)

	w := doJSON(f.router, http.MethodGet, "/", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/paystack-webhook")
	assert.Contains(t, w.Body.String(), "telegram-wallet-bridge")
}

func TestMetricsEndpointExposed(t *testing.T) {
	f := setupRouter(t, nil)

	w := doJSON(f.router, http.MethodGet, "/metrics", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}
