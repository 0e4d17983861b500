package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"telegram-wallet-bridge/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.PaymentGateway against the Paystack HTTP API.
// Amounts cross this boundary in minor units (kobo).
type Client struct {
	baseURL    string
	secretKey  string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient creates a new Paystack client.
func NewClient(baseURL, secretKey string, httpClient HTTPClient, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: httpClient,
		log:        log,
	}
}

type initializeRequest struct {
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"` // minor units
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    metadata `json:"metadata"`
}

// metadata is echoed back verbatim in webhook deliveries; it is the only
// channel correlating a charge to the chat that requested it.
type metadata struct {
	TelegramID string `json:"telegramID"`
	AccountID  string `json:"accountID"`
	Purpose    string `json:"purpose"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// InitializeTransaction requests a hosted payment page and returns its URL.
func (c *Client) InitializeTransaction(ctx context.Context, req ports.InitTransactionRequest) (string, error) {
	payload := initializeRequest{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		CallbackURL: req.CallbackURL,
		Metadata: metadata{
			TelegramID: req.ChatID,
			AccountID:  req.AccountID,
			Purpose:    req.Purpose,
		},
	}

	var out initializeResponse
	if err := c.post(ctx, "/transaction/initialize", payload, &out); err != nil {
		return "", err
	}
	if !out.Status {
		return "", fmt.Errorf("paystack declined initialization: %s", out.Message)
	}
	if out.Data.AuthorizationURL == "" {
		return "", fmt.Errorf("paystack returned no authorization url")
	}

	c.log.Debug().Str("reference", out.Data.Reference).Msg("paystack transaction initialized")
	return out.Data.AuthorizationURL, nil
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string    `json:"status"`
		Amount    int64     `json:"amount"`
		Reference string    `json:"reference"`
		PaidAt    time.Time `json:"paid_at"`
	} `json:"data"`
}

// VerifyTransaction fetches Paystack's view of a charge by reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*ports.GatewayCharge, error) {
	var out verifyResponse
	if err := c.get(ctx, "/transaction/verify/"+reference, &out); err != nil {
		return nil, err
	}
	if !out.Status {
		return nil, fmt.Errorf("paystack verify failed: %s", out.Message)
	}

	return &ports.GatewayCharge{
		Status:      out.Data.Status,
		AmountMinor: out.Data.Amount,
		Reference:   out.Data.Reference,
		PaidAt:      out.Data.PaidAt,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paystack request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read paystack response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paystack status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode paystack response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
