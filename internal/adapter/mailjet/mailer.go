package mailjet

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

const sendURL = "https://api.mailjet.com/v3.1/send"

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Mailer implements ports.Mailer on the Mailjet v3.1 send API using a stored
// transactional template.
type Mailer struct {
	url         string
	publicKey   string
	privateKey  string
	senderEmail string
	senderName  string
	templateID  int
	httpClient  HTTPClient
	log         zerolog.Logger
}

// NewMailer creates a new Mailjet mailer.
func NewMailer(publicKey, privateKey, senderEmail, senderName string, templateID int, httpClient HTTPClient, log zerolog.Logger) *Mailer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Mailer{
		url:         sendURL,
		publicKey:   publicKey,
		privateKey:  privateKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		templateID:  templateID,
		httpClient:  httpClient,
		log:         log,
	}
}

type address struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

type message struct {
	From             address        `json:"From"`
	To               []address      `json:"To"`
	TemplateID       int            `json:"TemplateID"`
	TemplateLanguage bool           `json:"TemplateLanguage"`
	Subject          string         `json:"Subject"`
	Variables        map[string]any `json:"Variables"`
}

type sendRequest struct {
	Messages []message `json:"Messages"`
}

// SendTransactionEmail delivers the wallet transaction notice through the
// configured template.
func (m *Mailer) SendTransactionEmail(ctx context.Context, email ports.TransactionEmail) error {
	payload := sendRequest{
		Messages: []message{{
			From:             address{Email: m.senderEmail, Name: m.senderName},
			To:               []address{{Email: email.To, Name: email.Name}},
			TemplateID:       m.templateID,
			TemplateLanguage: true,
			Subject:          "Wallet Transaction Notice",
			Variables: map[string]any{
				"name":   email.Name,
				"status": email.Status,
				"tag":    email.Tag,
				"txName": email.TxName,
				"amount": email.Amount,
				"txId":   email.TransactionID,
				"date":   email.Date,
			},
		}},
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(m.publicKey, m.privateKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailjet request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mailjet status %d: %s", resp.StatusCode, string(body))
	}

	m.log.Debug().Str("to", email.To).Str("tx_id", email.TransactionID).Msg("transaction email sent")
	return nil
}
