package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"telegram-wallet-bridge/internal/adapter/http/dto"
	"telegram-wallet-bridge/internal/core/ports"
	"telegram-wallet-bridge/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// PaystackHandler handles POST /paystack-webhook. The gateway treats any
// non-200 as undelivered and retries, so the handler always acknowledges;
// exactly-once crediting is the reconciler's job, not the status code's.
type PaystackHandler struct {
	fundingSvc ports.FundingService
	notifier   ports.ChatNotifier
	log        zerolog.Logger
}

// NewPaystackHandler creates a new PaystackHandler.
func NewPaystackHandler(fundingSvc ports.FundingService, notifier ports.ChatNotifier, log zerolog.Logger) *PaystackHandler {
	return &PaystackHandler{fundingSvc: fundingSvc, notifier: notifier, log: log}
}

// HandleWebhook handles POST /paystack-webhook.
func (h *PaystackHandler) HandleWebhook(c *gin.Context) {
	timer := prometheus.NewTimer(webhookDuration.WithLabelValues("/paystack-webhook"))
	defer timer.ObserveDuration()

	var payload dto.PaystackWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn().Err(err).Msg("malformed gateway payload")
		reconciliationsTotal.WithLabelValues("malformed").Inc()
		response.Ack(c, gin.H{"received": true})
		return
	}

	ctx := c.Request.Context()
	switch {
	case payload.Event == "charge.success":
		h.reconcile(ctx, payload)
	case strings.HasPrefix(payload.Event, "charge."):
		// Failed or abandoned charge: audit trail only, balance untouched.
		if err := h.fundingSvc.LogCancellation(ctx, payload.Data.Metadata.TelegramID, payload.Data.Reference); err != nil {
			h.log.Error().Err(err).Str("reference", payload.Data.Reference).Msg("cancellation logging failed")
		}
		reconciliationsTotal.WithLabelValues("cancelled").Inc()
	default:
		reconciliationsTotal.WithLabelValues(string(ports.FundingIgnored)).Inc()
	}

	response.Ack(c, gin.H{"received": true})
}

func (h *PaystackHandler) reconcile(ctx context.Context, payload dto.PaystackWebhook) {
	paidAt, _ := time.Parse(time.RFC3339, payload.Data.PaidAt)

	result, err := h.fundingSvc.Reconcile(ctx, ports.GatewayEvent{
		Event:       payload.Event,
		AmountMinor: payload.Data.Amount,
		Reference:   payload.Data.Reference,
		PaidAt:      paidAt,
		ChatID:      payload.Data.Metadata.TelegramID,
		AccountID:   payload.Data.Metadata.AccountID,
		Purpose:     payload.Data.Metadata.Purpose,
	})
	if err != nil {
		h.log.Error().Err(err).Str("reference", payload.Data.Reference).Msg("reconciliation failed")
		reconciliationsTotal.WithLabelValues("error").Inc()
		return
	}
	reconciliationsTotal.WithLabelValues(string(result.Outcome)).Inc()

	if result.Outcome == ports.FundingCredited {
		h.notifyChat(ctx, payload.Data.Metadata.TelegramID, result)
	}
}

// HandlePaymentCallback handles GET /payment-callback, the browser return
// leg of the hosted payment page. Paystack appends the charge reference to
// the redirect and the chat id rides along from link creation. Crediting
// goes through the same reconciler as the webhook, so whichever path lands
// first wins and the other resolves as a duplicate.
func (h *PaystackHandler) HandlePaymentCallback(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref")
	}
	chatID := c.Query("chat_id")
	if reference == "" || !dto.SafeID(chatID) {
		h.renderCallbackPage(c, http.StatusBadRequest, "Invalid payment reference")
		return
	}

	ctx := c.Request.Context()
	result, err := h.fundingSvc.ConfirmByReference(ctx, chatID, reference)
	if err != nil {
		h.log.Error().Err(err).Str("reference", reference).Msg("payment confirmation failed")
		reconciliationsTotal.WithLabelValues("error").Inc()
		// The webhook path still settles the charge, so the page stays calm.
		h.renderCallbackPage(c, http.StatusOK, "Payment received, confirmation is on its way")
		return
	}
	reconciliationsTotal.WithLabelValues(string(result.Outcome)).Inc()

	if result.Outcome == ports.FundingCredited {
		h.notifyChat(ctx, chatID, result)
	}
	h.renderCallbackPage(c, http.StatusOK, "Payment confirmed")
}

func (h *PaystackHandler) renderCallbackPage(c *gin.Context, status int, headline string) {
	page := fmt.Sprintf("<!doctype html><html><head><title>Telegram Wallet Bridge</title></head><body><h3>%s</h3><p>You can close this tab and return to Telegram.</p></body></html>", headline)
	c.Data(status, "text/html; charset=utf-8", []byte(page))
}

// notifyChat posts the funding confirmation back into the chat, best-effort.
func (h *PaystackHandler) notifyChat(ctx context.Context, chatID string, result *ports.FundingResult) {
	if h.notifier == nil || chatID == "" {
		return
	}
	text := fmt.Sprintf("✅ *Payment Successful!*\n\n💰 Amount: ₦%d\n🧾 Transaction ID: `%s`\n💼 New Wallet Balance: ₦%d\n\nThank you for funding your wallet!",
		result.Amount, result.TransactionID, result.NewBalance)
	if err := h.notifier.SendMessage(ctx, chatID, text, nil); err != nil {
		h.log.Warn().Err(err).Str("chat_id", chatID).Msg("funding confirmation delivery failed")
	}
}
