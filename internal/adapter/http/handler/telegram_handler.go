package handler

import (
	"telegram-wallet-bridge/internal/adapter/telegram"
	"telegram-wallet-bridge/internal/core/ports"
	"telegram-wallet-bridge/pkg/response"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// TelegramHandler handles POST /webhook, the chat platform's update
// delivery. The platform retries non-200 responses, so the handler always
// acknowledges; failures are logged and counted instead.
type TelegramHandler struct {
	botSvc ports.BotService
	log    zerolog.Logger
}

// NewTelegramHandler creates a new TelegramHandler.
func NewTelegramHandler(botSvc ports.BotService, log zerolog.Logger) *TelegramHandler {
	return &TelegramHandler{botSvc: botSvc, log: log}
}

// HandleUpdate handles POST /webhook.
func (h *TelegramHandler) HandleUpdate(c *gin.Context) {
	timer := prometheus.NewTimer(webhookDuration.WithLabelValues("/webhook"))
	defer timer.ObserveDuration()

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.log.Warn().Err(err).Msg("malformed update payload")
		webhookUpdatesTotal.WithLabelValues("malformed").Inc()
		response.Ack(c, gin.H{"status": "ok"})
		return
	}

	ctx := c.Request.Context()
	switch {
	case update.CallbackQuery != nil:
		webhookUpdatesTotal.WithLabelValues("callback").Inc()
		if cb, ok := telegram.CallbackFromUpdate(&update); ok {
			if err := h.botSvc.HandleCallback(ctx, cb); err != nil {
				h.log.Error().Err(err).Str("chat_id", cb.ChatID).Str("data", cb.Data).Msg("callback handling failed")
			}
		}
	case update.Message != nil:
		webhookUpdatesTotal.WithLabelValues("message").Inc()
		if msg, ok := telegram.MessageFromUpdate(&update); ok {
			if err := h.botSvc.HandleMessage(ctx, msg); err != nil {
				h.log.Error().Err(err).Str("chat_id", msg.ChatID).Msg("message handling failed")
			}
		}
	default:
		// Edits, channel posts and other update kinds are not routed.
		webhookUpdatesTotal.WithLabelValues("other").Inc()
	}

	response.Ack(c, gin.H{"status": "ok"})
}
