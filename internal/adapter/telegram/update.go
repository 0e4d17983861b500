package telegram

import (
	"strconv"
	"strings"

	"telegram-wallet-bridge/internal/core/ports"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageFromUpdate extracts an inbound text message from a webhook update.
// Returns ok=false for updates that carry no usable text message.
func MessageFromUpdate(update *tgbotapi.Update) (ports.InboundMessage, bool) {
	if update.Message == nil || update.Message.Chat == nil {
		return ports.InboundMessage{}, false
	}
	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return ports.InboundMessage{}, false
	}

	msg := ports.InboundMessage{
		ChatID: strconv.FormatInt(update.Message.Chat.ID, 10),
		Text:   text,
	}
	if from := update.Message.From; from != nil {
		msg.Username = from.UserName
		msg.FirstName = from.FirstName
		msg.LastName = from.LastName
	}
	return msg, true
}

// CallbackFromUpdate extracts an inline-button press from a webhook update.
// Returns ok=false for updates that carry no callback query.
func CallbackFromUpdate(update *tgbotapi.Update) (ports.InboundCallback, bool) {
	cb := update.CallbackQuery
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil || cb.Data == "" {
		return ports.InboundCallback{}, false
	}

	out := ports.InboundCallback{
		ChatID: strconv.FormatInt(cb.Message.Chat.ID, 10),
		Data:   cb.Data,
	}
	if from := cb.From; from != nil {
		out.Username = from.UserName
		out.FirstName = from.FirstName
		out.LastName = from.LastName
	}
	return out, true
}
