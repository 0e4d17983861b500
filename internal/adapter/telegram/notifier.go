package telegram

import (
	"context"
	"fmt"
	"strconv"

	"telegram-wallet-bridge/internal/core/ports"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the subset of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier implements ports.ChatNotifier on the Telegram Bot API.
type Notifier struct {
	bot Sender
	log zerolog.Logger
}

// NewBot creates the Bot API client and verifies the token with getMe.
func NewBot(token string, log zerolog.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot client: %w", err)
	}
	log.Info().Str("bot_username", bot.Self.UserName).Msg("Telegram bot client ready")
	return bot, nil
}

// NewNotifier creates a new Notifier.
func NewNotifier(bot Sender, log zerolog.Logger) *Notifier {
	return &Notifier{bot: bot, log: log}
}

// SendMessage delivers a Markdown-formatted message with an optional inline
// keyboard.
func (n *Notifier) SendMessage(_ context.Context, chatID, text string, keyboard [][]ports.InlineButton) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup, ok := toInlineKeyboard(keyboard); ok {
		msg.ReplyMarkup = markup
	}

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendPhoto delivers a photo by URL; Telegram fetches the URL itself.
func (n *Notifier) SendPhoto(_ context.Context, chatID, photoURL string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	photo := tgbotapi.NewPhoto(id, tgbotapi.FileURL(photoURL))
	if _, err := n.bot.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chat id %q is not numeric: %w", chatID, err)
	}
	return id, nil
}

func toInlineKeyboard(rows [][]ports.InlineButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
			}
		}
		out = append(out, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...), true
}
