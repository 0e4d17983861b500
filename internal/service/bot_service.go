package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"telegram-wallet-bridge/internal/core/domain"
	"telegram-wallet-bridge/internal/core/ports"
	"telegram-wallet-bridge/pkg/apperror"

	"github.com/rs/zerolog"
)

// command is one of the recognized slash commands.
type command string

const (
	cmdStart      command = "/start"
	cmdConnect    command = "/connect"
	cmdViewTicket command = "/viewTicket"
	cmdHelp       command = "/help"
	cmdProfile    command = "/profile"
	cmdCredits    command = "/credits"
	cmdFund       command = "/fund"
	cmdDisconnect command = "/disconnect"
)

// parseCommand maps message text onto the closed command set. /start carries
// an optional deep-link payload, so it matches on its first word.
func parseCommand(text string) (command, bool) {
	word := text
	if i := strings.IndexByte(word, ' '); i >= 0 {
		word = word[:i]
	}
	switch command(word) {
	case cmdStart, cmdConnect, cmdViewTicket, cmdHelp, cmdProfile, cmdCredits, cmdFund, cmdDisconnect:
		return command(word), true
	}
	return "", false
}

// callbackKind classifies inline-button presses.
type callbackKind int

const (
	cbUnknown callbackKind = iota
	cbShowCommands
	cbShowProfile
	cbConfirmDisconnect
	cbCancelDisconnect
	cbTicketQR // arg: ticket id
	cbCommand  // arg: command name without the slash
)

// parseCallback maps callback data onto the closed callback set.
func parseCallback(data string) (callbackKind, string) {
	switch data {
	case "show_commands":
		return cbShowCommands, ""
	case "show_profile":
		return cbShowProfile, ""
	case "confirm_disconnect":
		return cbConfirmDisconnect, ""
	case "cancel_disconnect":
		return cbCancelDisconnect, ""
	}
	if arg, ok := strings.CutPrefix(data, "qr_"); ok {
		return cbTicketQR, arg
	}
	if arg, ok := strings.CutPrefix(data, "cmd_"); ok {
		return cbCommand, arg
	}
	return cbUnknown, ""
}

// BotServiceImpl routes inbound chat traffic to the linking and funding
// subsystems and renders replies.
type BotServiceImpl struct {
	bindingRepo ports.BindingRepository
	accountRepo ports.AccountRepository
	ticketRepo  ports.TicketRepository
	tokenSvc    ports.TokenService
	fundingSvc  ports.FundingService
	convStore   ports.ConversationStore
	notifier    ports.ChatNotifier
	profileURL  string
	siteURL     string
	log         zerolog.Logger
}

// NewBotService creates a new BotServiceImpl.
func NewBotService(
	bindingRepo ports.BindingRepository,
	accountRepo ports.AccountRepository,
	ticketRepo ports.TicketRepository,
	tokenSvc ports.TokenService,
	fundingSvc ports.FundingService,
	convStore ports.ConversationStore,
	notifier ports.ChatNotifier,
	profileURL string,
	siteURL string,
	log zerolog.Logger,
) *BotServiceImpl {
	return &BotServiceImpl{
		bindingRepo: bindingRepo,
		accountRepo: accountRepo,
		ticketRepo:  ticketRepo,
		tokenSvc:    tokenSvc,
		fundingSvc:  fundingSvc,
		convStore:   convStore,
		notifier:    notifier,
		profileURL:  profileURL,
		siteURL:     siteURL,
		log:         log,
	}
}

// HandleMessage processes one inbound text message. The conversation slot is
// consulted before the text is interpreted as a command, and consumed by the
// next message whatever it contains.
func (s *BotServiceImpl) HandleMessage(ctx context.Context, msg ports.InboundMessage) error {
	kind, expecting, err := s.convStore.GetExpectation(ctx, msg.ChatID)
	if err != nil {
		// Degraded conversation store: treat as no expectation rather than
		// dropping the message.
		s.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("conversation store unavailable")
		expecting = false
	}
	if expecting {
		if err := s.convStore.ClearExpectation(ctx, msg.ChatID); err != nil {
			s.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("failed to clear expectation")
		}
		switch kind {
		case domain.ExpectConnectionToken:
			return s.handleTokenPaste(ctx, msg)
		case domain.ExpectFundAmount:
			return s.handleFundAmount(ctx, msg)
		default:
			s.log.Warn().Str("chat_id", msg.ChatID).Str("kind", string(kind)).Msg("unknown expectation kind, discarding")
			return nil
		}
	}

	if cmd, ok := parseCommand(msg.Text); ok {
		return s.handleCommand(ctx, msg, cmd)
	}

	if strings.HasPrefix(msg.Text, "/") {
		s.send(ctx, msg.ChatID, "❌ Sorry, that command isn't recognized.\nUse /help to see available commands.", nil)
	}
	// Plain text outside a conversation is ignored.
	return nil
}

// HandleCallback processes one inline-button press. Command buttons re-enter
// the shared command handler directly.
func (s *BotServiceImpl) HandleCallback(ctx context.Context, cb ports.InboundCallback) error {
	msg := ports.InboundMessage{
		ChatID:    cb.ChatID,
		Username:  cb.Username,
		FirstName: cb.FirstName,
		LastName:  cb.LastName,
	}

	kind, arg := parseCallback(cb.Data)
	switch kind {
	case cbCommand:
		if cmd, ok := parseCommand("/" + arg); ok {
			msg.Text = string(cmd)
			return s.handleCommand(ctx, msg, cmd)
		}
		s.log.Debug().Str("data", cb.Data).Msg("command button for unrecognized command")
		return nil
	case cbShowCommands:
		return s.cmdHelp(ctx, msg)
	case cbShowProfile:
		return s.cmdProfile(ctx, msg)
	case cbConfirmDisconnect:
		return s.confirmDisconnect(ctx, msg)
	case cbCancelDisconnect:
		s.send(ctx, cb.ChatID, "✅ Disconnect cancelled. Your account remains connected.", nil)
		return nil
	case cbTicketQR:
		return s.sendTicketQR(ctx, msg, arg)
	default:
		s.log.Debug().Str("chat_id", cb.ChatID).Str("data", cb.Data).Msg("unrecognized callback, ignoring")
		return nil
	}
}

func (s *BotServiceImpl) handleCommand(ctx context.Context, msg ports.InboundMessage, cmd command) error {
	switch cmd {
	case cmdStart:
		return s.cmdStart(ctx, msg)
	case cmdConnect:
		return s.cmdConnect(ctx, msg)
	case cmdViewTicket:
		return s.cmdViewTicket(ctx, msg)
	case cmdHelp:
		return s.cmdHelp(ctx, msg)
	case cmdProfile:
		return s.cmdProfile(ctx, msg)
	case cmdCredits:
		return s.cmdCredits(ctx, msg)
	case cmdFund:
		return s.cmdFund(ctx, msg)
	case cmdDisconnect:
		return s.cmdDisconnect(ctx, msg)
	}
	return nil
}

// --- command handlers ---

func (s *BotServiceImpl) cmdStart(ctx context.Context, msg ports.InboundMessage) error {
	account, err := s.boundAccount(ctx, msg.ChatID)
	if err != nil {
		s.sendTryLater(ctx, msg.ChatID)
		return err
	}

	if account != nil {
		name := account.FullName
		if name == "" {
			name = "User"
		}
		s.send(ctx, msg.ChatID,
			fmt.Sprintf("👋 Welcome back, %s!\n\nYour Telegram account is already connected to your profile.\n\nUse /help to see available commands.", name),
			[][]ports.InlineButton{{
				{Text: "📘 Show Commands", CallbackData: "show_commands"},
				{Text: "👤 Profile", CallbackData: "show_profile"},
			}})
		return nil
	}

	s.send(ctx, msg.ChatID,
		"🎉 *Welcome!*\n\nTo access your account features, connect your Telegram account to your profile.\n\n🔗 Visit your profile page, generate a connection token, and use the /connect command with your token.",
		[][]ports.InlineButton{
			{{Text: "🔗 Go to Profile Page", URL: s.profileURL}},
			{{Text: "📘 Show Commands", CallbackData: "show_commands"}},
		})
	return nil
}

func (s *BotServiceImpl) cmdConnect(ctx context.Context, msg ports.InboundMessage) error {
	account, err := s.boundAccount(ctx, msg.ChatID)
	if err != nil {
		s.sendTryLater(ctx, msg.ChatID)
		return err
	}
	if account != nil {
		s.send(ctx, msg.ChatID,
			fmt.Sprintf("✅ Your account is already connected!\n\nConnected as: %s\nEmail: %s\n\nUse /disconnect if you want to disconnect this account.",
				account.FullName, account.Email), nil)
		return nil
	}

	s.send(ctx, msg.ChatID,
		"🔑 *Connect Your Account*\n\nPlease paste the connection token from your profile page.\n\n💡 To get your token:\n1. Open "+s.profileURL+"\n2. Click \"Generate Connection Token\"\n3. Copy the token and paste it here", nil)

	if err := s.convStore.SetExpectation(ctx, msg.ChatID, domain.ExpectConnectionToken); err != nil {
		s.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("failed to set expectation")
	}
	return nil
}

// handleTokenPaste redeems the pasted token and reports each token-state
// failure distinctly, so the user knows whether to retry or re-generate.
func (s *BotServiceImpl) handleTokenPaste(ctx context.Context, msg ports.InboundMessage) error {
	token := strings.TrimSpace(msg.Text)
	if token == "" {
		s.send(ctx, msg.ChatID, "❌ Please provide a valid connection token.\n\nUse /connect to try again.", nil)
		return nil
	}

	account, err := s.tokenSvc.Redeem(ctx, ports.RedeemRequest{
		TokenID:   token,
		ChatID:    msg.ChatID,
		Username:  msg.Username,
		FirstName: msg.FirstName,
		LastName:  msg.LastName,
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case apperror.ErrTokenNotFound().Code:
				s.send(ctx, msg.ChatID, "❌ Invalid connection token.\n\nPlease generate a new token from your profile page and try again.\n\n🔗 Go to: "+s.profileURL, nil)
				return nil
			case apperror.ErrTokenExpired().Code:
				s.send(ctx, msg.ChatID, "❌ Connection token has expired.\n\nPlease generate a new token from your profile page.\n\n🔗 Go to: "+s.profileURL, nil)
				return nil
			case apperror.ErrTokenAlreadyUsed().Code:
				s.send(ctx, msg.ChatID, "❌ This connection token has already been used.\n\nPlease generate a new token from your profile page.\n\n🔗 Go to: "+s.profileURL, nil)
				return nil
			case apperror.ErrAccountNotFound().Code:
				s.send(ctx, msg.ChatID, "❌ User account not found.\n\nPlease try again or contact support.", nil)
				return nil
			}
		}
		s.send(ctx, msg.ChatID, "❌ Failed to connect account. Please try again.\n\nIf the problem persists, contact support.", nil)
		return err
	}

	username := msg.Username
	if username == "" {
		username = "Not set"
	}
	s.send(ctx, msg.ChatID,
		fmt.Sprintf("🎉 *Connection Successful!*\n\nYour Telegram account has been connected to your profile.\n\n✅ *Account Details:*\n👤 Name: %s\n📧 Email: %s\n💬 Telegram: @%s\n\nYou can now use all bot features! Try /profile to see your account details.",
			orDefault(account.FullName, "Not set"), account.Email, username),
		[][]ports.InlineButton{{
			{Text: "👤 View Profile", CallbackData: "show_profile"},
			{Text: "📘 Show Commands", CallbackData: "show_commands"},
		}})
	return nil
}

func (s *BotServiceImpl) cmdViewTicket(ctx context.Context, msg ports.InboundMessage) error {
	account, err := s.boundAccount(ctx, msg.ChatID)
	if err != nil {
		s.sendTryLater(ctx, msg.ChatID)
		return err
	}
	if account == nil {
		s.sendAuthRequired(ctx, msg.ChatID)
		return nil
	}

	s.send(ctx, msg.ChatID, "⏳ Just a moment...", nil)

	tickets, err := s.ticketRepo.ListByAccountID(ctx, account.ID)
	if err != nil {
		s.send(ctx, msg.ChatID, "❌ Error fetching your tickets. Please try again later.", nil)
		return err
	}

	if len(tickets) == 0 {
		s.send(ctx, msg.ChatID, "🎟 You have no tickets yet.\n\nBook your first event to see it here!",
			[][]ports.InlineButton{{{Text: "🎫 Browse Events", URL: s.siteURL}}})
		return nil
	}

	for _, ticket := range tickets {
		ticketID := ticket.TicketID
		if ticketID == "" {
			ticketID = "Unavailable"
		}
		verified := "No"
		if ticket.Verified {
			verified = "Yes"
		}
		text := fmt.Sprintf("🎟 *Event:* %s\n📅 *Date:* %s\n📍 *Venue:* %s\n🎫 *Type:* %s\n✅ *Verified:* %s\n||🆔 Ticket ID: %s||",
			ticket.EventName, ticket.EventDate, ticket.EventVenue, ticket.TicketType, verified, ticketID)
		s.send(ctx, msg.ChatID, text,
			[][]ports.InlineButton{{{Text: "Get QR Code", CallbackData: "qr_" + ticketID}}})
	}
	return nil
}

func (s *BotServiceImpl) cmdHelp(ctx context.Context, msg ports.InboundMessage) error {
	account, err := s.boundAccount(ctx, msg.ChatID)
	if err != nil {
		// Help still renders when the store is down, just without the
		// connected-only rows.
		s.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("binding lookup failed rendering help")
	}

	buttons := [][]ports.InlineButton{
		{{Text: "/start", CallbackData: "cmd_start"}, {Text: "/connect", CallbackData: "cmd_connect"}},
		{{Text: "/viewTicket", CallbackData: "cmd_viewTicket"}, {Text: "/profile", CallbackData: "cmd_profile"}},
		{{Text: "/fund", CallbackData: "cmd_fund"}, {Text: "/credits", CallbackData: "cmd_credits"}},
	}
	if account != nil {
		buttons = append(buttons, []ports.InlineButton{{Text: "/disconnect", CallbackData: "cmd_disconnect"}})
	}

	s.send(ctx, msg.ChatID, "📘 *Bot Commands:*\n\n"+
		"`/start` - Initialize the bot\n"+
		"`/connect` - Connect your account\n"+
		"`/viewTicket` - View your purchased tickets\n"+
		"`/profile` - View your user profile\n"+
		"`/fund` - Fund your wallet\n"+
		"`/credits` - View credits and project info\n"+
		"`/disconnect` - Disconnect your account\n"+
		"`/help` - Show this help message\n\n"+
		"💡 *Tip:* Click any command button below to execute it!", buttons)
	return nil
}

func (s *BotServiceImpl) cmdProfile(ctx context.Context, msg ports.InboundMessage) error {
	binding, account, err := s.boundAccountWithBinding(ctx, msg.ChatID)
	if err != nil {
		s.sendTryLater(ctx, msg.ChatID)
		return err
	}
	if account == nil {
		s.sendAuthRequired(ctx, msg.ChatID)
		return nil
	}

	s.send(ctx, msg.ChatID, "🔍 Just a moment...", nil)

	text := fmt.Sprintf("👤 *Profile Details:*\n🧑 Full Name: %s\n📧 Email: %s\n💬 Telegram: @%s\n||🆔 UID: %s||",
		orDefault(account.FullName, "N/A"), orDefault(account.Email, "N/A"), orDefault(binding.Username, "N/A"), account.ID)

	s.send(ctx, msg.ChatID, text, [][]ports.InlineButton{{
		{Text: "🌐 View Full Profile", URL: s.profileURL},
		{Text: "🔌 Disconnect", CallbackData: "confirm_disconnect"},
	}})
	return nil
}

func (s *BotServiceImpl) cmdCredits(ctx context.Context, msg ports.InboundMessage) error {
	s.send(ctx, msg.ChatID, "🎖 *Bot Credits*:\n👨‍💻 Dev: Drexx\n🧪 Tester: David\n💾 D.B.A: Alexis\n📆 Prod Year: 2025", nil)
	return nil
}

func (s *BotServiceImpl) cmdFund(ctx context.Context, msg ports.InboundMessage) error {
	account, err := s.boundAccount(ctx, msg.ChatID)
	if err != nil {
		s.sendTryLater(ctx, msg.ChatID)
		return err
	}
	if account == nil {
		s.sendAuthRequired(ctx, msg.ChatID)
		return nil
	}

	s.send(ctx, msg.ChatID, "💰 How much would you like to fund your wallet? (Enter amount in Naira)", nil)
	if err := s.convStore.SetExpectation(ctx, msg.ChatID, domain.ExpectFundAmount); err != nil {
		s.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("failed to set expectation")
	}
	return nil
}

func (s *BotServiceImpl) handleFundAmount(ctx context.Context, msg ports.InboundMessage) error {
	account, err := s.boundAccount(ctx, msg.ChatID)
	if err != nil {
		s.sendTryLater(ctx, msg.ChatID)
		return err
	}
	if account == nil {
		s.sendAuthRequired(ctx, msg.ChatID)
		return nil
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
	if err != nil || amount <= 0 {
		s.send(ctx, msg.ChatID, "⚠️ Please enter a valid amount.", nil)
		return nil
	}

	s.send(ctx, msg.ChatID, "🔎 Generating your payment link...", nil)

	link := s.fundingSvc.CreatePaymentLink(ctx, account.Email, amount, msg.ChatID, account.ID)
	if link == "" {
		s.send(ctx, msg.ChatID, "❌ Failed to create payment link. Try again later.", nil)
		return nil
	}

	s.send(ctx, msg.ChatID, "✅ Please complete your payment:\n\n"+link, nil)
	return nil
}

func (s *BotServiceImpl) cmdDisconnect(ctx context.Context, msg ports.InboundMessage) error {
	account, err := s.boundAccount(ctx, msg.ChatID)
	if err != nil {
		s.sendTryLater(ctx, msg.ChatID)
		return err
	}
	if account == nil {
		s.send(ctx, msg.ChatID, "❌ Your Telegram account is not connected to any profile.", nil)
		return nil
	}

	s.send(ctx, msg.ChatID,
		"🔌 *Disconnect Telegram Account*\n\nAre you sure you want to disconnect your Telegram account from your profile?\n\n⚠️ You will lose access to all bot features until you reconnect.",
		[][]ports.InlineButton{{
			{Text: "✅ Yes, Disconnect", CallbackData: "confirm_disconnect"},
			{Text: "❌ Cancel", CallbackData: "cancel_disconnect"},
		}})
	return nil
}

func (s *BotServiceImpl) confirmDisconnect(ctx context.Context, msg ports.InboundMessage) error {
	account, err := s.boundAccount(ctx, msg.ChatID)
	if err != nil {
		s.sendTryLater(ctx, msg.ChatID)
		return err
	}
	if account == nil {
		s.send(ctx, msg.ChatID, "❌ Your account is not connected.", nil)
		return nil
	}

	if err := s.bindingRepo.Delete(ctx, msg.ChatID); err != nil {
		s.send(ctx, msg.ChatID, "❌ Failed to disconnect account. Please try again.", nil)
		return err
	}

	s.send(ctx, msg.ChatID,
		"✅ *Disconnected Successfully*\n\nYour Telegram account has been disconnected from your profile.\n\nTo reconnect, visit your profile page and generate a new connection token.",
		[][]ports.InlineButton{{{Text: "🔗 Reconnect", URL: s.profileURL}}})

	s.log.Info().Str("chat_id", msg.ChatID).Str("account_id", account.ID).Msg("chat identity unbound")
	return nil
}

func (s *BotServiceImpl) sendTicketQR(ctx context.Context, msg ports.InboundMessage, ticketID string) error {
	account, err := s.boundAccount(ctx, msg.ChatID)
	if err != nil {
		s.sendTryLater(ctx, msg.ChatID)
		return err
	}
	if account == nil {
		s.sendAuthRequired(ctx, msg.ChatID)
		return nil
	}

	if ticketID == "" || ticketID == "Unavailable" {
		s.send(ctx, msg.ChatID, "❌ Ticket ID is missing.", nil)
		return nil
	}

	s.send(ctx, msg.ChatID, "🎨 Generating QR code...", nil)

	qrURL := "https://api.qrserver.com/v1/create-qr-code/?data=" + url.QueryEscape(ticketID) + "&size=300x300&color=107-47-165"
	if err := s.notifier.SendPhoto(ctx, msg.ChatID, qrURL); err != nil {
		s.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("QR photo delivery failed")
		s.send(ctx, msg.ChatID, "❌ Failed to generate QR code. Please try again.", nil)
	}
	return nil
}

// --- helpers ---

// boundAccount resolves the chat's account, distinguishing "not bound"
// (nil, nil) from a store failure. A lookup failure must never be treated
// as "not found".
func (s *BotServiceImpl) boundAccount(ctx context.Context, chatID string) (*domain.Account, error) {
	_, account, err := s.boundAccountWithBinding(ctx, chatID)
	return account, err
}

func (s *BotServiceImpl) boundAccountWithBinding(ctx context.Context, chatID string) (*domain.IdentityBinding, *domain.Account, error) {
	binding, err := s.bindingRepo.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, nil, apperror.ErrStorageUnavailable(fmt.Errorf("lookup binding: %w", err))
	}
	if binding == nil {
		return nil, nil, nil
	}
	account, err := s.accountRepo.GetByID(ctx, binding.AccountID)
	if err != nil {
		return nil, nil, apperror.ErrStorageUnavailable(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		// Binding points at a deleted account; treat as unbound.
		s.log.Warn().Str("chat_id", chatID).Str("account_id", binding.AccountID).Msg("binding references missing account")
		return nil, nil, nil
	}
	return binding, account, nil
}

func (s *BotServiceImpl) sendAuthRequired(ctx context.Context, chatID string) {
	s.send(ctx, chatID,
		"🔐 *Authentication Required*\n\nTo use this feature, you need to connect your Telegram account to your profile first.\n\n👆 Click the button below to go to your profile page and generate a connection token.",
		[][]ports.InlineButton{
			{{Text: "🔗 Go to Profile Page", URL: s.profileURL}},
			{{Text: "❓ Help", CallbackData: "show_commands"}},
		})
}

func (s *BotServiceImpl) sendTryLater(ctx context.Context, chatID string) {
	s.send(ctx, chatID, "⚠️ Something went wrong on our side. Please try again later.", nil)
}

// send delivers a message best-effort; delivery failures are logged, never
// propagated.
func (s *BotServiceImpl) send(ctx context.Context, chatID, text string, keyboard [][]ports.InlineButton) {
	if err := s.notifier.SendMessage(ctx, chatID, text, keyboard); err != nil {
		s.log.Warn().Err(err).Str("chat_id", chatID).Msg("message delivery failed")
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
