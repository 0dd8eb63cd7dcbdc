// Package telegram contains Telegram delivery handlers
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/internal/domain"
	"github.com/mkazarin/accountgate/internal/usecase"
)

// Handlers contains Telegram command handlers
type Handlers struct {
	flows  *usecase.LoginFlowController
	logger zerolog.Logger
}

// NewHandlers creates new Telegram handlers
func NewHandlers(flows *usecase.LoginFlowController, logger zerolog.Logger) *Handlers {
	return &Handlers{
		flows:  flows,
		logger: logger.With().Str("component", "telegram_handlers").Logger(),
	}
}

// HandleStart handles the /start command
func (h *Handlers) HandleStart(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.reply(ctx, bot, update.Message.Chat.ID,
		"👋 Welcome! Send a phone number with its country code (for example +15551234567) to submit an account.\n\n"+
			"Use /help for the list of commands.")
}

// HandleHelp handles the /help command
func (h *Handlers) HandleHelp(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.reply(ctx, bot, update.Message.Chat.ID,
		"Available commands:\n"+
			"/start — how this works\n"+
			"/cancel — abort the submission in progress\n"+
			"/help — this message\n\n"+
			"To submit an account, send its phone number, then the confirmation code you receive.")
}

// HandleCancel handles the /cancel command
func (h *Handlers) HandleCancel(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if h.flows.Cancel(ctx, update.Message.From.ID) {
		h.reply(ctx, bot, update.Message.Chat.ID, "❌ Submission cancelled.")
		return
	}
	h.reply(ctx, bot, update.Message.Chat.ID, "Nothing to cancel.")
}

// HandleText routes free-form text: confirmation codes for users mid-handshake,
// phone numbers for everyone else.
func (h *Handlers) HandleText(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	if h.flows.HasActiveFlow(userID) && looksLikeCode(text) {
		h.handleCode(ctx, bot, chatID, userID, text)
		return
	}
	if looksLikePhone(text) {
		h.handlePhone(ctx, bot, chatID, update.Message.From, text)
		return
	}

	h.reply(ctx, bot, chatID, "🤖 Send a phone number to submit an account, or /help for the list of commands.")
}

func (h *Handlers) handlePhone(ctx context.Context, bot *tgbot.Bot, chatID int64, from *models.User, phone string) {
	acceptance, err := h.flows.BeginLogin(ctx, from.ID, from.Username, phone)
	if err != nil {
		h.reply(ctx, bot, chatID, beginErrorText(err))
		if !isUserFacing(err) {
			h.logger.Error().Err(err).Int64("user_id", from.ID).Msg("failed to begin login flow")
		}
		return
	}

	h.reply(ctx, bot, chatID, fmt.Sprintf(
		"📲 Code requested for %s %s.\n"+
			"Reward: $%.2f after a review of about %s.\n\n"+
			"Send the confirmation code you received. Use /cancel to abort.",
		acceptance.Country.Flag, acceptance.Country.Name,
		acceptance.PriceOK, acceptance.ReviewTime))
}

func (h *Handlers) handleCode(ctx context.Context, bot *tgbot.Bot, chatID, userID int64, code string) {
	record, acceptance, err := h.flows.SubmitCode(ctx, userID, code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCodeInvalid):
			h.reply(ctx, bot, chatID, "❌ That code is not correct. Try again or /cancel.")
		case errors.Is(err, domain.ErrCodeExpired):
			h.reply(ctx, bot, chatID, "⌛ That code has expired. Send the phone number again to request a new one.")
		case errors.Is(err, domain.ErrTwoFactorRequired):
			h.reply(ctx, bot, chatID, "🔐 This account has two-factor authentication enabled and cannot be accepted.")
		case errors.Is(err, domain.ErrStaleLoginFlow):
			h.reply(ctx, bot, chatID, "There is no submission in progress. Send a phone number first.")
		default:
			h.reply(ctx, bot, chatID, "⚠️ Something went wrong while signing in. Send the phone number again to retry.")
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("code submission failed")
		}
		return
	}

	h.reply(ctx, bot, chatID, fmt.Sprintf(
		"✅ Account +%s received! It will be reviewed within about %s, reward up to $%.2f.\n"+
			"You will be notified of the result.",
		record.PhoneNumber, acceptance.ReviewTime, acceptance.PriceOK))
}

func (h *Handlers) reply(ctx context.Context, bot *tgbot.Bot, chatID int64, text string) {
	if _, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		h.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send reply")
	}
}

func beginErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrCountryUnsupported):
		return "🌍 This country is not supported at the moment."
	case errors.Is(err, domain.ErrCountryAtCapacity):
		return "📦 This country is at full capacity right now, try again later."
	case errors.Is(err, domain.ErrPhoneExists):
		return "☝️ This phone number was already submitted."
	default:
		return "⚠️ Could not start the submission, please try again later."
	}
}

func isUserFacing(err error) bool {
	return errors.Is(err, domain.ErrCountryUnsupported) ||
		errors.Is(err, domain.ErrCountryAtCapacity) ||
		errors.Is(err, domain.ErrPhoneExists)
}

// looksLikePhone accepts international numbers with optional formatting noise
func looksLikePhone(text string) bool {
	digits := usecase.NormalizePhone(text)
	return len(digits) >= 7 && len(digits) <= 15
}

// looksLikeCode matches the short numeric one-time codes
func looksLikeCode(text string) bool {
	if len(text) < 4 || len(text) > 6 {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
