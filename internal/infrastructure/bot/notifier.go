package bot

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/internal/domain"
)

// Notifier implements domain.Notifier over the bot API.
// A recipient who blocked the bot is not an error: the failure is logged
// and swallowed, never retried.
type Notifier struct {
	bot    *Bot
	logger zerolog.Logger
}

// NewNotifier creates a bot-backed notifier
func NewNotifier(b *Bot, logger zerolog.Logger) *Notifier {
	return &Notifier{
		bot:    b,
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify sends a status message to a user
func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	_, err := n.bot.Raw().SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: userID,
		Text:   text,
	})
	if err != nil {
		if isForbidden(err) {
			n.logger.Warn().Int64("user_id", userID).Msg("user has blocked the bot, dropping notification")
			return nil
		}
		return err
	}
	return nil
}

// ClearPromptAffordance strips the now-stale interactive markup from a prompt
func (n *Notifier) ClearPromptAffordance(ctx context.Context, prompt domain.PromptRef) error {
	_, err := n.bot.Raw().EditMessageReplyMarkup(ctx, &tgbot.EditMessageReplyMarkupParams{
		ChatID:    prompt.ChatID,
		MessageID: prompt.MessageID,
	})
	return err
}

func isForbidden(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "forbidden")
}

// Ensure Notifier implements domain.Notifier interface
var _ domain.Notifier = (*Notifier)(nil)
