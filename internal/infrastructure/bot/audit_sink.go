package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

// AuditSink implements domain.AuditSink over forum topics in the audit channel.
// Each bucket is one topic; documents are posted into its thread.
type AuditSink struct {
	bot       *Bot
	channelID int64
	logger    zerolog.Logger
}

// NewAuditSink creates a bot-backed audit sink
func NewAuditSink(b *Bot, cfg *config.AuditConfig, logger zerolog.Logger) *AuditSink {
	return &AuditSink{
		bot:       b,
		channelID: cfg.ChannelID,
		logger:    logger.With().Str("component", "audit_sink").Logger(),
	}
}

// CreateBucket creates a forum topic and returns its thread id
func (s *AuditSink) CreateBucket(ctx context.Context, title string) (int, error) {
	topic, err := s.bot.Raw().CreateForumTopic(ctx, &tgbot.CreateForumTopicParams{
		ChatID: s.channelID,
		Name:   title,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create audit bucket %q: %w", title, err)
	}
	s.logger.Info().Str("title", title).Int("bucket_id", topic.MessageThreadID).Msg("created audit bucket")
	return topic.MessageThreadID, nil
}

// UploadDocument posts a document into a bucket thread.
// A remotely deleted topic surfaces as domain.ErrBucketLost so the forwarder
// can invalidate its cache and recreate the bucket.
func (s *AuditSink) UploadDocument(ctx context.Context, bucketID int, filename string, data []byte, caption string) error {
	_, err := s.bot.Raw().SendDocument(ctx, &tgbot.SendDocumentParams{
		ChatID:          s.channelID,
		MessageThreadID: bucketID,
		Document: &models.InputFileUpload{
			Filename: filename,
			Data:     bytes.NewReader(data),
		},
		Caption: caption,
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "message thread not found") {
			return domain.ErrBucketLost
		}
		return fmt.Errorf("failed to upload %s to bucket %d: %w", filename, bucketID, err)
	}
	return nil
}

// Ensure AuditSink implements domain.AuditSink interface
var _ domain.AuditSink = (*AuditSink)(nil)
