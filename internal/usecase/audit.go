package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/internal/domain"
	"github.com/mkazarin/accountgate/internal/infrastructure/metrics"
)

// AuditForwarder archives terminal session artifacts into per-country,
// per-day buckets in the external audit sink. Forwarding is best-effort:
// it logs failures and never blocks finalization.
type AuditForwarder struct {
	sink      domain.AuditSink
	cache     domain.BucketCache
	artifacts domain.ArtifactStore
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewAuditForwarder creates an audit forwarder
func NewAuditForwarder(
	sink domain.AuditSink,
	cache domain.BucketCache,
	artifacts domain.ArtifactStore,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AuditForwarder {
	return &AuditForwarder{
		sink:      sink,
		cache:     cache,
		artifacts: artifacts,
		metrics:   m,
		logger:    logger.With().Str("component", "audit_forwarder").Logger(),
	}
}

var statusCaptions = map[domain.Status]string{
	domain.StatusOK:         "✅ Free",
	domain.StatusRestricted: "⚠️ Register",
	domain.StatusLimited:    "🚫 Limit",
	domain.StatusBanned:     "⛔️ Banned",
}

// Forward uploads the artifact and its metadata document into the bucket for
// the record's country and registration day.
func (f *AuditForwarder) Forward(ctx context.Context, record *domain.AccountRecord, country domain.CountryConfig) error {
	if record.ArtifactRef == "" || !f.artifacts.Exists(record.ArtifactRef) {
		f.logger.Warn().
			Str("job_id", record.JobID).
			Msg("no artifact on disk, skipping audit forward")
		return nil
	}

	key := domain.BucketKey{
		CountryName: country.Name,
		CountryFlag: country.Flag,
		Day:         record.RegisteredAt,
	}

	bucketID, err := f.resolveBucket(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to resolve audit bucket: %w", err)
	}

	err = f.upload(ctx, bucketID, record)
	if errors.Is(err, domain.ErrBucketLost) {
		// The cached bucket was deleted remotely. Invalidate, recreate and
		// retry exactly once.
		f.logger.Warn().
			Str("bucket", key.CacheName()).
			Msg("cached audit bucket is gone, recreating")
		if cacheErr := f.cache.Delete(ctx, key.CacheName()); cacheErr != nil {
			f.logger.Error().Err(cacheErr).Msg("failed to invalidate bucket cache entry")
		}
		bucketID, err = f.resolveBucket(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to recreate audit bucket: %w", err)
		}
		err = f.upload(ctx, bucketID, record)
	}
	if err != nil {
		f.metrics.AuditUploadErrors.Inc()
		return err
	}

	f.metrics.AuditUploads.Inc()
	f.logger.Info().
		Str("job_id", record.JobID).
		Int("bucket_id", bucketID).
		Msg("artifact forwarded to audit archive")
	return nil
}

// CleanupStaleBuckets drops cache entries older than the cutoff so that the
// cache table does not grow unbounded.
func (f *AuditForwarder) CleanupStaleBuckets(ctx context.Context, cutoff time.Time) error {
	removed, err := f.cache.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean bucket cache: %w", err)
	}
	if removed > 0 {
		f.logger.Info().Int64("removed", removed).Msg("cleaned stale audit bucket cache entries")
	}
	return nil
}

func (f *AuditForwarder) resolveBucket(ctx context.Context, key domain.BucketKey) (int, error) {
	name := key.CacheName()
	if id, ok, err := f.cache.Lookup(ctx, name); err != nil {
		f.logger.Error().Err(err).Str("bucket", name).Msg("bucket cache lookup failed")
	} else if ok {
		return id, nil
	}

	id, err := f.sink.CreateBucket(ctx, key.Title())
	if err != nil {
		return 0, err
	}
	if err := f.cache.Store(ctx, name, id); err != nil {
		f.logger.Error().Err(err).Str("bucket", name).Msg("failed to cache bucket id")
	}
	return id, nil
}

func (f *AuditForwarder) upload(ctx context.Context, bucketID int, record *domain.AccountRecord) error {
	data, err := f.artifacts.Read(record.ArtifactRef)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	caption := statusCaptions[record.Status]
	if caption == "" {
		caption = string(record.Status)
	}
	caption = fmt.Sprintf("%s\n+%s", caption, strings.TrimPrefix(record.PhoneNumber, "+"))

	artifactName := filepath.Base(record.ArtifactRef)
	if err := f.sink.UploadDocument(ctx, bucketID, artifactName, data, caption); err != nil {
		return err
	}

	meta := domain.AuditMetadata{
		ArtifactName: artifactName,
		Phone:        record.PhoneNumber,
		RegisteredAt: record.RegisteredAt.Unix(),
		Status:       record.Status,
	}
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	metaName := strings.TrimPrefix(record.PhoneNumber, "+") + ".json"
	if err := f.sink.UploadDocument(ctx, bucketID, metaName, payload, ""); err != nil {
		// The artifact itself made it, so treat a metadata failure as
		// non-fatal for the bucket retry logic.
		if errors.Is(err, domain.ErrBucketLost) {
			return err
		}
		f.logger.Error().Err(err).Str("job_id", record.JobID).Msg("failed to upload audit metadata")
	}
	return nil
}
