package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
	"github.com/mkazarin/accountgate/internal/infrastructure/metrics"
)

// FinalizationService commits the terminal verdict for a record exactly once.
// Racing callers are linearized by the guarded store update: whoever commits
// first performs the side effects, everyone else no-ops.
type FinalizationService struct {
	accounts  domain.AccountStore
	artifacts domain.ArtifactStore
	countries *domain.CountryDirectory
	forwarder *AuditForwarder
	vault     domain.ArtifactVault
	notifier  domain.Notifier
	events    domain.EventPublisher
	metrics   *metrics.Metrics
	audit     *config.AuditConfig
	logger    zerolog.Logger
}

// NewFinalizationService creates a finalization service
func NewFinalizationService(
	accounts domain.AccountStore,
	artifacts domain.ArtifactStore,
	countries *domain.CountryDirectory,
	forwarder *AuditForwarder,
	vault domain.ArtifactVault,
	notifier domain.Notifier,
	events domain.EventPublisher,
	m *metrics.Metrics,
	audit *config.AuditConfig,
	logger zerolog.Logger,
) *FinalizationService {
	return &FinalizationService{
		accounts:  accounts,
		artifacts: artifacts,
		countries: countries,
		forwarder: forwarder,
		vault:     vault,
		notifier:  notifier,
		events:    events,
		metrics:   m,
		audit:     audit,
		logger:    logger.With().Str("component", "finalizer").Logger(),
	}
}

// Finalize applies a verdict to the record identified by jobID. It is
// idempotent: calling it for a missing or already-terminal record does
// nothing and returns nil.
func (s *FinalizationService) Finalize(ctx context.Context, jobID string, status domain.Status, details string, prompt *domain.PromptRef) error {
	record, err := s.accounts.FindByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			s.logger.Warn().Str("job_id", jobID).Msg("finalize called for unknown record")
			return nil
		}
		return fmt.Errorf("failed to load record: %w", err)
	}
	if record.Status.Terminal() {
		s.metrics.FinalizationRaces.Inc()
		s.logger.Debug().
			Str("job_id", jobID).
			Str("status", string(record.Status)).
			Msg("record already terminal, skipping")
		return nil
	}

	country, ok := s.countries.Resolve(record.PhoneNumber)
	if !ok {
		// Country config changed after registration. Fall back to a
		// catch-all partition so the artifact is never orphaned.
		country = domain.CountryConfig{Name: "unknown"}
	}

	// A restricted verdict for a country that does not accept restricted
	// accounts is a policy rejection, not an acceptance: the record drops to
	// the error status and skips the audit archive.
	if status == domain.StatusRestricted && !country.AcceptRestricted {
		s.logger.Info().
			Str("job_id", jobID).
			Str("country", country.Name).
			Msg("restricted not accepted for country, rejecting by policy")
		status = domain.StatusError
		details = "Restricted accounts are not accepted for this country"
	}

	// The committed artifact_ref must point at the terminal partition, but
	// only the race winner may touch the filesystem: the ref is computed up
	// front and the physical move happens after the guarded commit.
	artifactRef := record.ArtifactRef
	if status.Terminal() && record.ArtifactRef != "" && s.artifacts.Exists(record.ArtifactRef) {
		dest, allocErr := s.artifacts.Allocate(country.Name, string(status), record.PhoneNumber)
		if allocErr != nil {
			s.logger.Error().Err(allocErr).Str("job_id", jobID).Msg("failed to allocate terminal partition")
		} else {
			artifactRef = dest
		}
	}

	committed, err := s.accounts.FinalizeIfNonTerminal(ctx, jobID, status, details, artifactRef)
	if err != nil {
		return fmt.Errorf("failed to commit verdict: %w", err)
	}
	if !committed {
		s.metrics.FinalizationRaces.Inc()
		s.logger.Info().Str("job_id", jobID).Msg("lost finalization race, another verdict won")
		return nil
	}

	if status.Terminal() && artifactRef != record.ArtifactRef {
		if _, moveErr := s.artifacts.Move(record.ArtifactRef, record.PhoneNumber, string(status), country.Name); moveErr != nil {
			s.logger.Error().Err(moveErr).Str("job_id", jobID).Msg("failed to relocate artifact")
		}
	}
	s.metrics.Finalizations.WithLabelValues(string(status)).Inc()
	record.Status = status
	record.StatusDetails = details
	record.ArtifactRef = artifactRef

	s.logger.Info().
		Str("job_id", jobID).
		Str("status", string(status)).
		Msg("record finalized")

	if status.Terminal() {
		s.postCommit(ctx, record, country)
	}

	s.notify(ctx, record, country, prompt)

	if err := s.events.AccountFinalized(ctx, domain.AccountEvent{
		JobID:     record.JobID,
		UserID:    record.UserID,
		Phone:     record.PhoneNumber,
		Status:    status,
		Details:   details,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish finalized event")
	}

	return nil
}

// Reclassify applies a re-verification verdict to a previously accepted
// record. An ok or error verdict leaves the record untouched; a downgrade is
// committed with the same guarded-write discipline as Finalize.
func (s *FinalizationService) Reclassify(ctx context.Context, jobID string, status domain.Status, details string) error {
	if status == domain.StatusOK || status == domain.StatusError {
		return nil
	}

	record, err := s.accounts.FindByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load record: %w", err)
	}

	country, ok := s.countries.Resolve(record.PhoneNumber)
	if !ok {
		country = domain.CountryConfig{Name: "unknown"}
	}
	if status == domain.StatusRestricted && !country.AcceptRestricted {
		// Policy rejection never retroactively revokes an acceptance.
		return nil
	}

	artifactRef := record.ArtifactRef
	if moved, moveErr := s.artifacts.Move(record.ArtifactRef, record.PhoneNumber, string(status), country.Name); moveErr != nil {
		s.logger.Error().Err(moveErr).Str("job_id", jobID).Msg("failed to relocate artifact")
	} else if moved != "" {
		artifactRef = moved
	}

	committed, err := s.accounts.ReclassifyIfOK(ctx, jobID, status, details, artifactRef)
	if err != nil {
		return fmt.Errorf("failed to commit reclassification: %w", err)
	}
	if !committed {
		s.metrics.FinalizationRaces.Inc()
		return nil
	}
	s.metrics.Finalizations.WithLabelValues(string(status)).Inc()
	record.Status = status
	record.StatusDetails = details
	record.ArtifactRef = artifactRef

	s.logger.Warn().
		Str("job_id", jobID).
		Str("status", string(status)).
		Msg("accepted record downgraded on re-verification")

	s.notify(ctx, record, country, nil)

	if err := s.events.AccountFinalized(ctx, domain.AccountEvent{
		JobID:     record.JobID,
		UserID:    record.UserID,
		Phone:     record.PhoneNumber,
		Status:    status,
		Details:   details,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish finalized event")
	}

	return nil
}

// postCommit runs the best-effort archival side effects of a terminal verdict
func (s *FinalizationService) postCommit(ctx context.Context, record *domain.AccountRecord, country domain.CountryConfig) {
	if s.audit.Enabled {
		if err := s.forwarder.Forward(ctx, record, country); err != nil {
			s.logger.Error().Err(err).Str("job_id", record.JobID).Msg("audit forwarding failed")
		}
	}

	if record.ArtifactRef != "" && s.artifacts.Exists(record.ArtifactRef) {
		data, err := s.artifacts.Read(record.ArtifactRef)
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", record.JobID).Msg("failed to read artifact for vault mirror")
			return
		}
		key := fmt.Sprintf("%s/%s/%s", domain.CountrySlug(country.Name), record.Status, filepath.Base(record.ArtifactRef))
		if err := s.vault.Mirror(ctx, key, data); err != nil {
			s.logger.Error().Err(err).Str("job_id", record.JobID).Msg("failed to mirror artifact to vault")
		}
	}
}

// notify tells the owner the outcome and clears any stale prompt affordance
func (s *FinalizationService) notify(ctx context.Context, record *domain.AccountRecord, country domain.CountryConfig, prompt *domain.PromptRef) {
	if prompt != nil {
		if err := s.notifier.ClearPromptAffordance(ctx, *prompt); err != nil {
			s.logger.Debug().Err(err).Msg("failed to clear prompt affordance")
		}
	}

	var text string
	switch record.Status {
	case domain.StatusOK:
		text = fmt.Sprintf("✅ Account +%s accepted! You earned $%.2f.", record.PhoneNumber, country.Price(domain.StatusOK))
	case domain.StatusRestricted:
		text = fmt.Sprintf("⚠️ Account +%s accepted with restrictions. You earned $%.2f.", record.PhoneNumber, country.Price(domain.StatusRestricted))
	case domain.StatusLimited:
		text = fmt.Sprintf("🚫 Account +%s is limited and was not accepted.", record.PhoneNumber)
	case domain.StatusBanned:
		text = fmt.Sprintf("⛔️ Account +%s is banned and was not accepted.", record.PhoneNumber)
	case domain.StatusError:
		text = fmt.Sprintf("❗ Account +%s could not be verified yet. It will be rechecked automatically.", record.PhoneNumber)
	default:
		return
	}

	if err := s.notifier.Notify(ctx, record.UserID, text); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", record.UserID).Msg("failed to notify owner")
	}
}
