package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
	"github.com/mkazarin/accountgate/internal/infrastructure/metrics"
)

// settingProbeHandle is the settings key naming the classification probe peer
const settingProbeHandle = "probe_handle"

// defaultProbeHandle is used when no override is configured
const defaultProbeHandle = "SpamBot"

// bucketCacheRetention is how long stale bucket cache rows are kept around
const bucketCacheRetention = 48 * time.Hour

// ReconciliationScheduler periodically sweeps the record table for work:
// pending records past their grace window get their confirmation check, and
// accepted records past the re-verification window get re-examined. Jobs for
// the same record never overlap.
type ReconciliationScheduler struct {
	accounts  domain.AccountStore
	artifacts domain.ArtifactStore
	factory   domain.SessionClientFactory
	settings  domain.SettingsStore
	finalizer *FinalizationService
	forwarder *AuditForwarder
	cfg       *config.SweepConfig
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	sweeping bool
}

// NewReconciliationScheduler creates a reconciliation scheduler
func NewReconciliationScheduler(
	accounts domain.AccountStore,
	artifacts domain.ArtifactStore,
	factory domain.SessionClientFactory,
	settings domain.SettingsStore,
	finalizer *FinalizationService,
	forwarder *AuditForwarder,
	cfg *config.SweepConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		accounts:  accounts,
		artifacts: artifacts,
		factory:   factory,
		settings:  settings,
		finalizer: finalizer,
		forwarder: forwarder,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With().Str("component", "reconciler").Logger(),
		inFlight:  make(map[string]struct{}),
	}
}

// Run drives periodic sweeps until the context is cancelled
func (s *ReconciliationScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Msg("reconciliation scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reconciliation scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunSweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// RunSweep executes one full sweep. Concurrent invocations collapse: a sweep
// started while another is running returns immediately.
func (s *ReconciliationScheduler) RunSweep(ctx context.Context) error {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Debug().Msg("sweep already in progress, skipping")
		return nil
	}
	s.sweeping = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	sweepID := uuid.New().String()[:8]
	started := time.Now()
	s.metrics.SweepsTotal.Inc()
	logger := s.logger.With().Str("sweep_id", sweepID).Logger()

	now := time.Now()
	pending, err := s.accounts.StuckPending(ctx, now.Add(-s.cfg.PendingGrace))
	if err != nil {
		return fmt.Errorf("failed to select pending records: %w", err)
	}
	reverify, err := s.accounts.ReverifyDue(ctx, now.Add(-s.cfg.RecheckInterval))
	if err != nil {
		return fmt.Errorf("failed to select re-verification records: %w", err)
	}

	jobs := s.claim(pending, reverify)
	if len(jobs) == 0 {
		logger.Debug().Msg("nothing eligible, sweep is a no-op")
		s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
		return nil
	}

	logger.Info().
		Int("pending", len(pending)).
		Int("reverify", len(reverify)).
		Int("claimed", len(jobs)).
		Msg("sweep starting jobs")

	// Bounded fan-out: at most MaxConcurrentJobs records in flight
	semaphore := make(chan struct{}, s.cfg.MaxConcurrentJobs)
	var wg sync.WaitGroup
	for i := range jobs {
		record := jobs[i]
		wg.Add(1)
		semaphore <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()
			defer s.release(record.JobID)
			s.runJob(ctx, logger, record)
		}()
	}
	wg.Wait()

	if err := s.forwarder.CleanupStaleBuckets(ctx, now.Add(-bucketCacheRetention)); err != nil {
		logger.Error().Err(err).Msg("bucket cache cleanup failed")
	}

	s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	logger.Info().Dur("elapsed", time.Since(started)).Msg("sweep finished")
	return nil
}

// claim deduplicates the candidate sets by job identity and marks each
// claimed record in flight so overlapping sweeps never double-process.
func (s *ReconciliationScheduler) claim(sets ...[]domain.AccountRecord) []domain.AccountRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []domain.AccountRecord
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, record := range set {
			if _, dup := seen[record.JobID]; dup {
				continue
			}
			if _, busy := s.inFlight[record.JobID]; busy {
				continue
			}
			seen[record.JobID] = struct{}{}
			s.inFlight[record.JobID] = struct{}{}
			claimed = append(claimed, record)
		}
	}
	return claimed
}

func (s *ReconciliationScheduler) release(jobID string) {
	s.mu.Lock()
	delete(s.inFlight, jobID)
	s.mu.Unlock()
}

// runJob examines one record end to end. A panicking or failing job resolves
// to an error verdict instead of taking the sweep down with it.
func (s *ReconciliationScheduler) runJob(ctx context.Context, logger zerolog.Logger, record domain.AccountRecord) {
	reverify := record.Status == domain.StatusOK
	kind := "check"
	if reverify {
		kind = "reverify"
	}
	s.metrics.SweepJobs.WithLabelValues(kind).Inc()
	logger = logger.With().Str("job_id", record.JobID).Str("kind", kind).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("job panicked")
			s.resolve(ctx, logger, record, domain.Verdict{
				Status:  domain.StatusError,
				Details: fmt.Sprintf("Exception during check: %v", r),
			})
		}
	}()

	verdict := s.examine(ctx, logger, record, reverify)
	s.resolve(ctx, logger, record, verdict)
}

// examine reconnects from the session artifact and classifies the account.
// Re-verification jobs additionally revoke foreign sessions first; initial
// confirmation checks never do.
func (s *ReconciliationScheduler) examine(ctx context.Context, logger zerolog.Logger, record domain.AccountRecord, reverify bool) domain.Verdict {
	if record.ArtifactRef == "" || !s.artifacts.Exists(record.ArtifactRef) {
		// The artifact may reappear (shared storage lag), so this stays a
		// retryable error rather than a terminal verdict.
		return domain.Verdict{
			Status:  domain.StatusError,
			Details: "Session artifact is missing",
		}
	}

	client, err := s.factory.New(ctx, record.ArtifactRef)
	if err != nil {
		return domain.Verdict{
			Status:  domain.StatusError,
			Details: fmt.Sprintf("Exception during check: %v", err),
		}
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to disconnect job client")
		}
	}()

	if err := client.Connect(ctx); err != nil {
		return domain.Verdict{
			Status:  domain.StatusError,
			Details: fmt.Sprintf("Exception during check: %v", err),
		}
	}

	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		return domain.Verdict{
			Status:  domain.StatusError,
			Details: fmt.Sprintf("Exception during check: %v", err),
		}
	}
	if !authorized {
		return domain.Verdict{
			Status:  domain.StatusBanned,
			Details: "Authorization was revoked",
		}
	}

	if reverify && s.cfg.RevokeOtherSessions {
		if done := s.terminateOthers(ctx, logger, client); !done {
			return domain.Verdict{
				Status:  domain.StatusPendingSessionTermination,
				Details: "Waiting for other sessions to terminate",
			}
		}
	}

	return client.Classify(ctx, s.probeHandle(ctx))
}

// terminateOthers revokes every foreign authorization on the account.
// It reports whether the account ended up with only the current session.
func (s *ReconciliationScheduler) terminateOthers(ctx context.Context, logger zerolog.Logger, client domain.SessionClient) bool {
	sessions, err := client.OtherSessions(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list other sessions")
		return false
	}
	if len(sessions) == 0 {
		return true
	}

	remaining := 0
	for _, session := range sessions {
		if session.Current {
			continue
		}
		if err := client.RevokeSession(ctx, session.Hash); err != nil {
			logger.Warn().Err(err).Str("device", session.Device).Msg("failed to revoke session")
			remaining++
		}
	}
	return remaining == 0
}

func (s *ReconciliationScheduler) resolve(ctx context.Context, logger zerolog.Logger, record domain.AccountRecord, verdict domain.Verdict) {
	var err error
	if record.Status == domain.StatusOK {
		err = s.finalizer.Reclassify(ctx, record.JobID, verdict.Status, verdict.Details)
	} else {
		err = s.finalizer.Finalize(ctx, record.JobID, verdict.Status, verdict.Details, nil)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve job verdict")
		return
	}
	if err := s.accounts.TouchChecked(ctx, record.JobID, time.Now()); err != nil {
		logger.Warn().Err(err).Msg("failed to touch record")
	}
}

func (s *ReconciliationScheduler) probeHandle(ctx context.Context) string {
	if handle, err := s.settings.Get(ctx, settingProbeHandle); err == nil && handle != "" {
		return handle
	}
	return defaultProbeHandle
}
