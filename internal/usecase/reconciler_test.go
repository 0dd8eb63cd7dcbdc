package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

type reconcilerFixture struct {
	scheduler *ReconciliationScheduler
	finalizer *finalizerFixture
	factory   *mockClientFactory
	settings  *mockSettingsStore
	cfg       *config.SweepConfig
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	finalizer := newFinalizerFixture(t, false)
	factory := &mockClientFactory{clients: []*mockSessionClient{{
		authorized: true,
		verdict:    domain.Verdict{Status: domain.StatusOK, Details: "Account is free from limitations."},
	}}}
	settings := &mockSettingsStore{}
	cfg := &config.SweepConfig{
		Interval:            time.Minute,
		PendingGrace:        10 * time.Minute,
		RecheckInterval:     24 * time.Hour,
		MaxConcurrentJobs:   4,
		RevokeOtherSessions: true,
	}

	scheduler := NewReconciliationScheduler(
		finalizer.accounts, finalizer.artifacts, factory, settings,
		finalizer.service, finalizer.service.forwarder, cfg, testMetrics(), zerolog.Nop(),
	)

	return &reconcilerFixture{
		scheduler: scheduler,
		finalizer: finalizer,
		factory:   factory,
		settings:  settings,
		cfg:       cfg,
	}
}

func (f *reconcilerFixture) seedStuck(t *testing.T, jobID, phone string) {
	t.Helper()
	path, err := f.finalizer.artifacts.Allocate("USA", "new", phone)
	if err != nil {
		t.Fatalf("Failed to allocate artifact: %v", err)
	}
	f.finalizer.accounts.put(domain.AccountRecord{
		JobID:         jobID,
		UserID:        7,
		PhoneNumber:   phone,
		Status:        domain.StatusPendingConfirmation,
		ArtifactRef:   path,
		RegisteredAt:  time.Now().Add(-time.Hour),
		LastCheckedAt: time.Now().Add(-time.Hour),
	})
}

func (f *reconcilerFixture) seedAccepted(t *testing.T, jobID, phone string) {
	t.Helper()
	path, err := f.finalizer.artifacts.Allocate("USA", "ok", phone)
	if err != nil {
		t.Fatalf("Failed to allocate artifact: %v", err)
	}
	f.finalizer.accounts.put(domain.AccountRecord{
		JobID:         jobID,
		UserID:        7,
		PhoneNumber:   phone,
		Status:        domain.StatusOK,
		ArtifactRef:   path,
		RegisteredAt:  time.Now().Add(-48 * time.Hour),
		LastCheckedAt: time.Now().Add(-25 * time.Hour),
	})
}

func TestRunSweep_NothingEligibleIsNoop(t *testing.T) {
	f := newReconcilerFixture(t)

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Empty sweep failed: %v", err)
	}
	if f.factory.calls != 0 {
		t.Errorf("No clients should be built for an empty sweep, got %d", f.factory.calls)
	}
}

func TestRunSweep_FinalizesStuckPendingRecord(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seedStuck(t, "job-1", "15550100")

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	record := f.finalizer.accounts.get("job-1")
	if record.Status != domain.StatusOK {
		t.Errorf("Expected record finalized ok, got %s", record.Status)
	}
}

func TestRunSweep_FreshPendingRecordLeftAlone(t *testing.T) {
	f := newReconcilerFixture(t)
	path, _ := f.finalizer.artifacts.Allocate("USA", "new", "15550101")
	f.finalizer.accounts.put(domain.AccountRecord{
		JobID:         "job-fresh",
		PhoneNumber:   "15550101",
		Status:        domain.StatusPendingConfirmation,
		ArtifactRef:   path,
		RegisteredAt:  time.Now(),
		LastCheckedAt: time.Now(),
	})

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := f.finalizer.accounts.get("job-fresh").Status; got != domain.StatusPendingConfirmation {
		t.Errorf("Record inside the grace window must not be touched, got %s", got)
	}
}

func TestRunSweep_OneFailingJobDoesNotSinkTheOthers(t *testing.T) {
	f := newReconcilerFixture(t)
	good := &mockSessionClient{
		authorized: true,
		verdict:    domain.Verdict{Status: domain.StatusOK, Details: "ok"},
	}
	// Every odd build fails to connect
	f.factory.clients = []*mockSessionClient{
		good,
		{connectErr: context.DeadlineExceeded},
	}
	f.seedStuck(t, "job-a", "15550102")
	f.seedStuck(t, "job-b", "15550103")

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	statuses := map[domain.Status]int{}
	for _, id := range []string{"job-a", "job-b"} {
		statuses[f.finalizer.accounts.get(id).Status]++
	}
	if statuses[domain.StatusOK] != 1 {
		t.Errorf("Expected exactly one record finalized ok, got %v", statuses)
	}
	if statuses[domain.StatusError] != 1 {
		t.Errorf("Expected the failing job to resolve to error, got %v", statuses)
	}
}

func TestRunSweep_MissingArtifactStaysRetryable(t *testing.T) {
	f := newReconcilerFixture(t)
	f.finalizer.accounts.put(domain.AccountRecord{
		JobID:         "job-gone",
		PhoneNumber:   "15550104",
		Status:        domain.StatusPendingConfirmation,
		ArtifactRef:   "usa/new/15550104.session",
		RegisteredAt:  time.Now().Add(-time.Hour),
		LastCheckedAt: time.Now().Add(-time.Hour),
	})

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	record := f.finalizer.accounts.get("job-gone")
	if record.Status != domain.StatusError {
		t.Errorf("Missing artifact should resolve to a retryable error, got %s", record.Status)
	}
	if record.Status.Terminal() {
		t.Error("Record must stay eligible for later sweeps")
	}
	if f.factory.calls != 0 {
		t.Errorf("No client should be built without an artifact, got %d", f.factory.calls)
	}
}

func TestRunSweep_RevokedAuthorizationResolvesToBanned(t *testing.T) {
	f := newReconcilerFixture(t)
	f.factory.clients = []*mockSessionClient{{authorized: false}}
	f.seedStuck(t, "job-revoked", "15550105")

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := f.finalizer.accounts.get("job-revoked").Status; got != domain.StatusBanned {
		t.Errorf("Revoked authorization should resolve to banned, got %s", got)
	}
}

func TestRunSweep_ReverifyRevokesForeignSessions(t *testing.T) {
	f := newReconcilerFixture(t)
	client := &mockSessionClient{
		authorized: true,
		verdict:    domain.Verdict{Status: domain.StatusOK, Details: "ok"},
		sessions: []domain.RemoteSession{
			{Hash: 111, Device: "iPhone"},
			{Hash: 0, Current: true, Device: "this"},
		},
	}
	f.factory.clients = []*mockSessionClient{client}
	f.seedAccepted(t, "job-s", "15550106")

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(client.revoked) != 1 || client.revoked[0] != 111 {
		t.Errorf("Expected foreign session revoked, got %v", client.revoked)
	}
	if got := f.finalizer.accounts.get("job-s").Status; got != domain.StatusOK {
		t.Errorf("Expected ok after revocation, got %s", got)
	}
}

func TestRunSweep_InitialCheckLeavesForeignSessionsAlone(t *testing.T) {
	f := newReconcilerFixture(t)
	client := &mockSessionClient{
		authorized: true,
		verdict:    domain.Verdict{Status: domain.StatusOK, Details: "ok"},
		sessions:   []domain.RemoteSession{{Hash: 111, Device: "iPhone"}},
	}
	f.factory.clients = []*mockSessionClient{client}
	f.seedStuck(t, "job-first", "15550109")

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(client.revoked) != 0 {
		t.Errorf("A confirmation check must not revoke sessions, got %v", client.revoked)
	}
	if got := f.finalizer.accounts.get("job-first").Status; got != domain.StatusOK {
		t.Errorf("Expected ok despite foreign sessions, got %s", got)
	}
}

func TestRunSweep_UnrevokableSessionsParkTheRecord(t *testing.T) {
	f := newReconcilerFixture(t)
	client := &mockSessionClient{
		authorized: true,
		revokeErr:  context.DeadlineExceeded,
		sessions:   []domain.RemoteSession{{Hash: 111, Device: "iPhone"}},
	}
	f.factory.clients = []*mockSessionClient{client}
	f.seedAccepted(t, "job-park", "15550107")

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := f.finalizer.accounts.get("job-park").Status; got != domain.StatusPendingSessionTermination {
		t.Errorf("Expected pending_session_termination, got %s", got)
	}
}

func TestRunSweep_ReverifyDowngradesBlockedAccount(t *testing.T) {
	f := newReconcilerFixture(t)
	f.factory.clients = []*mockSessionClient{{
		authorized: true,
		verdict:    domain.Verdict{Status: domain.StatusBanned, Details: "Account is banned."},
	}}
	path, _ := f.finalizer.artifacts.Allocate("USA", "ok", "15550108")
	f.finalizer.accounts.put(domain.AccountRecord{
		JobID:         "job-rv",
		PhoneNumber:   "15550108",
		Status:        domain.StatusOK,
		ArtifactRef:   path,
		RegisteredAt:  time.Now().Add(-48 * time.Hour),
		LastCheckedAt: time.Now().Add(-25 * time.Hour),
	})

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := f.finalizer.accounts.get("job-rv").Status; got != domain.StatusBanned {
		t.Errorf("Expected banned after reverify, got %s", got)
	}
}

func TestRunSweep_OverlappingSweepCollapses(t *testing.T) {
	f := newReconcilerFixture(t)

	f.scheduler.mu.Lock()
	f.scheduler.sweeping = true
	f.scheduler.mu.Unlock()

	if err := f.scheduler.RunSweep(context.Background()); err != nil {
		t.Fatalf("Collapsed sweep returned error: %v", err)
	}
	if f.factory.calls != 0 {
		t.Errorf("Collapsed sweep must not run jobs, got %d", f.factory.calls)
	}
}
