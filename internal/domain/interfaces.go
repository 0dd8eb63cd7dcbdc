package domain

import (
	"context"
	"time"
)

// AccountStore is the persistent table of account lifecycle records.
// It is the single source of truth for record status.
type AccountStore interface {
	Create(ctx context.Context, record *AccountRecord) error
	FindByJobID(ctx context.Context, jobID string) (*AccountRecord, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	CountByCountryCode(ctx context.Context, code string) (int64, error)

	// FinalizeIfNonTerminal commits status, details and the new artifact ref
	// in one guarded write. It returns false when the record was already in a
	// terminal status, which linearizes racing finalization attempts.
	FinalizeIfNonTerminal(ctx context.Context, jobID string, status Status, details, artifactRef string) (bool, error)

	// ReclassifyIfOK downgrades a previously accepted record in one guarded
	// write. It returns false when the record is no longer in the ok status.
	ReclassifyIfOK(ctx context.Context, jobID string, status Status, details, artifactRef string) (bool, error)

	// StuckPending returns non-terminal records last examined before olderThan
	StuckPending(ctx context.Context, olderThan time.Time) ([]AccountRecord, error)
	ReverifyDue(ctx context.Context, checkedBefore time.Time) ([]AccountRecord, error)
	TouchChecked(ctx context.Context, jobID string, at time.Time) error
}

// UserStore keeps track of account owners
type UserStore interface {
	GetOrCreate(ctx context.Context, id int64, username string) (*User, error)
	Find(ctx context.Context, id int64) (*User, error)
}

// CredentialStore is the read-only source of the API identity rotation pool
type CredentialStore interface {
	All(ctx context.Context) ([]CredentialRecord, error)
}

// ProxyStore returns raw proxy pool entries in host:port[:user:pass] form.
// Parsing is the selector's concern: malformed entries must degrade, not fail.
type ProxyStore interface {
	All(ctx context.Context) ([]string, error)
}

// CredentialRotator hands out the API identity pair for each new connection,
// falling back to a fixed default when the pool is empty.
type CredentialRotator interface {
	Next(ctx context.Context) (CredentialRecord, error)
}

// ProxySelector picks a transport proxy for each new connection.
// A nil endpoint means connect directly.
type ProxySelector interface {
	Next(ctx context.Context) (*ProxyEndpoint, error)
}

// CountryStore loads the country acceptance policies
type CountryStore interface {
	All(ctx context.Context) ([]CountryConfig, error)
}

// SettingsStore is the string key/value table of runtime-tunable parameters
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// BucketCache caches external audit bucket identifiers by name
type BucketCache interface {
	Lookup(ctx context.Context, name string) (int, bool, error)
	Store(ctx context.Context, name string, bucketID int) error
	Delete(ctx context.Context, name string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionClient wraps one outbound remote connection built from a rotated
// identity/proxy pair. Disconnect is safe to call multiple times.
type SessionClient interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsAuthorized(ctx context.Context) (bool, error)

	// RequestCode asks the remote side to deliver a one-time code and returns
	// the token required to submit it.
	RequestCode(ctx context.Context, phone string) (string, error)
	SubmitCode(ctx context.Context, phone, code, codeRequestToken string) SubmitResult

	// Classify runs the scripted probe conversation. It never fails the job:
	// any transport or protocol error resolves to a StatusError verdict.
	Classify(ctx context.Context, probeHandle string) Verdict

	OtherSessions(ctx context.Context) ([]RemoteSession, error)
	RevokeSession(ctx context.Context, hash int64) error
}

// SessionClientFactory builds a SessionClient bound to a session artifact path
type SessionClientFactory interface {
	New(ctx context.Context, artifactPath string) (SessionClient, error)
}

// ArtifactStore owns on-disk placement of session artifacts,
// partitioned by country and status.
type ArtifactStore interface {
	Allocate(countryName, status, phone string) (string, error)

	// Move relocates an artifact into the country/status partition and returns
	// the new path. A missing source is a no-op returning an empty path.
	Move(oldPath, phone, newStatus, countryName string) (string, error)

	Remove(path string) error
	Exists(path string) bool
	Read(path string) ([]byte, error)
}

// Notifier delivers user-facing messages through the excluded messaging layer.
// Both operations are best-effort: a blocked recipient is not an error.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
	ClearPromptAffordance(ctx context.Context, prompt PromptRef) error
}

// AuditSink is the external archive the forwarder uploads into.
// UploadDocument returns ErrBucketLost when the bucket disappeared remotely.
type AuditSink interface {
	CreateBucket(ctx context.Context, title string) (int, error)
	UploadDocument(ctx context.Context, bucketID int, filename string, data []byte, caption string) error
}

// ArtifactVault mirrors terminal artifacts into object storage, best-effort
type ArtifactVault interface {
	Mirror(ctx context.Context, objectKey string, data []byte) error
}

// EventPublisher emits account lifecycle events
type EventPublisher interface {
	AccountRegistered(ctx context.Context, event AccountEvent) error
	AccountFinalized(ctx context.Context, event AccountEvent) error
}
