package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle status of an account record
type Status string

const (
	StatusPendingConfirmation        Status = "pending_confirmation"
	StatusPendingSessionTermination  Status = "pending_session_termination"
	StatusOK                         Status = "ok"
	StatusRestricted                 Status = "restricted"
	StatusLimited                    Status = "limited"
	StatusBanned                     Status = "banned"
	StatusError                      Status = "error"
)

// Terminal reports whether the status is a terminal verdict.
// An error status is not terminal: errored records stay eligible
// for another finalization attempt.
func (s Status) Terminal() bool {
	switch s {
	case StatusOK, StatusRestricted, StatusLimited, StatusBanned:
		return true
	}
	return false
}

// NonTerminalStatuses are the statuses a record may be finalized from.
var NonTerminalStatuses = []Status{
	StatusPendingConfirmation,
	StatusPendingSessionTermination,
	StatusError,
}

// AccountRecord is the persistent lifecycle record of one submitted account
type AccountRecord struct {
	JobID         string
	UserID        int64
	PhoneNumber   string
	Status        Status
	ArtifactRef   string
	RegisteredAt  time.Time
	LastCheckedAt time.Time
	StatusDetails string
}

// User is the owner of submitted accounts
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// CredentialRecord is one API identity pair from the rotation pool
type CredentialRecord struct {
	APIID   int
	APIHash string
}

// ProxyEndpoint is a parsed transport proxy
type ProxyEndpoint struct {
	Host     string
	Port     int
	Username string
	Password string
}

// DeviceProfile describes the client fingerprint presented on connect
type DeviceProfile struct {
	DeviceModel   string
	SystemVersion string
	AppVersion    string
}

// CountryConfig is the per-country acceptance policy
type CountryConfig struct {
	Code             string
	Name             string
	Flag             string
	Capacity         int // -1 means unlimited
	AcceptRestricted bool
	PriceOK          float64
	PriceRestricted  float64
	ReviewTime       time.Duration
}

// Price returns the reward amount for a terminal status under this policy
func (c CountryConfig) Price(status Status) float64 {
	switch status {
	case StatusOK:
		return c.PriceOK
	case StatusRestricted:
		return c.PriceRestricted
	}
	return 0
}

// SubmitOutcome tags the result of a code submission
type SubmitOutcome int

const (
	SubmitSuccess SubmitOutcome = iota
	SubmitTwoFactorRequired
	SubmitCodeInvalid
	SubmitCodeExpired
	SubmitFailure
)

// SubmitResult is the tagged outcome of one handshake code exchange
type SubmitResult struct {
	Outcome SubmitOutcome
	Err     error // set for SubmitFailure
}

// Verdict is the resolved outcome of a classification conversation
type Verdict struct {
	Status  Status
	Details string
}

// RemoteSession identifies one live authorization on a remote account
type RemoteSession struct {
	Hash    int64
	Current bool
	Device  string
}

// PromptRef points at an interactive prompt message previously sent to a user
type PromptRef struct {
	ChatID    int64
	MessageID int
}

// BucketKey identifies an audit bucket by country and calendar day
type BucketKey struct {
	CountryName string
	CountryFlag string
	Day         time.Time
}

// CacheName returns the stable lookup name for the bucket cache
func (k BucketKey) CacheName() string {
	return fmt.Sprintf("%s (%s)", k.CountryName, k.Day.Format("02.01.2006"))
}

// Title returns the display title used when the bucket is created
func (k BucketKey) Title() string {
	flag := k.CountryFlag
	if flag == "" {
		flag = "🏳️"
	}
	return fmt.Sprintf("%s %s (%s)", flag, k.CountryName, k.Day.Format("02.01.2006"))
}

// AuditMetadata is the structured document uploaded next to a terminal artifact
type AuditMetadata struct {
	ArtifactName string `json:"session_file"`
	Phone        string `json:"phone"`
	RegisteredAt int64  `json:"register_time"`
	Status       Status `json:"status"`
}

// AccountEvent is published on account lifecycle transitions
type AccountEvent struct {
	JobID     string `json:"job_id"`
	UserID    int64  `json:"user_id"`
	Phone     string `json:"phone"`
	Status    Status `json:"status"`
	Details   string `json:"details,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewJobID builds the deterministic schedule correlation key for a record.
// It combines the owning user, the normalized phone and the creation epoch,
// so a scheduler restart rediscovers the same identity.
func NewJobID(userID int64, phone string, at time.Time) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return fmt.Sprintf("conf_%d_%s_%d", userID, digits, at.Unix())
}
