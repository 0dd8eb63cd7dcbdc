package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/internal/domain"
	"github.com/mkazarin/accountgate/internal/infrastructure/metrics"
)

// flowState is one user's in-progress login handshake
type flowState struct {
	phone        string
	country      domain.CountryConfig
	artifactPath string
	codeToken    string
	client       domain.SessionClient
	startedAt    time.Time
}

// LoginFlowController drives the interactive login handshake. At most one
// flow exists per user: starting a new one releases the previous flow's
// connection and artifact first.
type LoginFlowController struct {
	accounts  domain.AccountStore
	users     domain.UserStore
	artifacts domain.ArtifactStore
	factory   domain.SessionClientFactory
	countries *domain.CountryDirectory
	events    domain.EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu    sync.Mutex
	flows map[int64]*flowState
}

// NewLoginFlowController creates a login flow controller
func NewLoginFlowController(
	accounts domain.AccountStore,
	users domain.UserStore,
	artifacts domain.ArtifactStore,
	factory domain.SessionClientFactory,
	countries *domain.CountryDirectory,
	events domain.EventPublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *LoginFlowController {
	return &LoginFlowController{
		accounts:  accounts,
		users:     users,
		artifacts: artifacts,
		factory:   factory,
		countries: countries,
		events:    events,
		metrics:   m,
		logger:    logger.With().Str("component", "login_flow").Logger(),
		flows:     make(map[int64]*flowState),
	}
}

// Acceptance describes the policy terms echoed back on a successful begin
type Acceptance struct {
	Country    domain.CountryConfig
	PriceOK    float64
	ReviewTime time.Duration
}

// NormalizePhone strips formatting noise and the leading plus from user input
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BeginLogin validates the phone against the acceptance policy, opens a fresh
// connection and requests a one-time code. On every error path the allocated
// connection and artifact are released.
func (c *LoginFlowController) BeginLogin(ctx context.Context, userID int64, username, rawPhone string) (*Acceptance, error) {
	c.metrics.LoginAttempts.Inc()

	phone := NormalizePhone(rawPhone)
	if phone == "" {
		c.metrics.LoginRejections.WithLabelValues("invalid_phone").Inc()
		return nil, domain.ErrCountryUnsupported
	}

	country, ok := c.countries.Resolve(phone)
	if !ok {
		c.metrics.LoginRejections.WithLabelValues("unsupported_country").Inc()
		return nil, domain.ErrCountryUnsupported
	}

	exists, err := c.accounts.PhoneExists(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check phone uniqueness: %w", err)
	}
	if exists {
		c.metrics.LoginRejections.WithLabelValues("duplicate_phone").Inc()
		return nil, domain.ErrPhoneExists
	}

	if country.Capacity >= 0 {
		count, err := c.accounts.CountByCountryCode(ctx, country.Code)
		if err != nil {
			return nil, fmt.Errorf("failed to check country capacity: %w", err)
		}
		if count >= int64(country.Capacity) {
			c.metrics.LoginRejections.WithLabelValues("country_full").Inc()
			return nil, domain.ErrCountryAtCapacity
		}
	}

	if _, err := c.users.GetOrCreate(ctx, userID, username); err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	// A user starting over abandons any previous flow
	c.releaseFlow(ctx, userID, false)

	artifactPath, err := c.artifacts.Allocate(country.Name, "new", phone)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate session artifact: %w", err)
	}

	client, err := c.factory.New(ctx, artifactPath)
	if err != nil {
		_ = c.artifacts.Remove(artifactPath)
		return nil, fmt.Errorf("failed to build session client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		_ = c.artifacts.Remove(artifactPath)
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	codeToken, err := client.RequestCode(ctx, phone)
	if err != nil {
		_ = client.Disconnect(ctx)
		_ = c.artifacts.Remove(artifactPath)
		return nil, fmt.Errorf("failed to request confirmation code: %w", err)
	}

	c.mu.Lock()
	c.flows[userID] = &flowState{
		phone:        phone,
		country:      country,
		artifactPath: artifactPath,
		codeToken:    codeToken,
		client:       client,
		startedAt:    time.Now(),
	}
	c.mu.Unlock()

	c.logger.Info().
		Int64("user_id", userID).
		Str("country", country.Name).
		Msg("login flow started, code requested")

	return &Acceptance{
		Country:    country,
		PriceOK:    country.PriceOK,
		ReviewTime: country.ReviewTime,
	}, nil
}

// SubmitCode exchanges the one-time code. An invalid or expired code keeps
// the flow alive for another attempt; success and hard failures end it. On
// success the country's acceptance terms are returned alongside the record.
func (c *LoginFlowController) SubmitCode(ctx context.Context, userID int64, code string) (*domain.AccountRecord, *Acceptance, error) {
	c.mu.Lock()
	flow, ok := c.flows[userID]
	c.mu.Unlock()
	if !ok {
		return nil, nil, domain.ErrStaleLoginFlow
	}

	result := flow.client.SubmitCode(ctx, flow.phone, strings.TrimSpace(code), flow.codeToken)
	switch result.Outcome {
	case domain.SubmitCodeInvalid:
		return nil, nil, domain.ErrCodeInvalid
	case domain.SubmitCodeExpired:
		return nil, nil, domain.ErrCodeExpired
	case domain.SubmitTwoFactorRequired:
		c.releaseFlow(ctx, userID, false)
		return nil, nil, domain.ErrTwoFactorRequired
	case domain.SubmitFailure:
		c.releaseFlow(ctx, userID, false)
		if result.Err != nil {
			return nil, nil, fmt.Errorf("code submission failed: %w", result.Err)
		}
		return nil, nil, fmt.Errorf("code submission failed")
	}

	now := time.Now()
	record := &domain.AccountRecord{
		JobID:        domain.NewJobID(userID, flow.phone, now),
		UserID:       userID,
		PhoneNumber:  flow.phone,
		Status:       domain.StatusPendingConfirmation,
		ArtifactRef:  flow.artifactPath,
		RegisteredAt: now,
	}
	if err := c.accounts.Create(ctx, record); err != nil {
		c.releaseFlow(ctx, userID, false)
		return nil, nil, fmt.Errorf("failed to create account record: %w", err)
	}

	// The session artifact survives: the reconciliation sweep reconnects
	// from it to run the confirmation check.
	c.releaseFlow(ctx, userID, true)
	c.metrics.LoginSuccesses.Inc()

	if err := c.events.AccountRegistered(ctx, domain.AccountEvent{
		JobID:     record.JobID,
		UserID:    userID,
		Phone:     flow.phone,
		Status:    record.Status,
		Timestamp: now.Unix(),
	}); err != nil {
		c.logger.Error().Err(err).Str("job_id", record.JobID).Msg("failed to publish registered event")
	}

	c.logger.Info().
		Int64("user_id", userID).
		Str("job_id", record.JobID).
		Msg("login handshake completed, record pending confirmation")

	return record, &Acceptance{
		Country:    flow.country,
		PriceOK:    flow.country.PriceOK,
		ReviewTime: flow.country.ReviewTime,
	}, nil
}

// Cancel aborts the user's active flow, if any
func (c *LoginFlowController) Cancel(ctx context.Context, userID int64) bool {
	return c.releaseFlow(ctx, userID, false)
}

// HasActiveFlow reports whether the user is mid-handshake
func (c *LoginFlowController) HasActiveFlow(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.flows[userID]
	return ok
}

// releaseFlow disconnects and forgets the user's flow. When the handshake
// did not succeed the allocated artifact is removed as well. Safe to call
// for users with no active flow.
func (c *LoginFlowController) releaseFlow(ctx context.Context, userID int64, succeeded bool) bool {
	c.mu.Lock()
	flow, ok := c.flows[userID]
	delete(c.flows, userID)
	c.mu.Unlock()
	if !ok {
		return false
	}

	if err := flow.client.Disconnect(ctx); err != nil {
		c.logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to disconnect flow client")
	}
	if !succeeded {
		if err := c.artifacts.Remove(flow.artifactPath); err != nil {
			c.logger.Warn().Err(err).Str("path", flow.artifactPath).Msg("failed to remove abandoned artifact")
		}
	}
	return true
}
