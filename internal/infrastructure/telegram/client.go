package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/mkazarin/accountgate/internal/domain"
)

// MTProtoClient implements domain.SessionClient using the gotd/td library.
// Each instance is built per job from a rotated credential/proxy pair and a
// random device profile, with the session artifact as its session storage.
type MTProtoClient struct {
	client *telegram.Client

	apiID   int
	apiHash string
	device  domain.DeviceProfile
	proxy   *domain.ProxyEndpoint

	artifactPath string

	connected     bool
	disconnecting bool
	mu            sync.RWMutex
	cancelFunc    context.CancelFunc
	runDone       chan struct{} // Signals when client.Run() completes

	logger zerolog.Logger

	// API client for making requests
	api *tg.Client

	rateLimiter *rate.Limiter

	rules        []domain.ClassificationRule
	probeTimeout time.Duration
}

// ClientConfig holds configuration for MTProtoClient
type ClientConfig struct {
	APIID        int
	APIHash      string
	ArtifactPath string
	Device       domain.DeviceProfile
	Proxy        *domain.ProxyEndpoint
	Rules        []domain.ClassificationRule
	ProbeTimeout time.Duration
	Logger       zerolog.Logger
}

// maskPhoneNumber masks phone number for logging (keeps first 2 and last 2 digits)
func maskPhoneNumber(phone string) string {
	if len(phone) < 4 {
		return "***"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}

// NewMTProtoClient creates a new MTProto client instance
func NewMTProtoClient(cfg ClientConfig) (*MTProtoClient, error) {
	if cfg.APIID == 0 {
		return nil, fmt.Errorf("APIID is required")
	}
	if cfg.APIHash == "" {
		return nil, fmt.Errorf("APIHash is required")
	}
	if cfg.ArtifactPath == "" {
		return nil, fmt.Errorf("ArtifactPath is required")
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = domain.DefaultClassificationRules()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}

	return &MTProtoClient{
		apiID:        cfg.APIID,
		apiHash:      cfg.APIHash,
		device:       cfg.Device,
		proxy:        cfg.Proxy,
		artifactPath: cfg.ArtifactPath,
		rules:        cfg.Rules,
		probeTimeout: cfg.ProbeTimeout,
		logger:       cfg.Logger.With().Str("component", "mtproto_client").Logger(),
		rateLimiter:  rate.NewLimiter(rate.Every(time.Second), 10), // 10 requests per second
	}, nil
}

// resolver builds the DC resolver, routing through SOCKS5 when a proxy is set
func (c *MTProtoClient) resolver() (dcs.Resolver, error) {
	if c.proxy == nil {
		return dcs.Plain(dcs.PlainOptions{}), nil
	}

	var auth *proxy.Auth
	if c.proxy.Username != "" {
		auth = &proxy.Auth{User: c.proxy.Username, Password: c.proxy.Password}
	}
	dialer, err := proxy.SOCKS5("tcp", fmt.Sprintf("%s:%d", c.proxy.Host, c.proxy.Port), auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to build proxy dialer: %w", err)
	}

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return dialer.Dial(network, addr)
	}
	return dcs.Plain(dcs.PlainOptions{Dial: dial}), nil
}

// Connect establishes the MTProto connection without authenticating.
// The caller should provide a context with timeout to prevent indefinite hanging.
func (c *MTProtoClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		c.logger.Debug().Msg("already connected")
		return nil
	}
	if c.disconnecting {
		c.mu.Unlock()
		return fmt.Errorf("disconnect in progress, cannot connect")
	}
	// The lock is held for the whole connection attempt to keep concurrent
	// Connect calls out. The run callback below therefore writes the
	// connection fields without taking the lock: nothing else can touch
	// them until Connect returns.
	defer c.mu.Unlock()

	resolver, err := c.resolver()
	if err != nil {
		return err
	}

	client := telegram.NewClient(c.apiID, c.apiHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.artifactPath},
		Resolver:       resolver,
		Device: telegram.DeviceConfig{
			DeviceModel:   c.device.DeviceModel,
			SystemVersion: c.device.SystemVersion,
			AppVersion:    c.device.AppVersion,
		},
	})

	clientCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	readyChan := make(chan struct{})
	errChan := make(chan error, 1)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		err := client.Run(clientCtx, func(ctx context.Context) error {
			c.api = client.API()
			c.connected = true
			close(readyChan)

			// Keep connection alive until disconnect
			<-ctx.Done()
			return ctx.Err()
		})
		select {
		case errChan <- err:
		default:
		}
	}()

	select {
	case <-readyChan:
		c.client = client
		c.cancelFunc = cancel
		c.runDone = runDone
		c.logger.Debug().Msg("connected")
		return nil
	case err := <-errChan:
		cancel()
		<-runDone
		c.api = nil
		c.connected = false
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return fmt.Errorf("connection closed before becoming ready")
	case <-ctx.Done():
		cancel()
		// Wait the run goroutine out so a late ready cannot leak state
		// past this failure.
		<-runDone
		c.api = nil
		c.connected = false
		return ctx.Err()
	}
}

// Disconnect tears down the connection. Safe to call multiple times.
func (c *MTProtoClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.disconnecting {
		c.mu.Unlock()
		c.logger.Debug().Msg("disconnect already in progress")
		return nil
	}
	if !c.connected {
		c.mu.Unlock()
		c.logger.Debug().Msg("already disconnected")
		return nil
	}
	c.disconnecting = true
	cancelFunc := c.cancelFunc
	runDone := c.runDone
	c.mu.Unlock()

	if cancelFunc != nil {
		cancelFunc()
		if runDone != nil {
			select {
			case <-runDone:
			case <-ctx.Done():
				c.logger.Warn().Msg("disconnect timeout reached while waiting for client shutdown")
			}
		}
	}

	c.mu.Lock()
	c.client = nil
	c.api = nil
	c.connected = false
	c.cancelFunc = nil
	c.runDone = nil
	c.disconnecting = false
	c.mu.Unlock()

	c.logger.Debug().Msg("disconnected")
	return nil
}

// IsConnected checks if the client is connected
func (c *MTProtoClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MTProtoClient) authClient() (*telegram.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.client == nil {
		return nil, domain.ErrNotConnected
	}
	return c.client, nil
}

func (c *MTProtoClient) apiClient() (*tg.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.api == nil {
		return nil, domain.ErrNotConnected
	}
	return c.api, nil
}

// IsAuthorized checks the remote authorization state of the session
func (c *MTProtoClient) IsAuthorized(ctx context.Context) (bool, error) {
	client, err := c.authClient()
	if err != nil {
		return false, err
	}
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check auth status: %w", err)
	}
	return status.Authorized, nil
}

// RequestCode asks for a one-time login code and returns the submission token
func (c *MTProtoClient) RequestCode(ctx context.Context, phone string) (string, error) {
	client, err := c.authClient()
	if err != nil {
		return "", err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	c.logger.Info().Str("phone", maskPhoneNumber(phone)).Msg("requesting login code")

	sent, err := client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to request code: %w", err)
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code response %T", sent)
	}
	return code.PhoneCodeHash, nil
}

// SubmitCode exchanges the one-time code for an authorized session and tags
// the handshake outcome instead of leaking protocol errors to the caller.
func (c *MTProtoClient) SubmitCode(ctx context.Context, phone, code, codeRequestToken string) domain.SubmitResult {
	client, err := c.authClient()
	if err != nil {
		return domain.SubmitResult{Outcome: domain.SubmitFailure, Err: err}
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return domain.SubmitResult{Outcome: domain.SubmitFailure, Err: err}
	}

	_, err = client.Auth().SignIn(ctx, phone, code, codeRequestToken)
	switch {
	case err == nil:
		c.logger.Info().Str("phone", maskPhoneNumber(phone)).Msg("signed in")
		return domain.SubmitResult{Outcome: domain.SubmitSuccess}
	case errors.Is(err, auth.ErrPasswordAuthNeeded):
		return domain.SubmitResult{Outcome: domain.SubmitTwoFactorRequired}
	case tgerr.Is(err, "PHONE_CODE_INVALID"):
		return domain.SubmitResult{Outcome: domain.SubmitCodeInvalid}
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		return domain.SubmitResult{Outcome: domain.SubmitCodeExpired}
	default:
		return domain.SubmitResult{Outcome: domain.SubmitFailure, Err: err}
	}
}

// Classify runs the scripted probe conversation and resolves the reply
// against the rule table. Any transport or protocol error resolves to a
// StatusError verdict; classification never raises out of the job.
func (c *MTProtoClient) Classify(ctx context.Context, probeHandle string) domain.Verdict {
	if probeHandle == "" {
		return domain.Verdict{Status: domain.StatusOK, Details: "Probe check disabled."}
	}

	reply, err := c.probeConversation(ctx, probeHandle)
	if err != nil {
		return domain.Verdict{Status: domain.StatusError, Details: fmt.Sprintf("Exception during check: %v", err)}
	}
	return domain.ClassifyReply(c.rules, reply)
}

// probeConversation sends /start to the probe and waits for its reply
func (c *MTProtoClient) probeConversation(ctx context.Context, probeHandle string) (string, error) {
	api, err := c.apiClient()
	if err != nil {
		return "", err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	peer, err := c.resolveProbe(ctx, api, probeHandle)
	if err != nil {
		return "", err
	}

	baseline, err := c.latestIncomingID(ctx, api, peer)
	if err != nil {
		return "", err
	}

	_, err = api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  "/start",
		RandomID: rand.Int63(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to message probe: %w", err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("timed out waiting for probe reply: %w", ctx.Err())
		case <-ticker.C:
			reply, found, err := c.incomingAfter(ctx, api, peer, baseline)
			if err != nil {
				return "", err
			}
			if found {
				return reply, nil
			}
		}
	}
}

// resolveProbe resolves the probe handle to an input peer
func (c *MTProtoClient) resolveProbe(ctx context.Context, api *tg.Client, handle string) (*tg.InputPeerUser, error) {
	resolved, err := api.ContactsResolveUsername(ctx, strings.TrimPrefix(handle, "@"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve probe %s: %w", handle, err)
	}
	for _, u := range resolved.Users {
		if user, ok := u.(*tg.User); ok {
			return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, nil
		}
	}
	return nil, fmt.Errorf("probe %s did not resolve to a user", handle)
}

func (c *MTProtoClient) latestIncomingID(ctx context.Context, api *tg.Client, peer tg.InputPeerClass) (int, error) {
	history, err := c.history(ctx, api, peer, 1)
	if err != nil {
		return 0, err
	}
	for _, msg := range history {
		return msg.ID, nil
	}
	return 0, nil
}

func (c *MTProtoClient) incomingAfter(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, baseline int) (string, bool, error) {
	history, err := c.history(ctx, api, peer, 5)
	if err != nil {
		return "", false, err
	}
	for _, msg := range history {
		if !msg.Out && msg.ID > baseline && msg.Message != "" {
			return msg.Message, true, nil
		}
	}
	return "", false, nil
}

func (c *MTProtoClient) history(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, limit int) ([]*tg.Message, error) {
	result, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read probe history: %w", err)
	}

	var raw []tg.MessageClass
	switch messages := result.(type) {
	case *tg.MessagesMessages:
		raw = messages.Messages
	case *tg.MessagesMessagesSlice:
		raw = messages.Messages
	case *tg.MessagesChannelMessages:
		raw = messages.Messages
	}

	out := make([]*tg.Message, 0, len(raw))
	for _, m := range raw {
		if msg, ok := m.(*tg.Message); ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

// OtherSessions lists every live authorization on the account except this one
func (c *MTProtoClient) OtherSessions(ctx context.Context) ([]domain.RemoteSession, error) {
	api, err := c.apiClient()
	if err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	auths, err := api.AccountGetAuthorizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorizations: %w", err)
	}

	var sessions []domain.RemoteSession
	for _, a := range auths.Authorizations {
		if a.Current {
			continue
		}
		sessions = append(sessions, domain.RemoteSession{
			Hash:   a.Hash,
			Device: a.DeviceModel,
		})
	}
	return sessions, nil
}

// RevokeSession terminates one concurrent authorization by its handle
func (c *MTProtoClient) RevokeSession(ctx context.Context, hash int64) error {
	api, err := c.apiClient()
	if err != nil {
		return err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := api.AccountResetAuthorization(ctx, hash); err != nil {
		return fmt.Errorf("failed to revoke authorization: %w", err)
	}
	return nil
}

// Ensure MTProtoClient implements domain.SessionClient interface
var _ domain.SessionClient = (*MTProtoClient)(nil)
