package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

// settingClassificationRules is the settings key holding the rule table override
const settingClassificationRules = "classification_rules"

// ClientFactory builds per-job MTProto clients from the rotation pools.
// Every client gets its own credential, proxy and device fingerprint.
type ClientFactory struct {
	credentials domain.CredentialRotator
	proxies     domain.ProxySelector
	settings    domain.SettingsStore
	cfg         *config.ReceiverConfig
	logger      zerolog.Logger
}

// NewClientFactory creates a session client factory
func NewClientFactory(
	credentials domain.CredentialRotator,
	proxies domain.ProxySelector,
	settings domain.SettingsStore,
	cfg *config.ReceiverConfig,
	logger zerolog.Logger,
) *ClientFactory {
	return &ClientFactory{
		credentials: credentials,
		proxies:     proxies,
		settings:    settings,
		cfg:         cfg,
		logger:      logger,
	}
}

// New builds a client bound to the given session artifact path
func (f *ClientFactory) New(ctx context.Context, artifactPath string) (domain.SessionClient, error) {
	credential, err := f.credentials.Next(ctx)
	if err != nil {
		return nil, err
	}

	// A failing proxy pool degrades to a direct connection
	endpoint, err := f.proxies.Next(ctx)
	if err != nil {
		f.logger.Warn().Err(err).Msg("proxy selection failed, connecting directly")
		endpoint = nil
	}

	rules := domain.DefaultClassificationRules()
	if raw, err := f.settings.Get(ctx, settingClassificationRules); err == nil && raw != "" {
		if parsed := domain.ParseClassificationRules(raw); len(parsed) > 0 {
			rules = parsed
		}
	}

	return NewMTProtoClient(ClientConfig{
		APIID:        credential.APIID,
		APIHash:      credential.APIHash,
		ArtifactPath: artifactPath,
		Device:       randomDeviceProfile(),
		Proxy:        endpoint,
		Rules:        rules,
		ProbeTimeout: f.cfg.ProbeTimeout,
		Logger:       f.logger,
	})
}

// Ensure ClientFactory implements domain.SessionClientFactory interface
var _ domain.SessionClientFactory = (*ClientFactory)(nil)
