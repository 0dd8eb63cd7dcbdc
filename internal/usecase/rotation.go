package usecase

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

// CredentialRotationPool hands out API identity pairs round-robin so that
// consecutive connections never share an identity. When the pool table is
// empty it falls back to the configured default pair.
type CredentialRotationPool struct {
	store  domain.CredentialStore
	cfg    *config.ReceiverConfig
	logger zerolog.Logger
	next   atomic.Uint64
}

// NewCredentialRotationPool creates a credential rotation pool
func NewCredentialRotationPool(store domain.CredentialStore, cfg *config.ReceiverConfig, logger zerolog.Logger) *CredentialRotationPool {
	return &CredentialRotationPool{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "credential_pool").Logger(),
	}
}

// Next returns the next API identity pair in rotation order
func (p *CredentialRotationPool) Next(ctx context.Context) (domain.CredentialRecord, error) {
	pool, err := p.store.All(ctx)
	if err != nil {
		return domain.CredentialRecord{}, err
	}
	if len(pool) == 0 {
		p.logger.Debug().Msg("credential pool empty, using default identity")
		return domain.CredentialRecord{
			APIID:   p.cfg.DefaultAPIID,
			APIHash: p.cfg.DefaultAPIHash,
		}, nil
	}
	idx := p.next.Add(1) - 1
	return pool[idx%uint64(len(pool))], nil
}

// ProxyPool picks a random transport proxy for each new connection.
// Malformed pool entries are skipped, and an empty pool means direct
// connections, never an error.
type ProxyPool struct {
	store  domain.ProxyStore
	logger zerolog.Logger
}

// NewProxyPool creates a proxy selection pool
func NewProxyPool(store domain.ProxyStore, logger zerolog.Logger) *ProxyPool {
	return &ProxyPool{
		store:  store,
		logger: logger.With().Str("component", "proxy_pool").Logger(),
	}
}

// Next returns a randomly selected proxy endpoint, or nil for direct
func (p *ProxyPool) Next(ctx context.Context) (*domain.ProxyEndpoint, error) {
	raw, err := p.store.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	entry := raw[rand.Intn(len(raw))]
	endpoint, err := ParseProxyEntry(entry)
	if err != nil {
		p.logger.Warn().Err(err).Str("entry", entry).Msg("skipping malformed proxy entry")
		return nil, nil
	}
	return endpoint, nil
}

// ParseProxyEntry parses a host:port[:user:pass] pool entry
func ParseProxyEntry(entry string) (*domain.ProxyEndpoint, error) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) != 2 && len(parts) != 4 {
		return nil, domain.ErrProxyMalformed
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port <= 0 || port > 65535 {
		return nil, domain.ErrProxyMalformed
	}
	endpoint := &domain.ProxyEndpoint{
		Host: parts[0],
		Port: port,
	}
	if endpoint.Host == "" {
		return nil, domain.ErrProxyMalformed
	}
	if len(parts) == 4 {
		endpoint.Username = parts[2]
		endpoint.Password = parts[3]
	}
	return endpoint, nil
}

// Ensure pool implementations satisfy the domain interfaces
var (
	_ domain.CredentialRotator = (*CredentialRotationPool)(nil)
	_ domain.ProxySelector     = (*ProxyPool)(nil)
)
