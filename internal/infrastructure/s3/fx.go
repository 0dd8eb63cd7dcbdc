package s3

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

// Module provides the artifact vault for fx DI
var Module = fx.Module("s3",
	fx.Provide(NewVaultFx),
)

// NewVaultFx creates the vault, degrading to a no-op when unconfigured
func NewVaultFx(lc fx.Lifecycle, cfg *config.S3Config, logger zerolog.Logger) (domain.ArtifactVault, error) {
	if !cfg.Enabled() {
		logger.Info().Msg("Artifact vault not configured, mirroring disabled")
		return NoopVault{}, nil
	}

	vault, err := NewVault(cfg, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return vault.EnsureBucket(ctx)
		},
	})

	return vault, nil
}
