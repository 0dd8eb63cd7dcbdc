package artifacts

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

// Module provides the artifact store for fx DI
var Module = fx.Module("artifacts",
	fx.Provide(
		fx.Annotate(NewStoreFx, fx.As(new(domain.ArtifactStore))),
	),
)

// NewStoreFx creates the artifact store from config
func NewStoreFx(cfg *config.ReceiverConfig, logger zerolog.Logger) *Store {
	return NewStore(cfg.SessionsDir, logger)
}
