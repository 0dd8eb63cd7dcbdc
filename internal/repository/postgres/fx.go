package postgres

import (
	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/internal/domain"
)

// Module provides all PostgreSQL repositories for fx DI
var Module = fx.Module("repositories",
	fx.Provide(
		fx.Annotate(NewAccountRepository, fx.As(new(domain.AccountStore))),
		fx.Annotate(NewUserRepository, fx.As(new(domain.UserStore))),
		fx.Annotate(NewCredentialRepository, fx.As(new(domain.CredentialStore))),
		fx.Annotate(NewProxyRepository, fx.As(new(domain.ProxyStore))),
		fx.Annotate(NewCountryRepository, fx.As(new(domain.CountryStore))),
		fx.Annotate(NewSettingsRepository, fx.As(new(domain.SettingsStore))),
		fx.Annotate(NewBucketRepository, fx.As(new(domain.BucketCache))),
	),
)
