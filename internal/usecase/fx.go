package usecase

import (
	"context"

	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/internal/domain"
)

// Module provides the application use cases for fx DI
var Module = fx.Module("usecase",
	fx.Provide(
		fx.Annotate(NewCredentialRotationPool, fx.As(new(domain.CredentialRotator))),
		fx.Annotate(NewProxyPool, fx.As(new(domain.ProxySelector))),
		NewCountryDirectoryFx,
		NewAuditForwarder,
		NewFinalizationService,
		NewLoginFlowController,
		NewReconciliationScheduler,
	),
	fx.Invoke(RunSchedulerFx),
)

// NewCountryDirectoryFx loads the country policies once at startup
func NewCountryDirectoryFx(store domain.CountryStore) (*domain.CountryDirectory, error) {
	countries, err := store.All(context.Background())
	if err != nil {
		return nil, err
	}
	return domain.NewCountryDirectory(countries), nil
}

// RunSchedulerFx runs the reconciliation loop under the fx lifecycle
func RunSchedulerFx(lc fx.Lifecycle, scheduler *ReconciliationScheduler) {
	loopCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go scheduler.Run(loopCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}
