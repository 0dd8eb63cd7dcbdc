package bot

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

// Module provides the bot transport for fx DI
var Module = fx.Module("bot",
	fx.Provide(
		NewBotFx,
		fx.Annotate(NewNotifier, fx.As(new(domain.Notifier))),
		fx.Annotate(NewAuditSink, fx.As(new(domain.AuditSink))),
	),
)

// NewBotFx creates the bot and runs its update loop under the fx lifecycle
func NewBotFx(lc fx.Lifecycle, cfg *config.BotConfig, logger zerolog.Logger) (*Bot, error) {
	b, err := New(cfg.Token, logger)
	if err != nil {
		return nil, err
	}

	botCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go b.Start(botCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})

	return b, nil
}
