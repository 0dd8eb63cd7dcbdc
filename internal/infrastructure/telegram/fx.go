package telegram

import (
	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/internal/domain"
)

// Module provides the MTProto session client factory for fx DI
var Module = fx.Module("telegram",
	fx.Provide(
		fx.Annotate(NewClientFactory, fx.As(new(domain.SessionClientFactory))),
	),
)
