package telegram

import (
	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/internal/infrastructure/bot"
)

// Module provides the Telegram delivery layer for fx DI
var Module = fx.Module("telegram_delivery",
	fx.Provide(
		NewHandlers,
		NewRouter,
	),
	fx.Invoke(RegisterRoutesFx),
)

// RegisterRoutesFx wires the handlers onto the bot before its loop starts
func RegisterRoutesFx(router *Router, b *bot.Bot) {
	router.RegisterRoutes(b.Raw())
}
