package http

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/config"
)

// Module provides the HTTP server for fx DI
var Module = fx.Module("http_server",
	fx.Provide(NewServerFx),
	fx.Invoke(func(*Server) {}),
)

// NewServerFx creates the HTTP server and binds it to the fx lifecycle
func NewServerFx(lc fx.Lifecycle, cfg *config.ServiceConfig, handler http.Handler, logger zerolog.Logger) *Server {
	srv := NewServer(cfg.Port, handler, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return srv
}
