package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Module provides the HTTP delivery layer for fx DI
var Module = fx.Module("http_delivery",
	fx.Provide(
		NewHealthHandler,
		NewCronHandler,
		NewMux,
	),
)

// NewMux assembles the service HTTP routes
func NewMux(health *HealthHandler, cron *CronHandler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", health)
	mux.Handle("/cron", cron)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
