package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/internal/usecase"
)

// cronJobTimeout bounds one externally-triggered sweep
const cronJobTimeout = 10 * time.Minute

// CronHandler exposes the reconciliation jobs to an external scheduler so
// deployments without a long-lived process can still run sweeps.
type CronHandler struct {
	scheduler *usecase.ReconciliationScheduler
	forwarder *usecase.AuditForwarder
	logger    zerolog.Logger
}

// NewCronHandler creates a new cron trigger handler
func NewCronHandler(scheduler *usecase.ReconciliationScheduler, forwarder *usecase.AuditForwarder, logger zerolog.Logger) *CronHandler {
	return &CronHandler{
		scheduler: scheduler,
		forwarder: forwarder,
		logger:    logger.With().Str("component", "cron_handler").Logger(),
	}
}

// ServeHTTP implements http.Handler interface
func (h *CronHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cronJobTimeout)
	defer cancel()

	job := r.URL.Query().Get("job")
	switch job {
	case "account_check":
		if err := h.scheduler.RunSweep(ctx); err != nil {
			h.logger.Error().Err(err).Msg("triggered sweep failed")
			http.Error(w, "sweep failed", http.StatusInternalServerError)
			return
		}
	case "topic_cleanup":
		if err := h.forwarder.CleanupStaleBuckets(ctx, time.Now().Add(-48*time.Hour)); err != nil {
			h.logger.Error().Err(err).Msg("triggered topic cleanup failed")
			http.Error(w, "cleanup failed", http.StatusInternalServerError)
			return
		}
	default:
		http.Error(w, "unknown job", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
