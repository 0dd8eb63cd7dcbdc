package kafka

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

// Module provides the event publisher for fx DI
var Module = fx.Module("kafka",
	fx.Provide(NewPublisherFx),
)

// NewPublisherFx creates the event publisher, degrading to a no-op when no
// brokers are configured.
func NewPublisherFx(lc fx.Lifecycle, cfg *config.KafkaConfig, logger zerolog.Logger) domain.EventPublisher {
	if len(cfg.Brokers) == 0 {
		logger.Info().Msg("No Kafka brokers configured, lifecycle events disabled")
		return NoopPublisher{}
	}

	producer := NewProducer(cfg.Brokers, logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Closing Kafka producer")
			return producer.Close()
		},
	})

	return producer
}
