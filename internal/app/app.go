// Package app assembles the application dependency graph
package app

import (
	"go.uber.org/fx"

	"github.com/mkazarin/accountgate/config"
	deliveryhttp "github.com/mkazarin/accountgate/internal/delivery/http"
	deliverytelegram "github.com/mkazarin/accountgate/internal/delivery/telegram"
	"github.com/mkazarin/accountgate/internal/infrastructure/artifacts"
	"github.com/mkazarin/accountgate/internal/infrastructure/bot"
	"github.com/mkazarin/accountgate/internal/infrastructure/database"
	infrahttp "github.com/mkazarin/accountgate/internal/infrastructure/http"
	"github.com/mkazarin/accountgate/internal/infrastructure/kafka"
	"github.com/mkazarin/accountgate/internal/infrastructure/logger"
	"github.com/mkazarin/accountgate/internal/infrastructure/metrics"
	"github.com/mkazarin/accountgate/internal/infrastructure/s3"
	"github.com/mkazarin/accountgate/internal/infrastructure/telegram"
	"github.com/mkazarin/accountgate/internal/repository/postgres"
	"github.com/mkazarin/accountgate/internal/usecase"
)

// CreateApp creates the fx application with all dependencies
func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(config.Out),
		logger.Module,
		metrics.Module,
		database.Module,
		postgres.Module,
		artifacts.Module,
		telegram.Module,
		bot.Module,
		kafka.Module,
		s3.Module,
		usecase.Module,
		deliverytelegram.Module,
		deliveryhttp.Module,
		infrahttp.Module,
	)
}
