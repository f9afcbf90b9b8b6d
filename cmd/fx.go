package cmd

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/im-presence-service/config"
	clientdi "github.com/webitel/im-presence-service/infra/client/di"
	"github.com/webitel/im-presence-service/infra/server/httpsrv"
	"github.com/webitel/im-presence-service/internal/adapter/pubsub"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/handler/rest"
	"github.com/webitel/im-presence-service/internal/handler/ws"
	"github.com/webitel/im-presence-service/internal/service"
	"github.com/webitel/im-presence-service/internal/store"
)

func NewApp(cfg *config.Config, level *slog.LevelVar) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			func() *slog.LevelVar { return level },
			ProvideLogger,
			pubsub.NewWatermillLogger,
		),
		fx.WithLogger(ProvideFxLogger),
		registry.Module,
		store.Module,
		clientdi.Module,
		service.Module,
		pubsub.Module,
		httpsrv.Module,
		ws.Module,
		rest.Module,
	)
}
