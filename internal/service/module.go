package service

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/infra/client/directory"
	"github.com/webitel/im-presence-service/internal/domain/registry"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			func(source directory.Source, cfg *config.Config) *UserResolver {
				return NewUserResolver(source, cfg.Directory.CacheSize)
			},
			fx.As(new(Resolver)),
		),
		fx.Annotate(
			func(hub registry.Hubber, logger *slog.Logger, cfg *config.Config) *HubBroadcaster {
				return NewHubBroadcaster(hub, logger, cfg.Registry.SendTimeout, cfg.Registry.BroadcastConcurrency)
			},
			fx.As(new(Broadcaster)),
		),
		fx.Annotate(
			NewLifecycleService,
			fx.As(new(Lifecycle)),
		),
		fx.Annotate(
			NewProtocolDispatcher,
			fx.As(new(Dispatcher)),
		),
	),

	// [DECORATION_LAYER] Intercept Resolver to add cross-cutting concerns
	fx.Decorate(NewResolverMiddleware),

	// [GRACEFUL_SHUTDOWN] Stops before the store, so the final snapshot sees
	// every user offline with lastSeen stamped.
	fx.Invoke(func(lc fx.Lifecycle, lifecycle Lifecycle, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				n := lifecycle.CloseAll(ctx)
				logger.Info("CONNECTIONS_DRAINED", "closed", n)
				return nil
			},
		})
	}),
)
