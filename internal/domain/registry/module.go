package registry

import (
	"context"
	"log/slog"

	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/internal/telemetry"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure the registries using Functional Options
		func(cfg *config.Config) *Hub {
			return NewHub(WithSendBuffer(cfg.Registry.SendBuffer))
		},
		func() *Presence { return NewPresence() },
		func(h *Hub) Hubber { return h },
		func(p *Presence) Presencer { return p },
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber, p Presencer, logger *slog.Logger) error {
		reg, err := telemetry.RegisterOnlineGauge(p.OnlineCount, h.Len)
		if err != nil {
			return err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Close every connector so transport loops exit
				logger.Info("REGISTRY_STOPPED", "users", p.Len(), "online", p.OnlineCount())
				return reg.Unregister()
			},
		})
		return nil
	}),
)
