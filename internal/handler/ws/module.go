package ws

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/infra/server/httpsrv"
	"github.com/webitel/im-presence-service/infra/server/httpsrv/interceptors"
	"github.com/webitel/im-presence-service/internal/service"
)

var Module = fx.Module("ws-handler",
	fx.Provide(NewWSHandler),
	fx.Invoke(RegisterRoutes),
)

func RegisterRoutes(srv *httpsrv.Server, h *WSHandler, lifecycle service.Lifecycle, cfg *config.Config, logger *slog.Logger) {
	srv.Router.
		With(interceptors.NewIdentityMiddleware(lifecycle, logger)).
		Get(cfg.Server.WSPath, h.ServeHTTP)
	logger.Info("WS_ROUTE_READY", "path", cfg.Server.WSPath)
}
