package rest

import (
	"go.uber.org/fx"

	"github.com/webitel/im-presence-service/infra/server/httpsrv"
)

var Module = fx.Module("rest-handler",
	fx.Provide(NewRESTHandler),
	fx.Invoke(func(srv *httpsrv.Server, h *RESTHandler) {
		h.Routes(srv.Router)
	}),
)
