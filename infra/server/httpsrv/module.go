package httpsrv

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("http-server",
	fx.Provide(NewServer),
	fx.Invoke(func(lc fx.Lifecycle, srv *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return srv.Start() },
			OnStop:  srv.Stop,
		})
	}),
)
