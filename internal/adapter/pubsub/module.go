package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"

	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/internal/service"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewPublisherProvider,
		NewExporter,
	),
)

// NewWatermillLogger routes watermill's own logs through the service logger.
func NewWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}

// NewExporter returns the bus exporter, or a no-op one for pubsub.driver=none.
func NewExporter(lc fx.Lifecycle, cfg *config.Config, pp *PublisherProvider, logger *slog.Logger) (service.Exporter, error) {
	if cfg.PubSub.Driver == "none" || cfg.PubSub.Driver == "" {
		logger.Info("PUBSUB_DISABLED")
		return service.NopExporter{}, nil
	}

	pub, err := pp.Build()
	if err != nil {
		return nil, err
	}
	logger.Info("PUBSUB_READY", "driver", cfg.PubSub.Driver, "topic", cfg.PubSub.Topic)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return NewEventDispatcher(pub), nil
}
