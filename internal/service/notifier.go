package service

import (
	"context"
	"log/slog"

	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// Exporter re-publishes presence transitions outside the process.
type Exporter interface {
	Export(ctx context.Context, ev event.Eventer) error
}

// NopExporter is used when no message bus is configured.
type NopExporter struct{}

func (NopExporter) Export(context.Context, event.Eventer) error { return nil }

// notifier announces a status transition to local sockets and to the bus.
type notifier struct {
	broadcaster Broadcaster
	exporter    Exporter
	logger      *slog.Logger
}

func (n notifier) statusChanged(ctx context.Context, userID model.UserID, status model.Status, onlineCount int) Report {
	ev := event.NewStatusChange(userID, status, onlineCount)
	rep := n.broadcaster.Broadcast(ctx, ev)

	if n.exporter != nil {
		// The transition already happened; a closing socket must not cancel its export.
		if err := n.exporter.Export(context.WithoutCancel(ctx), ev); err != nil {
			n.logger.Warn("STATUS_EXPORT_FAILED", "err", err, "user_id", userID)
		}
	}
	return rep
}
