package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/store"
	"github.com/webitel/im-presence-service/internal/telemetry"
)

// Inbound message types.
const (
	MsgGetOnlineCount  = "get_online_count"
	MsgCheckUserStatus = "check_user_status"
	MsgGetAllUsers     = "get_all_users"
	MsgSetStatus       = "set_status"
	MsgPing            = "ping"
)

// Dispatcher routes one inbound frame and returns the reply for the sender.
// It never returns nil and never panics: every failure becomes an error reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, conn registry.Connector, raw []byte) event.Eventer
}

var _ Dispatcher = (*ProtocolDispatcher)(nil)

type ProtocolDispatcher struct {
	presence registry.Presencer
	persist  store.Scheduler
	notify   notifier
	logger   *slog.Logger
}

func NewProtocolDispatcher(
	presence registry.Presencer,
	persist store.Scheduler,
	broadcaster Broadcaster,
	exporter Exporter,
	logger *slog.Logger,
) *ProtocolDispatcher {
	return &ProtocolDispatcher{
		presence: presence,
		persist:  persist,
		notify:   notifier{broadcaster: broadcaster, exporter: exporter, logger: logger},
		logger:   logger,
	}
}

func (d *ProtocolDispatcher) Dispatch(ctx context.Context, conn registry.Connector, raw []byte) (reply event.Eventer) {
	// [PANIC_RECOVERY] a bad frame must not take the connection down.
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("DISPATCH_PANIC_RECOVERED",
				"err", fmt.Sprint(r),
				"conn_id", conn.GetID(),
				"stack", string(debug.Stack()),
			)
			reply = d.reject(ctx, conn, "Server error processing message", nil)
		}
	}()

	in, err := event.DecodeInbound(raw)
	if err != nil {
		if errors.Is(err, event.ErrMissingType) {
			return d.reject(ctx, conn, "Missing message type", err)
		}
		return d.reject(ctx, conn, "Invalid message format", err)
	}

	d.logger.Debug("MESSAGE_RECEIVED", "type", in.Type, "user_id", conn.GetUserID(), "conn_id", conn.GetID())

	switch in.Type {
	case MsgGetOnlineCount:
		return event.NewOnlineCount(d.presence.OnlineCount())

	case MsgCheckUserStatus:
		target, present, err := in.Target()
		if !present {
			return d.reject(ctx, conn, "Missing targetUserId parameter", nil)
		}
		if err != nil {
			return d.reject(ctx, conn, "Invalid targetUserId parameter", err)
		}
		p, found := d.presence.Get(target)
		return event.NewUserStatus(target, p, found)

	case MsgGetAllUsers:
		return event.NewAllUsers(d.presence.List())

	case MsgSetStatus:
		return d.setStatus(ctx, conn, model.Status(in.Status))

	case MsgPing:
		return event.NewPong()

	default:
		return d.reject(ctx, conn, "Unknown message type: "+in.Type, nil)
	}
}

// setStatus changes the caller's own status. Only a real transition is
// persisted and broadcast; the caller always gets status_updated.
func (d *ProtocolDispatcher) setStatus(ctx context.Context, conn registry.Connector, status model.Status) event.Eventer {
	if !status.Valid() {
		return d.reject(ctx, conn, fmt.Sprintf("Invalid status %q: expected online or offline", status), nil)
	}

	userID := conn.GetUserID()
	if d.presence.SetStatus(userID, status) {
		if status == model.StatusOffline {
			d.presence.MarkLastSeen(userID)
		}
		d.persist.Schedule()
		d.notify.statusChanged(ctx, userID, status, d.presence.OnlineCount())
		d.logger.Info("STATUS_SET", "user_id", userID, "status", status)
	}
	return event.NewStatusUpdated(userID, status)
}

func (d *ProtocolDispatcher) reject(ctx context.Context, conn registry.Connector, msg string, cause error) event.Eventer {
	telemetry.Inc(ctx, telemetry.ProtocolErrors)
	d.logger.Debug("MESSAGE_REJECTED", "reason", msg, "err", cause, "conn_id", conn.GetID())
	return event.NewError(msg)
}
