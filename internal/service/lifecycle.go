package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/store"
	"github.com/webitel/im-presence-service/internal/telemetry"
)

const ackTimeout = time.Second

// [LIFECYCLE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS
type Lifecycle interface {
	// Resolve validates the identity supplied by the HTTP layer. No state changes.
	Resolve(ctx context.Context, raw string) (model.User, error)
	// Open moves a resolved connection to OPEN and queues the connected ack.
	Open(ctx context.Context, user model.User, meta model.ConnectMetadata) registry.Connector
	// Close handles a graceful transport close.
	Close(ctx context.Context, conn registry.Connector)
	// Fail handles a transport error. It never panics.
	Fail(ctx context.Context, conn registry.Connector, cause error)
	// CloseAll gracefully closes every registered connection.
	CloseAll(ctx context.Context) int
}

var _ Lifecycle = (*LifecycleService)(nil)

type LifecycleService struct {
	hub      registry.Hubber
	presence registry.Presencer
	resolver Resolver
	persist  store.Scheduler
	notify   notifier
	logger   *slog.Logger
}

func NewLifecycleService(
	hub registry.Hubber,
	presence registry.Presencer,
	resolver Resolver,
	persist store.Scheduler,
	broadcaster Broadcaster,
	exporter Exporter,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		hub:      hub,
		presence: presence,
		resolver: resolver,
		persist:  persist,
		notify:   notifier{broadcaster: broadcaster, exporter: exporter, logger: logger},
		logger:   logger,
	}
}

func (s *LifecycleService) Resolve(ctx context.Context, raw string) (model.User, error) {
	u, err := s.resolver.Resolve(ctx, raw)
	if err != nil {
		telemetry.Inc(ctx, telemetry.ConnectRejected)
		return model.User{}, err
	}
	return u, nil
}

// Open runs CONNECTING -> OPEN.
func (s *LifecycleService) Open(ctx context.Context, user model.User, meta model.ConnectMetadata) registry.Connector {
	conn := s.hub.Connect(ctx, user.ID, meta)

	presence, wentOnline := s.presence.GetOrCreate(user.ID, conn.GetID())
	count := s.presence.OnlineCount()

	// [HANDSHAKE] queued before registration so it is the first frame on the wire.
	conn.Send(event.NewConnected(conn.Info(), count), ackTimeout)
	s.hub.Register(conn)
	s.persist.Schedule()

	telemetry.Inc(ctx, telemetry.ConnectionsOpened)
	s.logger.Info("CONNECTION_OPENED",
		"user_id", user.ID,
		"conn_id", conn.GetID(),
		"sessions", presence.Connections,
		"online_count", count,
	)

	if wentOnline {
		s.notify.statusChanged(ctx, user.ID, model.StatusOnline, count)
	}
	return conn
}

func (s *LifecycleService) Close(ctx context.Context, conn registry.Connector) {
	if s.release(ctx, conn) {
		telemetry.Inc(ctx, telemetry.ConnectionsClosed)
	}
}

// CloseAll runs the graceful close for every live connection and reports how
// many it released. Used on shutdown so users are stored offline with lastSeen.
func (s *LifecycleService) CloseAll(ctx context.Context) int {
	released := 0
	for _, conn := range s.hub.All() {
		if s.release(ctx, conn) {
			telemetry.Inc(ctx, telemetry.ConnectionsClosed)
			released++
		}
	}
	return released
}

// Fail runs the same cleanup as Close; a panic inside cleanup is contained
// because the transport may already be unusable.
func (s *LifecycleService) Fail(ctx context.Context, conn registry.Connector, cause error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("CONNECTION_CLEANUP_PANIC",
				"err", fmt.Sprint(r),
				"conn_id", conn.GetID(),
				"stack", string(debug.Stack()),
			)
		}
	}()

	s.logger.Warn("CONNECTION_ERROR", "err", cause, "user_id", conn.GetUserID(), "conn_id", conn.GetID())
	if s.release(ctx, conn) {
		telemetry.Inc(ctx, telemetry.ConnectionErrors)
	}
}

// release runs OPEN -> CLOSED once per connection id and reports whether it did.
func (s *LifecycleService) release(ctx context.Context, conn registry.Connector) bool {
	// Unregister gates the transition: CLOSED is terminal.
	if !s.hub.Unregister(conn.GetID()) {
		return false
	}

	res := s.presence.Detach(conn.GetUserID(), conn.GetID())
	if res.WentOffline {
		s.notify.statusChanged(ctx, conn.GetUserID(), model.StatusOffline, res.OnlineCount)
	}
	s.persist.Schedule()

	s.logger.Info("CONNECTION_CLOSED",
		"user_id", conn.GetUserID(),
		"conn_id", conn.GetID(),
		"remaining_sessions", res.Remaining,
		"went_offline", res.WentOffline,
		"online_count", res.OnlineCount,
	)
	return true
}
