package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSendTimeout          = 500 * time.Millisecond
	defaultBroadcastConcurrency = 16
)

// Broadcaster fans one event out to every live connection.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev event.Eventer) Report
}

// Report summarizes one fan-out.
type Report struct {
	Recipients int
	Delivered  int
	Skipped    int
}

var _ Broadcaster = (*HubBroadcaster)(nil)

// HubBroadcaster delivers through the connection registry. Delivery is best
// effort: closed or saturated recipients are skipped and never fail the rest.
type HubBroadcaster struct {
	hub         registry.Hubber
	logger      *slog.Logger
	timeout     time.Duration
	concurrency int
}

func NewHubBroadcaster(hub registry.Hubber, logger *slog.Logger, timeout time.Duration, concurrency int) *HubBroadcaster {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if concurrency <= 0 {
		concurrency = defaultBroadcastConcurrency
	}
	return &HubBroadcaster{
		hub:         hub,
		logger:      logger,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

func (b *HubBroadcaster) Broadcast(ctx context.Context, ev event.Eventer) Report {
	// Serialize once; every write pump reuses the cached bytes.
	if _, err := event.Marshal(ev); err != nil {
		b.logger.Error("BROADCAST_ENCODE_FAILED", "err", err, "event_type", ev.GetKind().String())
		return Report{}
	}

	conns := b.hub.All()
	var delivered, skipped atomic.Int64

	// A slow recipient waits at most b.timeout without holding up the others.
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for _, conn := range conns {
		if !conn.IsOpen() {
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			if conn.Send(ev, b.timeout) {
				delivered.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{
		Recipients: len(conns),
		Delivered:  int(delivered.Load()),
		Skipped:    int(skipped.Load()),
	}
	telemetry.BroadcastDelivered.Add(ctx, int64(rep.Delivered))
	telemetry.BroadcastSkipped.Add(ctx, int64(rep.Skipped))

	b.logger.Debug("BROADCAST_SENT",
		"event_type", ev.GetKind().String(),
		"recipients", rep.Recipients,
		"delivered", rep.Delivered,
		"skipped", rep.Skipped,
	)
	return rep
}
