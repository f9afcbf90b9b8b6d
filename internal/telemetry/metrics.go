// Package telemetry provides OpenTelemetry metrics for the presence service.
// Instruments use the global meter provider and are no-ops until the host installs one.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/webitel/im-presence-service"

//nolint:gochecknoglobals // OpenTelemetry instruments are global for instrumentation
var meter = otel.Meter(instrumentationName)

// Connection metrics track the socket lifecycle.
//
//nolint:gochecknoglobals
var (
	ConnectionsOpened = counter("presence.connections.opened", "Connections accepted")
	ConnectionsClosed = counter("presence.connections.closed", "Connections closed gracefully")
	ConnectionErrors  = counter("presence.connections.errored", "Connections closed by a transport error")
	ConnectRejected   = counter("presence.connections.rejected", "Connections rejected at identity resolution")
)

// Delivery metrics track the broadcaster and protocol replies.
//
//nolint:gochecknoglobals
var (
	BroadcastDelivered = counter("presence.broadcast.delivered", "Broadcast frames enqueued to recipients")
	BroadcastSkipped   = counter("presence.broadcast.skipped", "Broadcast recipients skipped (closed or slow)")
	ProtocolErrors     = counter("presence.protocol.errors", "Inbound messages answered with an error")
)

// Persistence metrics track snapshot writes and recovery.
//
//nolint:gochecknoglobals
var (
	SnapshotSaves    = counter("presence.snapshot.saves", "Snapshots written")
	SnapshotFailures = counter("presence.snapshot.failures", "Snapshot writes that failed")
	SnapshotRestores = counter("presence.snapshot.restores", "Registry restores from the backup snapshot")
)

func counter(name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
	}
	return c
}

// Inc adds one to c, ignoring a nil instrument.
func Inc(ctx context.Context, c metric.Int64Counter) {
	if c != nil {
		c.Add(ctx, 1)
	}
}

// RegisterOnlineGauge exposes the registry counter as an observable gauge.
func RegisterOnlineGauge(online func() int, connections func() int) (metric.Registration, error) {
	onlineGauge, err := meter.Int64ObservableGauge("presence.users.online",
		metric.WithDescription("Users currently online"))
	if err != nil {
		return nil, err
	}
	connGauge, err := meter.Int64ObservableGauge("presence.connections.active",
		metric.WithDescription("Live connections in the hub"))
	if err != nil {
		return nil, err
	}
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(onlineGauge, int64(online()))
		o.ObserveInt64(connGauge, int64(connections()))
		return nil
	}, onlineGauge, connGauge)
}
