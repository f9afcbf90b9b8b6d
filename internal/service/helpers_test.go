package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webitel/im-presence-service/infra/client/directory"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
)

type countingScheduler struct{ n atomic.Int64 }

func (s *countingScheduler) Schedule() { s.n.Add(1) }

type recordingExporter struct {
	mu     sync.Mutex
	events []event.Eventer
}

func (e *recordingExporter) Export(_ context.Context, ev event.Eventer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingExporter) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

type fixture struct {
	hub       *registry.Hub
	presence  *registry.Presence
	persist   *countingScheduler
	exporter  *recordingExporter
	lifecycle *LifecycleService
	dispatch  *ProtocolDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		hub:      registry.NewHub(),
		presence: registry.NewPresence(),
		persist:  &countingScheduler{},
		exporter: &recordingExporter{},
	}
	broadcaster := NewHubBroadcaster(f.hub, logger, 50*time.Millisecond, 4)
	resolver := NewUserResolver(directory.NewStatic(nil), 16)

	f.lifecycle = NewLifecycleService(f.hub, f.presence, resolver, f.persist, broadcaster, f.exporter, logger)
	f.dispatch = NewProtocolDispatcher(f.presence, f.persist, broadcaster, f.exporter, logger)
	return f
}

func (f *fixture) open(t *testing.T, id model.UserID) registry.Connector {
	t.Helper()
	user, err := f.lifecycle.Resolve(context.Background(), id.String())
	require.NoError(t, err)
	return f.lifecycle.Open(context.Background(), user, model.ConnectMetadata{})
}

// frame decodes one queued event into its wire form.
func frame(t *testing.T, ev event.Eventer) map[string]any {
	t.Helper()
	data, err := event.Marshal(ev)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// drain returns every event queued on the connector.
func drain(conn registry.Connector) []event.Eventer {
	var out []event.Eventer
	for {
		select {
		case ev := <-conn.Recv():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func kinds(evs []event.Eventer) []event.EventKind {
	out := make([]event.EventKind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.GetKind())
	}
	return out
}
