package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-presence-service/infra/client/directory"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouterWith(t *testing.T, src directory.Source, hub *registry.Hub) (chi.Router, *registry.Presence) {
	t.Helper()
	presence := registry.NewPresence()
	h := NewRESTHandler(
		service.NewUserResolver(src, 16),
		presence,
		hub,
		src,
		discardLogger(),
	)
	r := chi.NewRouter()
	h.Routes(r)
	return r, presence
}

func newRouter(t *testing.T) (chi.Router, *registry.Presence) {
	t.Helper()
	return newRouterWith(t, directory.NewStatic(nil), registry.NewHub())
}

func get(t *testing.T, r http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestRESTHandler_Users(t *testing.T) {
	r, _ := newRouter(t)

	var users []model.User
	assert.Equal(t, http.StatusOK, get(t, r, "/api/users", &users))
	assert.Len(t, users, 10)

	var user model.User
	assert.Equal(t, http.StatusOK, get(t, r, "/api/users/3", &user))
	assert.Equal(t, "Bob Smith", user.Name)

	var body errorBody
	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/users/42", &body))
	assert.Equal(t, "User not found", body.Error)

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/users/abc", &body))
}

func TestRESTHandler_PresenceAndStats(t *testing.T) {
	r, presence := newRouter(t)
	presence.GetOrCreate(2, "conn-b")
	presence.GetOrCreate(1, "conn-a")
	presence.Detach(2, "conn-b")

	var records []model.PresenceRecord
	require.Equal(t, http.StatusOK, get(t, r, "/api/presence", &records))
	require.Len(t, records, 2)
	assert.Equal(t, model.UserID(1), records[0].UserID)
	assert.Equal(t, model.StatusOffline, records[1].Status)
	assert.NotNil(t, records[1].LastSeen)

	var stats model.HubStats
	require.Equal(t, http.StatusOK, get(t, r, "/stats", &stats))
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.OnlineUsers)
	assert.Zero(t, stats.TotalConnections)
	assert.Zero(t, stats.DroppedEvents)

	var health map[string]string
	require.Equal(t, http.StatusOK, get(t, r, "/healthz", &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "static", health["directory"])
}

func TestRESTHandler_Stats_SumsDroppedEvents(t *testing.T) {
	hub := registry.NewHub(registry.WithSendBuffer(1))
	r, _ := newRouterWith(t, directory.NewStatic(nil), hub)

	conn := hub.Connect(context.Background(), 1, model.ConnectMetadata{})
	hub.Register(conn)
	t.Cleanup(conn.Close)

	require.True(t, conn.Send(event.NewOnlineCount(1), time.Millisecond))
	for range 3 {
		assert.False(t, conn.Send(event.NewPong(), time.Millisecond))
	}

	var stats model.HubStats
	require.Equal(t, http.StatusOK, get(t, r, "/stats", &stats))
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, uint64(3), stats.DroppedEvents)
}

func TestRESTHandler_Health_ReportsDirectoryBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client, err := directory.New(srv.URL, time.Second, discardLogger(),
		directory.WithTripAfter(2), directory.WithOpenTimeout(time.Minute))
	require.NoError(t, err)
	r, _ := newRouterWith(t, client, registry.NewHub())

	var health map[string]string
	require.Equal(t, http.StatusOK, get(t, r, "/healthz", &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "closed", health["directory"])

	var body errorBody
	for range 2 {
		assert.Equal(t, http.StatusServiceUnavailable, get(t, r, "/api/users", &body))
	}

	require.Equal(t, http.StatusOK, get(t, r, "/healthz", &health))
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, "open", health["directory"])
}
