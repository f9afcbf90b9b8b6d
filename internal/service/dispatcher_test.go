package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

func TestDispatcher_ErrorReplies(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{name: "malformed", raw: `{bad json`, message: "Invalid message format"},
		{name: "missing type", raw: `{"status":"online"}`, message: "Missing message type"},
		{name: "unknown type", raw: `{"type":"dance"}`, message: "Unknown message type: dance"},
		{name: "missing target", raw: `{"type":"check_user_status"}`, message: "Missing targetUserId parameter"},
		{name: "bad target", raw: `{"type":"check_user_status","targetUserId":"x"}`, message: "Invalid targetUserId parameter"},
		{name: "bad status", raw: `{"type":"set_status","status":"away"}`, message: `Invalid status "away": expected online or offline`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			conn := f.open(t, 1)
			drain(conn)
			before := f.presence.List()
			saves := f.persist.n.Load()

			reply := f.dispatch.Dispatch(context.Background(), conn, []byte(tt.raw))

			require.NotNil(t, reply)
			got := frame(t, reply)
			assert.Equal(t, "error", got["type"])
			assert.Equal(t, tt.message, got["message"])

			assert.Equal(t, before, f.presence.List(), "no registry mutation")
			assert.Equal(t, saves, f.persist.n.Load(), "nothing persisted")
			assert.Empty(t, drain(conn), "only the sender gets the reply, nothing is broadcast")
		})
	}
}

func TestDispatcher_GetOnlineCount(t *testing.T) {
	f := newFixture(t)
	conn := f.open(t, 1)
	f.open(t, 2)

	got := frame(t, f.dispatch.Dispatch(context.Background(), conn, []byte(`{"type":"get_online_count"}`)))

	assert.Equal(t, "online_count", got["type"])
	assert.Equal(t, float64(2), got["count"])
}

func TestDispatcher_CheckUserStatus(t *testing.T) {
	f := newFixture(t)
	conn := f.open(t, 1)
	other := f.open(t, 2)
	f.lifecycle.Close(context.Background(), other)

	online := frame(t, f.dispatch.Dispatch(context.Background(), conn, []byte(`{"type":"check_user_status","targetUserId":1}`)))
	assert.Equal(t, true, online["online"])
	assert.Nil(t, online["lastSeen"])

	offline := frame(t, f.dispatch.Dispatch(context.Background(), conn, []byte(`{"type":"check_user_status","targetUserId":"2"}`)))
	assert.Equal(t, false, offline["online"])
	assert.NotNil(t, offline["lastSeen"])

	unknown := frame(t, f.dispatch.Dispatch(context.Background(), conn, []byte(`{"type":"check_user_status","targetUserId":999}`)))
	assert.Equal(t, "user_status", unknown["type"])
	assert.Equal(t, float64(999), unknown["userId"])
	assert.Equal(t, false, unknown["online"])
	assert.Nil(t, unknown["lastSeen"])
}

func TestDispatcher_GetAllUsers(t *testing.T) {
	f := newFixture(t)
	conn := f.open(t, 2)
	f.open(t, 1)

	got := frame(t, f.dispatch.Dispatch(context.Background(), conn, []byte(`{"type":"get_all_users"}`)))

	users, ok := got["users"].([]any)
	require.True(t, ok)
	require.Len(t, users, 2)
	first := users[0].(map[string]any)
	assert.Equal(t, float64(1), first["userId"])
	assert.Equal(t, "online", first["status"])
}

func TestDispatcher_Ping(t *testing.T) {
	f := newFixture(t)
	conn := f.open(t, 1)

	reply := f.dispatch.Dispatch(context.Background(), conn, []byte(`{"type":"ping"}`))

	assert.Equal(t, event.Pong, reply.GetKind())
}

func TestDispatcher_SetStatus(t *testing.T) {
	f := newFixture(t)
	caller := f.open(t, 1)
	watcher := f.open(t, 2)
	drain(caller)
	drain(watcher)
	saves := f.persist.n.Load()

	reply := f.dispatch.Dispatch(context.Background(), caller, []byte(`{"type":"set_status","status":"offline"}`))

	got := frame(t, reply)
	assert.Equal(t, "status_updated", got["type"])
	assert.Equal(t, "offline", got["status"])

	assert.Equal(t, 1, f.presence.OnlineCount())
	up, _ := f.presence.Get(1)
	assert.Equal(t, model.StatusOffline, up.Status)
	assert.NotNil(t, up.LastSeen)
	assert.Greater(t, f.persist.n.Load(), saves)

	for _, conn := range []interface{ Recv() <-chan event.Eventer }{caller, watcher} {
		ev := <-conn.Recv()
		change := frame(t, ev)
		assert.Equal(t, "user_status_change", change["type"])
		assert.Equal(t, float64(1), change["userId"])
		assert.Equal(t, "offline", change["status"])
		assert.Equal(t, float64(1), change["onlineCount"])
	}
	assert.Equal(t, 3, f.exporter.len(), "two connects and one status change")
}

func TestDispatcher_SetStatus_UnchangedDoesNotBroadcast(t *testing.T) {
	f := newFixture(t)
	caller := f.open(t, 1)
	drain(caller)
	exported := f.exporter.len()

	reply := f.dispatch.Dispatch(context.Background(), caller, []byte(`{"type":"set_status","status":"online"}`))

	assert.Equal(t, event.StatusUpdated, reply.GetKind())
	assert.Empty(t, drain(caller))
	assert.Equal(t, exported, f.exporter.len())
}
