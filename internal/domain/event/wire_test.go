package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestMarshal_FlattensPayload(t *testing.T) {
	ev := NewStatusChange(2, model.StatusOffline, 2)

	data, err := Marshal(ev)
	require.NoError(t, err)

	got := decode(t, data)
	assert.Equal(t, "user_status_change", got["type"])
	assert.Equal(t, float64(2), got["userId"])
	assert.Equal(t, "offline", got["status"])
	assert.Equal(t, float64(2), got["onlineCount"])

	ts, ok := got["timestamp"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(TimestampLayout, ts)
	require.NoError(t, err)
	assert.WithinDuration(t, ev.GetOccurredAt(), parsed, time.Millisecond)
	assert.Equal(t, byte('Z'), ts[len(ts)-1], "timestamps are UTC")
}

func TestMarshal_CachesBytes(t *testing.T) {
	ev := NewOnlineCount(4)

	first, err := Marshal(ev)
	require.NoError(t, err)
	second, err := Marshal(ev)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, ev.GetCached())
}

func TestMarshal_UserStatusUnknownTarget(t *testing.T) {
	data, err := Marshal(NewUserStatus(77, model.UserPresence{}, false))
	require.NoError(t, err)

	got := decode(t, data)
	assert.Equal(t, "user_status", got["type"])
	assert.Equal(t, false, got["online"])
	assert.Contains(t, got, "lastSeen")
	assert.Nil(t, got["lastSeen"])
}

func TestMarshal_LastSeenUsesTimestampLayout(t *testing.T) {
	seen := time.Date(2024, 5, 1, 12, 30, 15, 123456789, time.FixedZone("EEST", 3*3600))
	p := model.UserPresence{UserID: 5, Status: model.StatusOffline, LastSeen: &seen}

	data, err := Marshal(NewUserStatus(5, p, true))
	require.NoError(t, err)
	got := decode(t, data)
	assert.Equal(t, "2024-05-01T09:30:15.123Z", got["lastSeen"])
	assert.Equal(t, len(got["timestamp"].(string)), len(got["lastSeen"].(string)))

	data, err = Marshal(NewAllUsers([]model.UserPresence{p}))
	require.NoError(t, err)
	var list struct {
		Users []struct {
			LastSeen string `json:"lastSeen"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Users, 1)
	parsed, err := time.Parse(TimestampLayout, list.Users[0].LastSeen)
	require.NoError(t, err)
	assert.True(t, seen.Truncate(time.Millisecond).Equal(parsed))
}

func TestMarshal_PongHasOnlyEnvelope(t *testing.T) {
	data, err := Marshal(NewPong())
	require.NoError(t, err)

	got := decode(t, data)
	assert.Len(t, got, 2)
	assert.Equal(t, "pong", got["type"])
}

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "valid", raw: `{"type":"ping"}`, want: "ping"},
		{name: "broken json", raw: `{bad json`, wantErr: ErrMalformed},
		{name: "not an object", raw: `[1,2]`, wantErr: ErrMalformed},
		{name: "missing type", raw: `{"status":"online"}`, wantErr: ErrMissingType},
		{name: "empty type", raw: `{"type":""}`, wantErr: ErrMissingType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInbound([]byte(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Type)
		})
	}
}

func TestInbound_Target(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		want        model.UserID
		wantPresent bool
		wantErr     bool
	}{
		{name: "number", raw: `{"type":"check_user_status","targetUserId":5}`, want: 5, wantPresent: true},
		{name: "string", raw: `{"type":"check_user_status","targetUserId":"5"}`, want: 5, wantPresent: true},
		{name: "absent", raw: `{"type":"check_user_status"}`},
		{name: "null", raw: `{"type":"check_user_status","targetUserId":null}`},
		{name: "garbage", raw: `{"type":"check_user_status","targetUserId":"abc"}`, wantPresent: true, wantErr: true},
		{name: "negative", raw: `{"type":"check_user_status","targetUserId":-1}`, wantPresent: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInbound([]byte(tt.raw))
			require.NoError(t, err)

			id, present, err := in.Target()
			assert.Equal(t, tt.wantPresent, present)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestSystemEvent_RoutingKey(t *testing.T) {
	assert.Equal(t, "im_presence.8.user.status.v1", NewStatusChange(8, model.StatusOnline, 1).GetRoutingKey())
	assert.Empty(t, NewPong().GetRoutingKey())
}
