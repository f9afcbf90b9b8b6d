package store

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

func sampleSnapshot() model.Snapshot {
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return model.Snapshot{
		"1": {UserID: 1, ConnectionID: "conn-1", Status: model.StatusOnline},
		"2": {UserID: 2, ConnectionID: "conn-2", Status: model.StatusOffline, LastSeen: &seen},
	}
}

func assertSameTuples(t *testing.T, want, got model.Snapshot) {
	t.Helper()
	require.Len(t, got, len(want))
	for key, w := range want {
		g, ok := got[key]
		require.True(t, ok, "missing user %s", key)
		assert.Equal(t, w.UserID, g.UserID)
		assert.Equal(t, w.Status, g.Status)
		if w.LastSeen == nil {
			assert.Nil(t, g.LastSeen)
			continue
		}
		require.NotNil(t, g.LastSeen)
		assert.True(t, w.LastSeen.Equal(*g.LastSeen))
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	want := sampleSnapshot()

	require.NoError(t, NewFileStore(fs, "data").Save(ctx, want))

	got, err := NewFileStore(fs, "data").Load(ctx)
	require.NoError(t, err)
	assertSameTuples(t, want, got)
}

func TestFileStore_NoTempLeftBehind(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "data")

	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	exists, err := afero.Exists(fs, s.TempPath())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileStore_RotatesBackup(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(afero.NewMemMapFs(), "data")

	first := model.Snapshot{"1": {UserID: 1, Status: model.StatusOnline}}
	second := sampleSnapshot()
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	backup, err := s.LoadBackup(ctx)
	require.NoError(t, err)
	assertSameTuples(t, first, backup)

	current, err := s.Load(ctx)
	require.NoError(t, err)
	assertSameTuples(t, second, current)
}

func TestFileStore_LoadMissing(t *testing.T) {
	_, err := NewFileStore(afero.NewMemMapFs(), "data").Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestFileStore_CorruptCurrentFallsBackToBackup(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "data")

	first := model.Snapshot{"1": {UserID: 1, Status: model.StatusOffline}}
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, sampleSnapshot()))
	require.NoError(t, afero.WriteFile(fs, s.CurrentPath(), []byte(`{"1": {`), 0o644))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assertSameTuples(t, first, got)
}

func TestFileStore_SaveFailsOnReadOnlyFs(t *testing.T) {
	ctx := context.Background()
	base := afero.NewMemMapFs()
	require.NoError(t, NewFileStore(base, "data").Save(ctx, sampleSnapshot()))

	ro := NewFileStore(afero.NewReadOnlyFs(base), "data")
	err := ro.Save(ctx, model.Snapshot{})
	require.Error(t, err)

	// The committed generation is untouched.
	got, err := ro.Load(ctx)
	require.NoError(t, err)
	assertSameTuples(t, sampleSnapshot(), got)
}
