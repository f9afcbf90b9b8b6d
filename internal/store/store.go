// Package store persists presence snapshots and recovers them after a crash.
package store

import (
	"context"
	"errors"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

var (
	// ErrNoSnapshot is returned when the requested generation was never written.
	ErrNoSnapshot = errors.New("snapshot not found")
	// ErrCorrupt is returned when a generation exists but cannot be decoded.
	ErrCorrupt = errors.New("snapshot corrupt")
)

// SnapshotStore reads and writes the durable presence snapshot.
// Save must never expose a half-written current generation to readers.
type SnapshotStore interface {
	Save(ctx context.Context, snap model.Snapshot) error
	// Load returns the current generation, falling back to the backup when the
	// current one is missing or corrupt.
	Load(ctx context.Context) (model.Snapshot, error)
	// LoadBackup returns the previous generation.
	LoadBackup(ctx context.Context) (model.Snapshot, error)
	Close() error
}
