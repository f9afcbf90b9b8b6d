package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

const (
	currentName = "user_state.json"
	backupName  = "user_state_backup.json"
	tempName    = "user_state.json.tmp"
)

var _ SnapshotStore = (*FileStore)(nil)

// FileStore keeps the snapshot as JSON in dir: the current generation, the
// previous one as backup, and a temp file that only exists mid-write.
type FileStore struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// NewFileStore uses the OS filesystem when fs is nil.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{fs: fs, dir: dir}
}

func (s *FileStore) CurrentPath() string { return filepath.Join(s.dir, currentName) }
func (s *FileStore) BackupPath() string  { return filepath.Join(s.dir, backupName) }
func (s *FileStore) TempPath() string    { return filepath.Join(s.dir, tempName) }

// Save writes temp, moves current to backup, then promotes temp.
// The promotion rename is the only write that touches the current path.
func (s *FileStore) Save(ctx context.Context, snap model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap == nil {
		snap = model.Snapshot{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	if err := s.writeTemp(data); err != nil {
		_ = s.fs.Remove(s.TempPath())
		return fmt.Errorf("write temp snapshot: %w", err)
	}

	if _, err := s.fs.Stat(s.CurrentPath()); err == nil {
		if err := s.fs.Rename(s.CurrentPath(), s.BackupPath()); err != nil {
			_ = s.fs.Remove(s.TempPath())
			return fmt.Errorf("rotate backup: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		_ = s.fs.Remove(s.TempPath())
		return fmt.Errorf("stat snapshot: %w", err)
	}

	if err := s.fs.Rename(s.TempPath(), s.CurrentPath()); err != nil {
		_ = s.fs.Remove(s.TempPath())
		return fmt.Errorf("promote snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) writeTemp(data []byte) error {
	f, err := s.fs.OpenFile(s.TempPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *FileStore) Load(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	snap, err := s.read(s.CurrentPath())
	s.mu.Unlock()
	if err == nil {
		return snap, nil
	}

	backup, berr := s.LoadBackup(ctx)
	if berr != nil {
		return nil, errors.Join(err, berr)
	}
	return backup, nil
}

func (s *FileStore) LoadBackup(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.BackupPath())
}

func (s *FileStore) read(path string) (model.Snapshot, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoSnapshot)
		}
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	snap := model.Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrCorrupt, err)
	}
	return snap, nil
}

func (s *FileStore) Close() error { return nil }
