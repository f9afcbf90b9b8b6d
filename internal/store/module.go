package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module("store",
	fx.Provide(
		NewSnapshotStore,
		func(s SnapshotStore, presence registry.Presencer, logger *slog.Logger) *Persister {
			return NewPersister(s, presence, logger)
		},
		func(p *Persister) Scheduler { return p },
	),
	fx.Invoke(func(lc fx.Lifecycle, s SnapshotStore, p *Persister, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if _, err := p.Recover(ctx); err != nil {
					// A damaged snapshot must not keep the service down.
					logger.Error("SNAPSHOT_RECOVERY_FAILED", "err", err)
				}
				p.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				if err := p.Stop(ctx); err != nil {
					logger.Warn("SNAPSHOT_FINAL_SAVE_FAILED", "err", err)
				}
				return s.Close()
			},
		})
	}),
)

// NewSnapshotStore builds the store selected by store.driver.
func NewSnapshotStore(cfg *config.Config) (SnapshotStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		return NewSQLiteStore(context.Background(), cfg.Store.SQLitePath)
	case "file", "":
		return NewFileStore(afero.NewOsFs(), cfg.Store.Dir), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
