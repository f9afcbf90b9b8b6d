package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/telemetry"
)

const defaultSaveTimeout = 5 * time.Second

// Source is the part of the presence registry the persister snapshots and restores.
type Source interface {
	Snapshot() model.Snapshot
	Restore(snap model.Snapshot) int
}

// Scheduler is what the lifecycle manager and dispatcher depend on: a
// non-blocking request to persist the current state.
type Scheduler interface {
	Schedule()
}

// Persister moves snapshot writes off the request path. Requests coalesce:
// any number of Schedule calls while a write is running produce one more write.
type Persister struct {
	store   SnapshotStore
	source  Source
	logger  *slog.Logger
	timeout time.Duration

	kick     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// saveMu keeps the worker and Flush from interleaving writes.
	saveMu sync.Mutex
}

func NewPersister(store SnapshotStore, source Source, logger *slog.Logger) *Persister {
	return &Persister{
		store:   store,
		source:  source,
		logger:  logger,
		timeout: defaultSaveTimeout,
		kick:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// Start launches the background worker.
func (p *Persister) Start() {
	p.wg.Add(1)
	go p.loop()
}

func (p *Persister) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case <-p.kick:
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			_ = p.save(ctx)
			cancel()
		}
	}
}

// Schedule requests a write and returns immediately.
func (p *Persister) Schedule() {
	select {
	case p.kick <- struct{}{}:
	default:
		// a write is already pending and will pick up this state
	}
}

// Flush writes the current state synchronously. Failures are handled by the
// recovery policy; the error is returned for logging only.
func (p *Persister) Flush(ctx context.Context) error {
	return p.save(ctx)
}

// Stop halts the worker and writes a final snapshot.
func (p *Persister) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
	return p.Flush(ctx)
}

func (p *Persister) save(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	snap := p.source.Snapshot()
	start := time.Now()
	if err := p.store.Save(ctx, snap); err != nil {
		telemetry.Inc(ctx, telemetry.SnapshotFailures)
		p.logger.Error("SNAPSHOT_SAVE_FAILED", "err", err, "users", len(snap))
		p.restoreFromBackup(ctx)
		return err
	}

	telemetry.Inc(ctx, telemetry.SnapshotSaves)
	p.logger.Debug("SNAPSHOT_SAVED",
		"users", len(snap),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// restoreFromBackup is the best-effort recovery after a failed write.
func (p *Persister) restoreFromBackup(ctx context.Context) {
	backup, err := p.store.LoadBackup(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			p.logger.Warn("SNAPSHOT_BACKUP_MISSING")
			return
		}
		p.logger.Error("SNAPSHOT_BACKUP_LOAD_FAILED", "err", err)
		return
	}

	restored := p.source.Restore(backup)
	telemetry.Inc(ctx, telemetry.SnapshotRestores)
	p.logger.Info("SNAPSHOT_RESTORED_FROM_BACKUP", "restored", restored)
}

// Recover loads the last committed snapshot into the registry at startup.
// A missing snapshot is a clean first start, not an error.
func (p *Persister) Recover(ctx context.Context) (int, error) {
	snap, err := p.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			p.logger.Info("SNAPSHOT_NONE_FOUND")
			return 0, nil
		}
		return 0, err
	}

	restored := p.source.Restore(snap)
	p.logger.Info("SNAPSHOT_RECOVERED", "users", restored)
	return restored, nil
}
