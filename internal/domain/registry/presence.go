package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

// Presencer owns user presence and the online counter.
type Presencer interface {
	GetOrCreate(userID model.UserID, connID string) (model.UserPresence, bool)
	SetStatus(userID model.UserID, status model.Status) bool
	MarkLastSeen(userID model.UserID)
	Get(userID model.UserID) (model.UserPresence, bool)
	List() []model.UserPresence
	OnlineCount() int
	Len() int
	Detach(userID model.UserID, connID string) DetachResult
	Snapshot() model.Snapshot
	Restore(snap model.Snapshot) int
}

// DetachResult describes the outcome of removing one session from a user.
type DetachResult struct {
	Found       bool
	WentOffline bool
	Remaining   int
	OnlineCount int
	Presence    model.UserPresence
}

// Presence is the in-memory presence registry.
//
// The online counter is private and changes only inside setStatusLocked,
// so online always equals the number of cells in StatusOnline.
type Presence struct {
	mu     sync.RWMutex
	cells  map[model.UserID]*cell
	online int
	opts   options
}

func NewPresence(opts ...Option) *Presence {
	p := &Presence{
		cells: make(map[model.UserID]*cell),
		opts:  defaultOptions(),
	}
	for _, opt := range opts {
		opt(&p.opts)
	}
	return p
}

// setStatusLocked is the single place where status and the counter move.
func (p *Presence) setStatusLocked(c *cell, status model.Status) bool {
	if !status.Valid() || c.status == status {
		return false
	}

	switch status {
	case model.StatusOnline:
		p.online++
		c.lastSeen = nil
	case model.StatusOffline:
		if p.online > 0 {
			p.online--
		}
	}
	c.status = status
	return true
}

// GetOrCreate attaches connID to the user and forces it online.
// The boolean reports whether the user transitioned to online.
func (p *Presence) GetOrCreate(userID model.UserID, connID string) (model.UserPresence, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.cells[userID]
	if !ok {
		c = newCell(userID)
		p.cells[userID] = c
	}
	c.attach(connID)
	changed := p.setStatusLocked(c, model.StatusOnline)

	return c.presence(), changed
}

// SetStatus is a no-op for unknown users, invalid values and unchanged status.
func (p *Presence) SetStatus(userID model.UserID, status model.Status) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.cells[userID]
	if !ok {
		return false
	}
	return p.setStatusLocked(c, status)
}

func (p *Presence) MarkLastSeen(userID model.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.cells[userID]; ok {
		c.markSeen(p.opts.now())
	}
}

func (p *Presence) Get(userID model.UserID) (model.UserPresence, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.cells[userID]
	if !ok {
		return model.UserPresence{}, false
	}
	return c.presence(), true
}

// List returns presences ordered by user id.
func (p *Presence) List() []model.UserPresence {
	p.mu.RLock()
	out := make([]model.UserPresence, 0, len(p.cells))
	for _, c := range p.cells {
		out = append(out, c.presence())
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (p *Presence) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cells)
}

// Detach removes one session. When it was the last one the user goes offline
// and lastSeen is stamped, in the same critical section.
func (p *Presence) Detach(userID model.UserID, connID string) DetachResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.cells[userID]
	if !ok {
		return DetachResult{OnlineCount: p.online}
	}

	res := DetachResult{Found: true, Remaining: c.detach(connID)}
	if res.Remaining == 0 {
		res.WentOffline = p.setStatusLocked(c, model.StatusOffline)
		c.markSeen(p.opts.now())
	}
	res.OnlineCount = p.online
	res.Presence = c.presence()
	return res
}

func (p *Presence) Snapshot() model.Snapshot {
	return model.NewSnapshot(p.List())
}

// Restore merges a snapshot into the registry, always as offline. A record
// is taken only for users that are unknown, or session-less with an older
// (or missing) lastSeen than the record; live users and fresher offline
// state are kept. It returns the number of records taken from the snapshot.
func (p *Presence) Restore(snap model.Snapshot) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	restored := 0
	for key, rec := range snap {
		userID := rec.UserID
		if userID == 0 {
			parsed, err := model.ParseUserID(key)
			if err != nil {
				continue
			}
			userID = parsed
		}

		if c, ok := p.cells[userID]; ok {
			if len(c.sessions) > 0 || !olderSeen(c.lastSeen, rec.LastSeen) {
				continue
			}
			p.setStatusLocked(c, model.StatusOffline)
			c.connectionID = rec.ConnectionID
			c.markSeen(*rec.LastSeen)
			restored++
			continue
		}

		c := newCell(userID)
		c.connectionID = rec.ConnectionID
		if rec.LastSeen != nil {
			c.markSeen(*rec.LastSeen)
		}
		p.cells[userID] = c
		restored++
	}
	return restored
}

// olderSeen reports whether the in-memory stamp is strictly older than the record's.
func olderSeen(mem, rec *time.Time) bool {
	if rec == nil {
		return false
	}
	return mem == nil || mem.Before(*rec)
}
