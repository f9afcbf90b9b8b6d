package registry

import (
	"time"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

// cell is the per-user unit of the presence registry. It owns every live
// session id of the user; the user goes offline only when the set empties.
// All access happens under Presence.mu.
type cell struct {
	userID model.UserID

	// connectionID is the most recent session, kept for the wire and snapshot form.
	connectionID string
	status       model.Status
	lastSeen     *time.Time

	sessions map[string]struct{}
}

func newCell(userID model.UserID) *cell {
	return &cell{
		userID:   userID,
		status:   model.StatusOffline,
		sessions: make(map[string]struct{}),
	}
}

func (c *cell) attach(connID string) {
	c.sessions[connID] = struct{}{}
	c.connectionID = connID
}

// detach drops a session and returns how many remain.
func (c *cell) detach(connID string) int {
	delete(c.sessions, connID)
	if c.connectionID == connID {
		// Keep pointing at a live session when there is one.
		for id := range c.sessions {
			c.connectionID = id
			break
		}
	}
	return len(c.sessions)
}

func (c *cell) markSeen(at time.Time) {
	c.lastSeen = &at
}

func (c *cell) presence() model.UserPresence {
	p := model.UserPresence{
		UserID:       c.userID,
		ConnectionID: c.connectionID,
		Status:       c.status,
		Connections:  len(c.sessions),
	}
	if c.lastSeen != nil {
		seen := *c.lastSeen
		p.LastSeen = &seen
	}
	return p
}
