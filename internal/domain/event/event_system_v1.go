package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// [GUARD] Ensure compliance with the Eventer interface.
var (
	_ Eventer    = (*SystemEvent)(nil)
	_ Exportable = (*SystemEvent)(nil)
)

// SystemEvent is a generic envelope for replies and presence notifications.
type SystemEvent struct {
	id         string
	userID     model.UserID
	kind       EventKind
	priority   EventPriority
	occurredAt time.Time
	payload    any

	mu     sync.Mutex
	cached any // wire bytes, shared by every recipient of a broadcast
}

func (e *SystemEvent) GetID() string              { return e.id }
func (e *SystemEvent) GetKind() EventKind         { return e.kind }
func (e *SystemEvent) GetUserID() model.UserID    { return e.userID }
func (e *SystemEvent) GetPriority() EventPriority { return e.priority }
func (e *SystemEvent) GetOccurredAt() time.Time   { return e.occurredAt }
func (e *SystemEvent) GetPayload() any            { return e.payload }

func (e *SystemEvent) GetCached() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cached
}

func (e *SystemEvent) SetCached(v any) {
	e.mu.Lock()
	e.cached = v
	e.mu.Unlock()
}

// GetRoutingKey is used for message broker exchange logic.
// Only presence transitions leave the process.
func (e *SystemEvent) GetRoutingKey() string {
	if e.kind != UserStatusChange {
		return ""
	}
	return fmt.Sprintf("im_presence.%s.user.status.v1", e.userID)
}

// NewSystemEvent is a universal factory for creating any signal.
func NewSystemEvent(userID model.UserID, kind EventKind, priority EventPriority, payload any) *SystemEvent {
	return &SystemEvent{
		id:         uuid.NewString(),
		userID:     userID,
		kind:       kind,
		priority:   priority,
		occurredAt: time.Now().UTC(),
		payload:    payload,
	}
}
