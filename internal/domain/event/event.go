package event

import (
	"time"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

type EventKind int16

const (
	Connected        EventKind = iota + 1 // [SYSTEM]
	Pong                                  // [SYSTEM]
	Error                                 // [SYSTEM]
	OnlineCount                           // [QUERY]
	UserStatus                            // [QUERY]
	AllUsers                              // [QUERY]
	StatusUpdated                         // [COMMAND]
	UserStatusChange                      // [BROADCAST]
)

var kindNames = map[EventKind]string{
	Connected:        "connected",
	Pong:             "pong",
	Error:            "error",
	OnlineCount:      "online_count",
	UserStatus:       "user_status",
	AllUsers:         "all_users",
	StatusUpdated:    "status_updated",
	UserStatusChange: "user_status_change",
}

// String returns the wire name of the kind.
func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Eventer defines the contract for all outbound packets flowing through the Hub.
type Eventer interface {
	GetID() string
	GetKind() EventKind
	// GetUserID is the subject of the event, zero for events not tied to a user.
	GetUserID() model.UserID
	GetPriority() EventPriority
	GetOccurredAt() time.Time
	GetPayload() any
	GetCached() any
	SetCached(any)
}

// Exportable defines an event that should be re-published to the message bus.
type Exportable interface {
	// We return the key only if the event is ready to be exported.
	// If it returns an empty string, the exporter will skip publishing.
	GetRoutingKey() string
}
