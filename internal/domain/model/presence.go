package model

import "time"

// Status is the connectivity state of a user.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the two known states.
func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// UserPresence is a point-in-time copy of a user's presence.
// Registries hand out copies; mutating one never changes the registry.
type UserPresence struct {
	UserID       UserID
	ConnectionID string
	Status       Status
	LastSeen     *time.Time
	// Connections is the number of live connections attached to the user.
	Connections int
}

// Online is a shorthand used by the protocol replies.
func (p UserPresence) Online() bool { return p.Status == StatusOnline }

// PresenceRecord is the serializable form stored in snapshots.
type PresenceRecord struct {
	UserID       UserID     `json:"userId"`
	ConnectionID string     `json:"connectionId"`
	Status       Status     `json:"status"`
	LastSeen     *time.Time `json:"lastSeen"`
}

// Record converts the presence into its persisted form.
func (p UserPresence) Record() PresenceRecord {
	return PresenceRecord{
		UserID:       p.UserID,
		ConnectionID: p.ConnectionID,
		Status:       p.Status,
		LastSeen:     p.LastSeen,
	}
}

// Snapshot is the full persisted state keyed by the decimal user id.
type Snapshot map[string]PresenceRecord

// NewSnapshot builds a snapshot from presence copies.
func NewSnapshot(presences []UserPresence) Snapshot {
	snap := make(Snapshot, len(presences))
	for _, p := range presences {
		snap[p.UserID.String()] = p.Record()
	}
	return snap
}
