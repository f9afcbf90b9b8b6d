package model

import "time"

// ConnectMetadata is exported for transport and analytics layers.
type ConnectMetadata struct {
	RemoteIP  string `json:"remote_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Connection describes one live transport session.
// It is correlated with the transport by ID, never by decorating the socket.
type Connection struct {
	ID          string          `json:"connection_id"`
	UserID      UserID          `json:"user_id"`
	ConnectedAt time.Time       `json:"connected_at"`
	Metadata    ConnectMetadata `json:"metadata"`
}
