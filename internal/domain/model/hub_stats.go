package model

// HubStats is the operational summary served on /stats.
// DroppedEvents sums events shed by backpressure on live connections.
type HubStats struct {
	TotalUsers       int    `json:"total_users"`
	OnlineUsers      int    `json:"online_users"`
	TotalConnections int    `json:"total_connections"`
	DroppedEvents    uint64 `json:"dropped_events"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}
