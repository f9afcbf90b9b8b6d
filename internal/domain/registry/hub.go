package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

// Hubber is the connection registry: connection id -> live transport handle.
type Hubber interface {
	// Connect allocates a connector sized by the hub configuration. It is not registered yet.
	Connect(ctx context.Context, userID model.UserID, meta model.ConnectMetadata) Connector
	Register(conn Connector)
	Unregister(connID string) bool
	Get(connID string) (Connector, bool)
	All() []Connector
	Len() int
	Shutdown()
}

// Hub implements a [READ_HEAVY] registry: broadcasts iterate it far more
// often than sockets come and go.
type Hub struct {
	conns sync.Map // map[string]Connector
	size  atomic.Int64
	opts  options
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{opts: defaultOptions()}
	for _, opt := range opts {
		opt(&h.opts)
	}
	return h
}

func (h *Hub) Connect(ctx context.Context, userID model.UserID, meta model.ConnectMetadata) Connector {
	return NewConnector(ctx, userID, meta, h.opts.sendBuffer)
}

// Register stores the transport under its id. Re-registering the same id is a no-op.
func (h *Hub) Register(conn Connector) {
	if _, loaded := h.conns.LoadOrStore(conn.GetID(), conn); !loaded {
		h.size.Add(1)
	}
}

// Unregister removes and closes the connector. It is [IDEMPOTENT] and reports
// whether the id was present.
func (h *Hub) Unregister(connID string) bool {
	val, ok := h.conns.LoadAndDelete(connID)
	if !ok {
		return false
	}
	h.size.Add(-1)
	if conn, ok := val.(Connector); ok {
		conn.Close()
	}
	return true
}

func (h *Hub) Get(connID string) (Connector, bool) {
	val, ok := h.conns.Load(connID)
	if !ok {
		return nil, false
	}
	conn, ok := val.(Connector)
	return conn, ok
}

// All returns a copy of the registered connectors, safe to range over while
// sockets register or leave.
func (h *Hub) All() []Connector {
	out := make([]Connector, 0, h.size.Load())
	h.conns.Range(func(_, val any) bool {
		if conn, ok := val.(Connector); ok {
			out = append(out, conn)
		}
		return true
	})
	return out
}

func (h *Hub) Len() int {
	return int(h.size.Load())
}

// Shutdown closes every connector so transport loops exit. Entries stay
// registered: Unregister remains the single removal path, so close cleanup
// still runs for each of them.
func (h *Hub) Shutdown() {
	h.conns.Range(func(_, val any) bool {
		if conn, ok := val.(Connector); ok {
			conn.Close()
		}
		return true
	})
}
