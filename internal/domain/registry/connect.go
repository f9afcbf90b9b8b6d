package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (REGISTRY/HUB)
// This allows mocking and decoupling from the concrete transport.
type Connector interface {
	GetID() string
	GetUserID() model.UserID
	Info() model.Connection
	Send(ev event.Eventer, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Recv() <-chan event.Eventer
	Done() <-chan struct{}
	IsOpen() bool
	Close() // Terminate connection and release resources
	Dropped() uint64
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	info     model.Connection
	ctx      context.Context
	cancelFn context.CancelFunc
	// sendCh is never closed: writers race with Close, readers watch Done.
	sendCh       chan event.Eventer
	closeOnce    sync.Once // [PROTECTION]
	droppedCount atomic.Uint64
}

// NewConnector allocates the transport handle for one accepted socket.
func NewConnector(ctx context.Context, userID model.UserID, meta model.ConnectMetadata, bufferSize int) Connector {
	if bufferSize <= 0 {
		bufferSize = defaultSendBuffer
	}
	childCtx, cancel := context.WithCancel(ctx)

	return &connect{
		info: model.Connection{
			ID:          "conn-" + uuid.NewString(),
			UserID:      userID,
			ConnectedAt: time.Now().UTC(),
			Metadata:    meta,
		},
		ctx:      childCtx,
		cancelFn: cancel,
		sendCh:   make(chan event.Eventer, bufferSize),
	}
}

func (c *connect) GetID() string           { return c.info.ID }
func (c *connect) GetUserID() model.UserID { return c.info.UserID }
func (c *connect) Info() model.Connection  { return c.info }
func (c *connect) Recv() <-chan event.Eventer {
	return c.sendCh
}
func (c *connect) Done() <-chan struct{} { return c.ctx.Done() }
func (c *connect) Dropped() uint64       { return c.droppedCount.Load() }

// IsOpen reports whether the connector still accepts events.
func (c *connect) IsOpen() bool {
	return c.ctx.Err() == nil
}

// Send attempts to push an event into the session mailbox.
// If the mailbox stays full for the whole timeout, lower priority events are shed.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	if !c.IsOpen() {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	// 1. [LIFECYCLE_GATE] Abort if the transport died while we were waiting.
	case <-c.ctx.Done():
		return false

	// 2. [PRIMARY_DELIVERY]
	case c.sendCh <- ev:
		return true

	// 3. [BACKPRESSURE_THRESHOLD] Persistent slow consumer.
	case <-timer.C:
		return c.handleBackpressure(ev)
	}
}

// handleBackpressure manages full buffers by dropping low-priority events.
func (c *connect) handleBackpressure(ev event.Eventer) bool {
	if ev.GetPriority() <= event.PriorityLow {
		c.droppedCount.Add(1)
		return false
	}

	// Evict one queued event to make room if it is less important.
	select {
	case oldEv := <-c.sendCh:
		if oldEv.GetPriority() < ev.GetPriority() {
			select {
			case c.sendCh <- ev:
				c.droppedCount.Add(1)
				return true
			default:
			}
		} else {
			select {
			case c.sendCh <- oldEv:
			default:
			}
		}
	default:
	}

	c.droppedCount.Add(1)
	return false
}

// Close terminates the session. Safe to call from the hub, the transport and
// the lifecycle manager concurrently.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
	})
}
