package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/infra/server/httpsrv/interceptors"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/service"
)

type WSHandler struct {
	logger     *slog.Logger
	lifecycle  service.Lifecycle
	dispatcher service.Dispatcher
	upgrader   websocket.Upgrader

	readLimit  int64
	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
	replyWait  time.Duration
}

func NewWSHandler(cfg *config.Config, logger *slog.Logger, lifecycle service.Lifecycle, dispatcher service.Dispatcher) *WSHandler {
	pongWait := cfg.Server.PongWait
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	writeWait := cfg.Server.WriteWait
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}

	return &WSHandler{
		logger:     logger,
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Security: adjust for production
		},
		readLimit:  cfg.Server.ReadLimit,
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pongWait * 9 / 10,
		replyWait:  writeWait,
	}
}

// ServeHTTP expects the identity middleware to have resolved the user.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. IDENTITY (resolved by interceptors.NewIdentityMiddleware)
	user, ok := interceptors.GetUser(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WS_UPGRADE_FAILED", "err", err, "user_id", user.ID)
		return
	}
	defer ws.Close()

	// 3. OPEN THROUGH THE LIFECYCLE MANAGER
	ctx := r.Context()
	conn := h.lifecycle.Open(ctx, user, model.ConnectMetadata{
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})

	go h.writePump(ctx, ws, conn)

	// 4. READ LOOP owns the close decision
	if err := h.readPump(ctx, ws, conn); err != nil {
		h.lifecycle.Fail(ctx, conn, err)
		return
	}
	h.lifecycle.Close(ctx, conn)
}

// readPump returns nil on a clean close and the cause otherwise.
func (h *WSHandler) readPump(ctx context.Context, ws *websocket.Conn, conn registry.Connector) error {
	if h.readLimit > 0 {
		ws.SetReadLimit(h.readLimit)
	}
	_ = ws.SetReadDeadline(time.Now().Add(h.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if isGracefulClose(err) || !conn.IsOpen() {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.pongWait))

		reply := h.dispatcher.Dispatch(ctx, conn, data)
		if reply != nil && !conn.Send(reply, h.replyWait) {
			h.logger.Debug("WS_REPLY_DROPPED", "conn_id", conn.GetID(), "event_type", reply.GetKind().String())
		}
	}
}

// [HOT_PATH] writePump is the only writer on the socket.
func (h *WSHandler) writePump(ctx context.Context, ws *websocket.Conn, conn registry.Connector) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		// Unblocks readPump when the connector was closed from our side.
		_ = ws.Close()
	}()

	for {
		select {
		case <-conn.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.writeWait))
			return

		case ev := <-conn.Recv():
			data, err := event.Marshal(ev)
			if err != nil {
				h.logger.Error("WS_EVENT_ENCODE_FAILED", "err", err, "event_type", ev.GetKind().String())
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("WS_SEND_FAILED", "err", err, "conn_id", conn.GetID())
				h.lifecycle.Fail(ctx, conn, err)
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.lifecycle.Fail(ctx, conn, err)
				return
			}
		}
	}
}

func isGracefulClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
