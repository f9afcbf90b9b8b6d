package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/im-presence-service/infra/client/directory"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/service"
)

// breakerState is implemented by directory sources guarded by a circuit breaker.
type breakerState interface {
	State() string
}

type errorBody struct {
	Error string `json:"error"`
}

// RESTHandler serves the read-only HTTP API next to the socket endpoint.
type RESTHandler struct {
	resolver  service.Resolver
	presence  registry.Presencer
	hub       registry.Hubber
	directory directory.Source
	logger    *slog.Logger
	startedAt time.Time
}

func NewRESTHandler(
	resolver service.Resolver,
	presence registry.Presencer,
	hub registry.Hubber,
	dir directory.Source,
	logger *slog.Logger,
) *RESTHandler {
	return &RESTHandler{
		resolver:  resolver,
		presence:  presence,
		hub:       hub,
		directory: dir,
		logger:    logger,
		startedAt: time.Now(),
	}
}

func (h *RESTHandler) Routes(r chi.Router) {
	r.Get("/api/users", h.ListUsers)
	r.Get("/api/users/{id}", h.GetUser)
	r.Get("/api/presence", h.ListPresence)
	r.Get("/stats", h.Stats)
	r.Get("/healthz", h.Health)
}

func (h *RESTHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.resolver.List(r.Context())
	if err != nil {
		h.logger.Error("DIRECTORY_LIST_FAILED", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Directory unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *RESTHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, user)
	case errors.Is(err, service.ErrInvalidUserID):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid user id"})
	case errors.Is(err, service.ErrUnknownUser):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "User not found"})
	default:
		h.logger.Error("DIRECTORY_LOOKUP_FAILED", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Directory unavailable"})
	}
}

// ListPresence returns every known user in snapshot form, ordered by id.
func (h *RESTHandler) ListPresence(w http.ResponseWriter, _ *http.Request) {
	list := h.presence.List()
	out := make([]model.PresenceRecord, 0, len(list))
	for _, p := range list {
		out = append(out, p.Record())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RESTHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	conns := h.hub.All()
	var dropped uint64
	for _, conn := range conns {
		dropped += conn.Dropped()
	}

	writeJSON(w, http.StatusOK, model.HubStats{
		TotalUsers:       h.presence.Len(),
		OnlineUsers:      h.presence.OnlineCount(),
		TotalConnections: len(conns),
		DroppedEvents:    dropped,
		UptimeSeconds:    int64(time.Since(h.startedAt).Seconds()),
	})
}

// Health stays 200 while the directory breaker is open: presence keeps
// working, only name lookups fail.
func (h *RESTHandler) Health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{"status": "ok", "directory": "static"}
	if b, ok := h.directory.(breakerState); ok {
		state := b.State()
		body["directory"] = state
		if state == "open" {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
