package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/webitel/im-presence-service/config"
)

const readHeaderTimeout = 10 * time.Second

// Server owns the listener and the root router. Handler modules mount their
// routes on Router before the fx start hook runs.
type Server struct {
	*http.Server
	Router chi.Router

	logger   *slog.Logger
	listener net.Listener
	shutdown time.Duration
}

func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		LoggingMiddleware(logger),
	)

	return &Server{
		Server: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           r,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		Router:   r,
		logger:   logger,
		shutdown: cfg.Server.ShutdownTimeout,
	}
}

// Start binds the address synchronously so a busy port fails the fx start.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVER_FAILED", "err", err)
		}
	}()
	s.logger.Info("HTTP_SERVER_STARTED", "addr", ln.Addr().String())
	return nil
}

// Stop drains in-flight requests. Hijacked websockets are not tracked by
// net/http; the registry shutdown closes those.
func (s *Server) Stop(ctx context.Context) error {
	if s.shutdown > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdown)
		defer cancel()
	}
	err := s.Shutdown(ctx)
	s.logger.Info("HTTP_SERVER_STOPPED", "err", err)
	return err
}

// [LOGGING_MIDDLEWARE]
// Structured access log with latency and request id.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("HTTP_REQUEST_HANDLED",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
