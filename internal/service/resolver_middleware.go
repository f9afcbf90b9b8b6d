package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

// ResolverMiddleware implements [DECORATOR_PATTERN] to add observability
// to identity resolution without touching the lookup logic.
type ResolverMiddleware struct {
	Next   Resolver
	Logger *slog.Logger
}

func NewResolverMiddleware(next Resolver, logger *slog.Logger) Resolver {
	return &ResolverMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *ResolverMiddleware) Resolve(ctx context.Context, raw string) (model.User, error) {
	start := time.Now()
	u, err := m.Next.Resolve(ctx, raw)
	m.log("USER_RESOLVE", raw, err, time.Since(start))
	return u, err
}

func (m *ResolverMiddleware) Lookup(ctx context.Context, id model.UserID) (model.User, error) {
	start := time.Now()
	u, err := m.Next.Lookup(ctx, id)
	m.log("USER_LOOKUP", id.String(), err, time.Since(start))
	return u, err
}

func (m *ResolverMiddleware) List(ctx context.Context) ([]model.User, error) {
	return m.Next.List(ctx)
}

func (m *ResolverMiddleware) log(op, id string, err error, d time.Duration) {
	switch {
	case err == nil:
		m.Logger.Debug(op+"_COMPLETED", "user_id", id, "duration_ms", d.Milliseconds())
	case errors.Is(err, ErrUnknownUser), errors.Is(err, ErrInvalidUserID):
		m.Logger.Info(op+"_REJECTED", "user_id", id, "err", err)
	default:
		m.Logger.Error(op+"_FAILED", "user_id", id, "err", err, "duration_ms", d.Milliseconds())
	}
}
