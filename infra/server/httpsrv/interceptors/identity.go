package interceptors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/service"
)

type contextKey string

const (
	// UserContextKey is the key used to store/retrieve the resolved user from context
	UserContextKey contextKey = "presence_user"

	// UserIDParam is the query parameter carrying the claimed identity.
	UserIDParam = "userId"
)

// IdentityResolver is the part of the lifecycle manager the middleware needs.
type IdentityResolver interface {
	Resolve(ctx context.Context, raw string) (model.User, error)
}

// NewIdentityMiddleware resolves ?userId= before the handler runs, so a bad
// identity is rejected with a plain HTTP status before any upgrade.
func NewIdentityMiddleware(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// [PRE_AUTH] Validate identity before allowing the socket to open
			raw := r.URL.Query().Get(UserIDParam)
			user, err := resolver.Resolve(r.Context(), raw)
			if err != nil {
				code := StatusFor(err)
				logger.Warn("CONNECT_REJECTED", "user_id", raw, "status", code, "err", err)
				http.Error(w, http.StatusText(code)+": "+err.Error(), code)
				return
			}

			// [ENRICHMENT] Inject the identity into the context for downstream handlers
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StatusFor maps identity errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidUserID):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownUser):
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

// GetUser is a helper to extract the identity from context safely.
func GetUser(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(UserContextKey).(model.User)
	return u, ok
}
