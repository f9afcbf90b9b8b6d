package interceptors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/service"
)

type resolverFunc func(ctx context.Context, raw string) (model.User, error)

func (f resolverFunc) Resolve(ctx context.Context, raw string) (model.User, error) { return f(ctx, raw) }

func TestIdentityMiddleware(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, raw string) (model.User, error) {
		switch raw {
		case "1":
			return model.User{ID: 1, Name: "John Doe"}, nil
		case "2":
			return model.User{}, fmt.Errorf("%w: 2", service.ErrUnknownUser)
		case "3":
			return model.User{}, errors.New("directory unavailable")
		default:
			return model.User{}, service.ErrInvalidUserID
		}
	})

	var seen model.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := NewIdentityMiddleware(resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))(next)

	tests := []struct {
		query string
		code  int
	}{
		{query: "?userId=1", code: http.StatusNoContent},
		{query: "?userId=2", code: http.StatusNotFound},
		{query: "?userId=3", code: http.StatusServiceUnavailable},
		{query: "?userId=x", code: http.StatusBadRequest},
		{query: "", code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil))
		assert.Equal(t, tt.code, rec.Code, tt.query)
	}

	assert.Equal(t, model.UserID(1), seen.ID)
}

func TestGetUser_Missing(t *testing.T) {
	_, ok := GetUser(context.Background())
	assert.False(t, ok)
}
