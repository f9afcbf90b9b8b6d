package service

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/im-presence-service/infra/client/directory"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

var (
	// ErrInvalidUserID means the transport supplied something that is not a user id.
	ErrInvalidUserID = model.ErrInvalidUserID
	// ErrUnknownUser means the directory has no user with that id.
	ErrUnknownUser = errors.New("user not found")
)

const defaultResolverCacheSize = 1024

// Resolver turns the identity supplied by the HTTP layer into a directory user.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (model.User, error)
	Lookup(ctx context.Context, id model.UserID) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

var _ Resolver = (*UserResolver)(nil)

// UserResolver applies a cache-aside strategy in front of the directory.
type UserResolver struct {
	source directory.Source
	cache  *lru.Cache[model.UserID, model.User]
}

// NewUserResolver provides a thread-safe resolver with an internal LRU cache.
func NewUserResolver(source directory.Source, cacheSize int) *UserResolver {
	if cacheSize <= 0 {
		cacheSize = defaultResolverCacheSize
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[model.UserID, model.User](cacheSize)

	return &UserResolver{
		source: source,
		cache:  cache,
	}
}

// Resolve parses the raw id and looks it up.
func (r *UserResolver) Resolve(ctx context.Context, raw string) (model.User, error) {
	id, err := model.ParseUserID(raw)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %q", ErrInvalidUserID, raw)
	}
	return r.Lookup(ctx, id)
}

func (r *UserResolver) Lookup(ctx context.Context, id model.UserID) (model.User, error) {
	// [HOT_PATH] Check LRU cache first to avoid a directory round trip.
	if cached, ok := r.cache.Get(id); ok {
		return cached, nil
	}

	u, err := r.source.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrUnknownUser) {
			return model.User{}, fmt.Errorf("%w: %s", ErrUnknownUser, id)
		}
		return model.User{}, fmt.Errorf("resolve user %s: %w", id, err)
	}

	// Only positive answers are cached so new users become visible at once.
	r.cache.Add(id, u)
	return u, nil
}

func (r *UserResolver) List(ctx context.Context) ([]model.User, error) {
	return r.source.List(ctx)
}
