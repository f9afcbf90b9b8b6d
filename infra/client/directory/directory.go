// Package directory resolves numeric user ids to directory users, either from
// a static list or from a remote HTTP directory service.
package directory

import (
	"context"
	"errors"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

// ErrUnknownUser is returned when the directory has no such user.
var ErrUnknownUser = errors.New("unknown user")

// Source is implemented by every directory backend.
type Source interface {
	Lookup(ctx context.Context, id model.UserID) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
}
