package directory

import (
	"context"
	"sort"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

var _ Source = (*Static)(nil)

// DemoUsers is the seed directory used when no users are configured.
var DemoUsers = []model.User{
	{ID: 1, Name: "John Doe", Email: "john@example.com"},
	{ID: 2, Name: "Jane Doe", Email: "jane@example.com"},
	{ID: 3, Name: "Bob Smith", Email: "bob@example.com"},
	{ID: 4, Name: "Alice Johnson", Email: "alice@example.com"},
	{ID: 5, Name: "Tom Brown", Email: "tom@example.com"},
	{ID: 6, Name: "Sara Davis", Email: "sara@example.com"},
	{ID: 7, Name: "Mike Wilson", Email: "mike@example.com"},
	{ID: 8, Name: "Emily Taylor", Email: "emily@example.com"},
	{ID: 9, Name: "David Lee", Email: "david@example.com"},
	{ID: 10, Name: "Karen White", Email: "karen@example.com"},
}

// Static is an immutable in-memory directory.
type Static struct {
	users map[model.UserID]model.User
}

func NewStatic(users []model.User) *Static {
	if len(users) == 0 {
		users = DemoUsers
	}
	s := &Static{users: make(map[model.UserID]model.User, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *Static) Lookup(_ context.Context, id model.UserID) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrUnknownUser
	}
	return u, nil
}

func (s *Static) List(_ context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
