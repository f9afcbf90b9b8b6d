package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidUserID is returned when a raw identifier is not a positive integer.
var ErrInvalidUserID = errors.New("invalid user id")

// UserID is the stable numeric identity supplied by the directory.
type UserID int64

// ParseUserID converts the textual form used by query strings and snapshot keys.
func ParseUserID(raw string) (UserID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidUserID
	}
	return UserID(id), nil
}

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// UnmarshalJSON accepts both 7 and "7", browsers send either.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseUserID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidUserID
	}
	if n <= 0 {
		return ErrInvalidUserID
	}
	*id = UserID(n)
	return nil
}

// User is the directory view of an identity.
type User struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
