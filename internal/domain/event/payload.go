package event

import (
	"time"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

type ConnectedPayload struct {
	ConnectionID string       `json:"connectionId"`
	UserID       model.UserID `json:"userId"`
	OnlineCount  int          `json:"onlineCount"`
}

type PongPayload struct{}

type ErrorPayload struct {
	Message string `json:"message"`
}

type OnlineCountPayload struct {
	Count int `json:"count"`
}

type UserStatusPayload struct {
	UserID   model.UserID `json:"userId"`
	Online   bool         `json:"online"`
	LastSeen *string      `json:"lastSeen"`
}

type UserEntry struct {
	UserID   model.UserID `json:"userId"`
	Status   model.Status `json:"status"`
	LastSeen *string      `json:"lastSeen"`
}

type AllUsersPayload struct {
	Users []UserEntry `json:"users"`
}

type StatusUpdatedPayload struct {
	Status model.Status `json:"status"`
}

type StatusChangePayload struct {
	UserID      model.UserID `json:"userId"`
	Status      model.Status `json:"status"`
	OnlineCount int          `json:"onlineCount"`
}

func NewConnected(conn model.Connection, onlineCount int) *SystemEvent {
	return NewSystemEvent(conn.UserID, Connected, PriorityNormal, &ConnectedPayload{
		ConnectionID: conn.ID,
		UserID:       conn.UserID,
		OnlineCount:  onlineCount,
	})
}

func NewError(message string) *SystemEvent {
	return NewSystemEvent(0, Error, PriorityNormal, &ErrorPayload{Message: message})
}

func NewPong() *SystemEvent {
	return NewSystemEvent(0, Pong, PriorityLow, &PongPayload{})
}

func NewOnlineCount(count int) *SystemEvent {
	return NewSystemEvent(0, OnlineCount, PriorityNormal, &OnlineCountPayload{Count: count})
}

// NewUserStatus answers a status query. An unknown target is reported offline
// with a null lastSeen rather than as an error.
func NewUserStatus(target model.UserID, p model.UserPresence, found bool) *SystemEvent {
	payload := &UserStatusPayload{UserID: target}
	if found {
		payload.Online = p.Online()
		payload.LastSeen = formatSeen(p.LastSeen)
	}
	return NewSystemEvent(target, UserStatus, PriorityNormal, payload)
}

func NewAllUsers(presences []model.UserPresence) *SystemEvent {
	users := make([]UserEntry, 0, len(presences))
	for _, p := range presences {
		users = append(users, UserEntry{UserID: p.UserID, Status: p.Status, LastSeen: formatSeen(p.LastSeen)})
	}
	return NewSystemEvent(0, AllUsers, PriorityNormal, &AllUsersPayload{Users: users})
}

// formatSeen renders lastSeen in the same layout as the envelope timestamp.
func formatSeen(at *time.Time) *string {
	if at == nil {
		return nil
	}
	s := at.UTC().Format(TimestampLayout)
	return &s
}

func NewStatusUpdated(userID model.UserID, status model.Status) *SystemEvent {
	return NewSystemEvent(userID, StatusUpdated, PriorityNormal, &StatusUpdatedPayload{Status: status})
}

// NewStatusChange is the broadcast emitted after any presence transition.
func NewStatusChange(userID model.UserID, status model.Status, onlineCount int) *SystemEvent {
	return NewSystemEvent(userID, UserStatusChange, PriorityHigh, &StatusChangePayload{
		UserID:      userID,
		Status:      status,
		OnlineCount: onlineCount,
	})
}
