package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

// TimestampLayout matches the ISO-8601 form browsers produce with toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrMalformed   = errors.New("malformed message")
	ErrMissingType = errors.New("missing message type")
)

// Inbound is a client request as read from the socket.
// Type specific fields stay raw so the dispatcher can report precise errors.
type Inbound struct {
	Type         string          `json:"type"`
	TargetUserID json.RawMessage `json:"targetUserId,omitempty"`
	Status       string          `json:"status,omitempty"`
}

// DecodeInbound parses a single client frame.
func DecodeInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Type == "" {
		return Inbound{}, ErrMissingType
	}
	return in, nil
}

// Target decodes targetUserId; ok is false when the field is absent or null.
func (in Inbound) Target() (model.UserID, bool, error) {
	if len(in.TargetUserID) == 0 || string(in.TargetUserID) == "null" {
		return 0, false, nil
	}
	var id model.UserID
	if err := json.Unmarshal(in.TargetUserID, &id); err != nil {
		return 0, true, err
	}
	return id, true, nil
}

// Marshal encodes the event as a flat JSON object {type, timestamp, ...payload}.
// The result is cached on the event so a broadcast serializes exactly once.
func Marshal(ev Eventer) ([]byte, error) {
	if cached, ok := ev.GetCached().([]byte); ok {
		return cached, nil
	}

	fields := make(map[string]json.RawMessage)
	if p := ev.GetPayload(); p != nil {
		body, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ev.GetKind(), err)
		}
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("flatten %s payload: %w", ev.GetKind(), err)
		}
	}

	kind, _ := json.Marshal(ev.GetKind().String())
	ts, _ := json.Marshal(ev.GetOccurredAt().UTC().Format(TimestampLayout))
	fields["type"] = kind
	fields["timestamp"] = ts

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	ev.SetCached(data)
	return data, nil
}
