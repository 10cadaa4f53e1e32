package signal

import (
	"encoding/json"

	"github.com/dkeye/HangHub/internal/core"
	"github.com/dkeye/HangHub/internal/domain"
	"github.com/tidwall/gjson"
)

const (
	TypeSetUser    = "setUser"
	TypeRemoveUser = "removeUser"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeWhoAmI     = "whoami"
	TypeAck        = "ack"
	TypeRefresh    = "refresh"
	TypeError      = "error"
)

const (
	ErrCodeMalformed   = "malformed_event"
	ErrCodeUnknownType = "unknown_type"
	ErrCodeInternal    = "internal"
)

type setUserPayload struct {
	domain.RoomKey
	User *domain.User `json:"user"`
}

type removeUserPayload struct {
	domain.RoomKey
}

type ackMessage struct {
	Type  string        `json:"type"`
	Ack   *uint64       `json:"ack,omitempty"`
	Users []domain.User `json:"users,omitempty"`
	Error string        `json:"error,omitempty"`
}

type refreshMessage struct {
	Type string `json:"type"`
	domain.RoomKey
	Users []domain.User `json:"users"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ackID returns the client's correlation id, if the frame carries one.
func ackID(data []byte) *uint64 {
	r := gjson.GetBytes(data, "ack")
	if r.Type != gjson.Number {
		return nil
	}
	id := r.Uint()
	return &id
}

func encodeRefresh(key domain.RoomKey, users []domain.User) (core.Frame, error) {
	if users == nil {
		users = []domain.User{}
	}
	return json.Marshal(refreshMessage{Type: TypeRefresh, RoomKey: key, Users: users})
}
