// Package domain contains entity without logic, just meta-data
package domain

import (
	"bytes"
	"encoding/json"
)

// PresenceState describes what a viewer is currently doing on the page.
type PresenceState string

const (
	StateViewing    PresenceState = "viewing"
	StateCommenting PresenceState = "commenting"
	StateEditing    PresenceState = "editing"
	StateMerging    PresenceState = "merging"
	StateAway       PresenceState = "away"
)

func (s PresenceState) Valid() bool {
	switch s {
	case StateViewing, StateCommenting, StateEditing, StateMerging, StateAway:
		return true
	}
	return false
}

// UserID is the optional numeric account id sent by the client.
// Empty encodes as JSON null.
type UserID string

func (id UserID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

func (id *UserID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		s = n.String()
	}
	*id = UserID(s)
	return nil
}

// User is a viewer as claimed by the client. Login is the identity key.
type User struct {
	ID        UserID        `json:"id"`
	Login     string        `json:"login" validate:"required,max=39"`
	AvatarURL string        `json:"avatarUrl" validate:"omitempty,url"`
	State     PresenceState `json:"state" validate:"required,presence_state"`
}

// SameUsers reports whether two snapshots render identically.
func SameUsers(a, b []User) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
