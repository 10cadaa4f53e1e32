package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dkeye/HangHub/internal/domain"
)

func TestUserJSON(t *testing.T) {
	var u domain.User
	raw := `{"id":null,"login":"alice","avatarUrl":"https://avatars2.githubusercontent.com/u/1","state":"viewing"}`
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.ID != "" || u.Login != "alice" || u.State != domain.StateViewing {
		t.Fatalf("unexpected user %+v", u)
	}
	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("got %s, want %s", out, raw)
	}

	if err := json.Unmarshal([]byte(`{"id":42,"login":"bob","state":"away"}`), &u); err != nil {
		t.Fatalf("numeric id: %v", err)
	}
	if u.ID != "42" {
		t.Errorf("ID = %q, want 42", u.ID)
	}
}

func TestValidateUser(t *testing.T) {
	cases := []struct {
		name string
		user domain.User
		ok   bool
	}{
		{"ok", domain.User{Login: "alice", State: domain.StateCommenting}, true},
		{"with avatar", domain.User{Login: "alice", AvatarURL: "https://example.com/a.png", State: domain.StateMerging}, true},
		{"no login", domain.User{State: domain.StateViewing}, false},
		{"no state", domain.User{Login: "alice"}, false},
		{"unknown state", domain.User{Login: "alice", State: "typing"}, false},
		{"bad avatar", domain.User{Login: "alice", AvatarURL: "not a url", State: domain.StateViewing}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := domain.Validate(tc.user)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrMalformedEvent) {
				t.Fatalf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestPresenceStateValid(t *testing.T) {
	for _, s := range []domain.PresenceState{"viewing", "commenting", "editing", "merging", "away"} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if domain.PresenceState("idle").Valid() {
		t.Error("idle should not be valid")
	}
}

func TestSameUsers(t *testing.T) {
	a := []domain.User{{Login: "alice", State: domain.StateViewing}}
	b := []domain.User{{Login: "alice", State: domain.StateViewing}}
	if !domain.SameUsers(a, b) {
		t.Error("identical snapshots should match")
	}
	b[0].State = domain.StateAway
	if domain.SameUsers(a, b) {
		t.Error("state change should not match")
	}
	if domain.SameUsers(a, nil) {
		t.Error("length mismatch should not match")
	}
}
