package core_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/HangHub/internal/core"
	"github.com/dkeye/HangHub/internal/domain"
)

// tickingClock advances one second per call so join order is observable.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore() *core.Store {
	return core.NewStoreWithClock(tickingClock())
}

var room = domain.RoomKey{Repo: "x/y", Issue: 5}

func user(login string, state domain.PresenceState) domain.User {
	return domain.User{ID: domain.UserID(login + "-id"), Login: login, State: state}
}

func logins(members []domain.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Login)
	}
	return out
}

func TestStoreJoinOrder(t *testing.T) {
	s := newTestStore()
	s.Join(room, "a", user("alice", domain.StateViewing))
	got := s.Join(room, "b", user("bob", domain.StateCommenting))

	if fmt.Sprint(logins(got)) != "[alice bob]" {
		t.Fatalf("snapshot = %v", logins(got))
	}
	if got[1].State != domain.StateCommenting {
		t.Errorf("bob state = %q", got[1].State)
	}
}

func TestStoreJoinTwiceUpdates(t *testing.T) {
	s := newTestStore()
	s.Join(room, "a", user("alice", domain.StateViewing))
	got := s.Join(room, "a", user("alice", domain.StateEditing))

	if len(got) != 1 {
		t.Fatalf("expected 1 member, got %d", len(got))
	}
	if got[0].State != domain.StateEditing {
		t.Errorf("state = %q, want editing", got[0].State)
	}
	if len(s.Sessions(room)) != 1 {
		t.Errorf("sessions = %v", s.Sessions(room))
	}
}

func TestStoreUpdate(t *testing.T) {
	s := newTestStore()
	s.Join(room, "a", user("alice", domain.StateViewing))

	got, err := s.Update(room, "a", user("alice", domain.StateMerging))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got[0].State != domain.StateMerging {
		t.Errorf("state = %q", got[0].State)
	}

	got, err = s.Update(room, "zzz", user("mallory", domain.StateViewing))
	if !errors.Is(err, core.ErrUnknownConnection) {
		t.Fatalf("expected ErrUnknownConnection, got %v", err)
	}
	if fmt.Sprint(logins(got)) != "[alice]" {
		t.Errorf("unknown update changed snapshot: %v", logins(got))
	}
}

func TestStoreLeave(t *testing.T) {
	s := newTestStore()
	s.Join(room, "a", user("alice", domain.StateViewing))
	s.Join(room, "b", user("bob", domain.StateViewing))

	got, err := s.Leave(room, "b")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if fmt.Sprint(logins(got)) != "[alice]" {
		t.Errorf("snapshot = %v", logins(got))
	}

	got, err = s.Leave(room, "b")
	if !errors.Is(err, core.ErrUnknownConnection) {
		t.Fatalf("second leave: expected ErrUnknownConnection, got %v", err)
	}
	if len(got) != 1 {
		t.Errorf("no-op leave changed snapshot: %v", logins(got))
	}

	if _, err := s.Leave(room, "a"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if len(s.Rooms()) != 0 {
		t.Errorf("empty room not dropped: %v", s.Rooms())
	}
}

func TestStoreSameLoginTwoSessions(t *testing.T) {
	s := newTestStore()
	s.Join(room, "tab1", user("alice", domain.StateViewing))
	s.Join(room, "b", user("bob", domain.StateViewing))
	got := s.Join(room, "tab2", user("alice", domain.StateCommenting))

	if fmt.Sprint(logins(got)) != "[alice bob]" {
		t.Fatalf("snapshot = %v", logins(got))
	}
	if got[0].State != domain.StateCommenting {
		t.Errorf("alice should carry the latest state, got %q", got[0].State)
	}

	got, _ = s.Leave(room, "tab1")
	if fmt.Sprint(logins(got)) != "[bob alice]" {
		t.Errorf("after closing first tab: %v", logins(got))
	}
}

func TestStoreRoomsIsolated(t *testing.T) {
	s := newTestStore()
	other := domain.RoomKey{Repo: "x/y", Issue: 6}
	s.Join(room, "a", user("alice", domain.StateViewing))
	s.Join(other, "b", user("bob", domain.StateViewing))

	if got := logins(s.Members(other)); fmt.Sprint(got) != "[bob]" {
		t.Errorf("other room = %v", got)
	}
	if len(s.Rooms()) != 2 {
		t.Errorf("rooms = %v", s.Rooms())
	}
	if got := s.Sessions(room); len(got) != 1 || got[0] != "a" {
		t.Errorf("sessions = %v", got)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := core.NewStore()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := core.SessionID(fmt.Sprintf("s%d", i))
			login := fmt.Sprintf("user%d", i%10)
			s.Join(room, sid, user(login, domain.StateViewing))
			s.Members(room)
			if i%2 == 0 {
				_, _ = s.Leave(room, sid)
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, m := range s.Members(room) {
		if seen[m.Login] {
			t.Fatalf("duplicate login %q in snapshot", m.Login)
		}
		seen[m.Login] = true
	}
	if len(s.Sessions(room)) != 25 {
		t.Errorf("sessions = %d, want 25", len(s.Sessions(room)))
	}
}
