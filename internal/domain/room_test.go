package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dkeye/HangHub/internal/domain"
)

func TestRoomKeyString(t *testing.T) {
	key := domain.RoomKey{Repo: "ckeditor/ckeditor5", Issue: 1234}
	if key.String() != "ckeditor/ckeditor5#1234" {
		t.Fatalf("String() = %q", key.String())
	}
}

func TestIssueNumberAcceptsStrings(t *testing.T) {
	var key domain.RoomKey
	if err := json.Unmarshal([]byte(`{"repoName":"x/y","issueId":"5"}`), &key); err != nil {
		t.Fatalf("string issue: %v", err)
	}
	if key.Issue != 5 {
		t.Errorf("Issue = %d", key.Issue)
	}
	if err := json.Unmarshal([]byte(`{"repoName":"x/y","issueId":7}`), &key); err != nil {
		t.Fatalf("numeric issue: %v", err)
	}
	if key.Issue != 7 {
		t.Errorf("Issue = %d", key.Issue)
	}
	if err := json.Unmarshal([]byte(`{"repoName":"x/y","issueId":"seven"}`), &key); err == nil {
		t.Error("expected error for non-numeric issue")
	}
}

func TestValidateRoomKey(t *testing.T) {
	if err := domain.Validate(domain.RoomKey{Repo: "x/y", Issue: 5}); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := domain.Validate(domain.RoomKey{Repo: "", Issue: 5}); err == nil {
		t.Error("empty repo accepted")
	}
	if err := domain.Validate(domain.RoomKey{Repo: "x/y"}); err == nil {
		t.Error("zero issue accepted")
	}
}

func TestRoomKeyFromPath(t *testing.T) {
	cases := []struct {
		path string
		key  domain.RoomKey
		page domain.PageType
		ok   bool
	}{
		{"/ckeditor/ckeditor5/issues/42", domain.RoomKey{Repo: "ckeditor/ckeditor5", Issue: 42}, domain.PageIssue, true},
		{"/x/y/pull/7/files", domain.RoomKey{Repo: "x/y", Issue: 7}, domain.PagePull, true},
		{"/x/y/pulls", domain.RoomKey{}, "", false},
		{"/x/y", domain.RoomKey{}, "", false},
	}
	for _, tc := range cases {
		key, page, ok := domain.RoomKeyFromPath(tc.path)
		if ok != tc.ok || key != tc.key || page != tc.page {
			t.Errorf("RoomKeyFromPath(%q) = %+v %q %v", tc.path, key, page, ok)
		}
	}
}

func TestCollapse(t *testing.T) {
	t0 := time.Unix(1000, 0)
	members := []domain.Member{
		{User: domain.User{Login: "bob", State: domain.StateViewing}, JoinedAt: t0.Add(2 * time.Second), UpdatedAt: t0.Add(2 * time.Second)},
		{User: domain.User{Login: "alice", State: domain.StateViewing}, JoinedAt: t0, UpdatedAt: t0},
		// alice again from a second tab, joined later but updated most recently
		{User: domain.User{Login: "alice", State: domain.StateCommenting}, JoinedAt: t0.Add(3 * time.Second), UpdatedAt: t0.Add(4 * time.Second)},
	}
	got := domain.Users(domain.Collapse(members))
	want := []domain.User{
		{Login: "alice", State: domain.StateCommenting},
		{Login: "bob", State: domain.StateViewing},
	}
	if !domain.SameUsers(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if len(domain.Users(domain.Collapse(nil))) != 0 {
		t.Error("empty input should give empty snapshot")
	}
}
