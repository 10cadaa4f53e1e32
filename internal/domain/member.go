package domain

import (
	"sort"
	"time"
)

// Member represents user's participation meta for a room.
type Member struct {
	User
	JoinedAt  time.Time `json:"joinedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Collapse orders members by join time and keeps one entry per login:
// the position of the earliest join, the data of the latest update.
func Collapse(members []Member) []Member {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
	})

	out := make([]Member, 0, len(sorted))
	idx := make(map[string]int, len(sorted))
	for _, m := range sorted {
		i, ok := idx[m.Login]
		if !ok {
			idx[m.Login] = len(out)
			out = append(out, m)
			continue
		}
		if m.UpdatedAt.After(out[i].UpdatedAt) {
			joined := out[i].JoinedAt
			out[i] = m
			out[i].JoinedAt = joined
		}
	}
	return out
}

// Users strips membership meta for the client-facing snapshot.
func Users(members []Member) []User {
	out := make([]User, 0, len(members))
	for _, m := range members {
		out = append(out, m.User)
	}
	return out
}
