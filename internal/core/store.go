package core

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/HangHub/internal/domain"
	"github.com/rs/zerolog/log"
)

type entry struct {
	sid    SessionID
	member domain.Member
}

// Store is the process-local presence registry: room -> entries in join
// order, one entry per session. It is safe for concurrent use, but a
// read-modify-write sequence spanning several calls must be serialized per
// room by the caller.
type Store struct {
	mu    sync.RWMutex
	rooms map[domain.RoomKey][]*entry
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[domain.RoomKey][]*entry),
		now:   time.Now,
	}
}

// NewStoreWithClock is NewStore with an injected clock.
func NewStoreWithClock(now func() time.Time) *Store {
	s := NewStore()
	s.now = now
	return s
}

// Join adds the session to the room or, if it is already there, updates
// its user in place.
func (s *Store) Join(key domain.RoomKey, sid SessionID, user domain.User) []domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e := s.find(key, sid); e != nil {
		e.member.User = user
		e.member.UpdatedAt = now
		return s.members(key)
	}
	s.rooms[key] = append(s.rooms[key], &entry{
		sid:    sid,
		member: domain.Member{User: user, JoinedAt: now, UpdatedAt: now},
	})
	log.Debug().Str("module", "core.store").Str("sid", string(sid)).Str("room", key.String()).Msg("member added")
	return s.members(key)
}

// Update replaces the user of an existing member.
func (s *Store) Update(key domain.RoomKey, sid SessionID, user domain.User) ([]domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.find(key, sid)
	if e == nil {
		return s.members(key), ErrUnknownConnection
	}
	e.member.User = user
	e.member.UpdatedAt = s.now()
	return s.members(key), nil
}

// Leave removes the session from the room. Empty rooms are dropped.
func (s *Store) Leave(key domain.RoomKey, sid SessionID) ([]domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.rooms[key]
	for i, e := range entries {
		if e.sid != sid {
			continue
		}
		entries = append(entries[:i:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(s.rooms, key)
		} else {
			s.rooms[key] = entries
		}
		log.Debug().Str("module", "core.store").Str("sid", string(sid)).Str("room", key.String()).Msg("member removed")
		return s.members(key), nil
	}
	return s.members(key), ErrUnknownConnection
}

// Members returns the room's collapsed member list.
func (s *Store) Members(key domain.RoomKey) []domain.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members(key)
}

// Sessions returns the sessions present in the room, in join order.
func (s *Store) Sessions(key domain.RoomKey) []SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.rooms[key]
	out := make([]SessionID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.sid)
	}
	return out
}

// Rooms lists non-empty rooms sorted by key.
func (s *Store) Rooms() []domain.RoomKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomKey, 0, len(s.rooms))
	for k := range s.rooms {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (s *Store) find(key domain.RoomKey, sid SessionID) *entry {
	for _, e := range s.rooms[key] {
		if e.sid == sid {
			return e
		}
	}
	return nil
}

func (s *Store) members(key domain.RoomKey) []domain.Member {
	entries := s.rooms[key]
	raw := make([]domain.Member, 0, len(entries))
	for _, e := range entries {
		raw = append(raw, e.member)
	}
	return domain.Collapse(raw)
}
