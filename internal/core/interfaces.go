package core

import (
	"context"
	"errors"

	"github.com/dkeye/HangHub/internal/domain"
)

// ErrUnknownConnection is returned when a session is not a member of the
// room it tries to update or leave. Callers treat it as a no-op.
var ErrUnknownConnection = errors.New("unknown connection")

// Frame is a raw payload queued to a client.
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Notifier delivers a room snapshot to one local session.
type Notifier interface {
	Notify(sid SessionID, key domain.RoomKey, users []domain.User) error
}

type RoomInfo struct {
	Room        domain.RoomKey `json:"room"`
	MemberCount int            `json:"member_count"`
}

// RoomManager is the membership API used by session handlers. Every
// successful mutation fans the new snapshot out to the room.
type RoomManager interface {
	Join(ctx context.Context, key domain.RoomKey, sid SessionID, user domain.User) ([]domain.User, error)
	Update(ctx context.Context, key domain.RoomKey, sid SessionID, user domain.User) ([]domain.User, error)
	Leave(ctx context.Context, key domain.RoomKey, sid SessionID) ([]domain.User, error)
	Snapshot(key domain.RoomKey) []domain.User
	List() []RoomInfo
}
