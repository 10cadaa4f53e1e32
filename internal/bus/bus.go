// Package bus carries room snapshots between server processes.
//
// A Message holds the publishing process's complete local member list for a
// room, never a delta, so duplicate and reordered deliveries are harmless:
// receivers keep the highest Seq per Origin and replace.
package bus

import (
	"context"
	"errors"

	"github.com/dkeye/HangHub/internal/domain"
)

var (
	ErrBackboneUnavailable = errors.New("backbone unavailable")
	ErrClosed              = errors.New("bus closed")
)

type Kind string

const (
	// KindSnapshot announces the origin's members for a room.
	KindSnapshot Kind = "snapshot"
	// KindSync is a snapshot that also asks every other holder of the room
	// to republish theirs.
	KindSync Kind = "sync"
)

type Message struct {
	Kind    Kind            `json:"kind"`
	Origin  string          `json:"origin"`
	Seq     uint64          `json:"seq"`
	Room    domain.RoomKey  `json:"room"`
	Members []domain.Member `json:"members"`
}

type Handler interface {
	HandleMessage(Message)
}

type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, key domain.RoomKey, h Handler) error
	Unsubscribe(ctx context.Context, key domain.RoomKey, h Handler) error
	Ping(ctx context.Context) error
	Close() error
}
