package orch

import (
	"context"
	"errors"

	"github.com/dkeye/HangHub/internal/app"
	"github.com/dkeye/HangHub/internal/core"
	"github.com/dkeye/HangHub/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator drives each connection through Idle -> Joined(room) and
// back, mapping client events onto room membership.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
}

// SetUser joins (or updates) the session in key, leaving any other room it
// occupied first. The returned snapshot is the caller's acknowledgement.
func (o *Orchestrator) SetUser(ctx context.Context, sid core.SessionID, key domain.RoomKey, user domain.User) ([]domain.User, error) {
	if err := errors.Join(domain.Validate(key), domain.Validate(user)); err != nil {
		return nil, err
	}
	if _, ok := o.Registry.GetSession(sid); !ok {
		return nil, core.ErrUnknownConnection
	}

	prev, joined := o.Registry.RoomOf(sid)
	if joined && prev == key {
		users, err := o.Rooms.Update(ctx, key, sid, user)
		if !errors.Is(err, core.ErrUnknownConnection) {
			return users, err
		}
		// Raced with a leave; fall through and join afresh.
	} else if joined {
		o.leave(ctx, sid, prev)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", prev.String()).Str("room", key.String()).Msg("moved")
	}

	users, err := o.Rooms.Join(ctx, key, sid, user)
	if err != nil {
		return nil, err
	}
	o.Registry.UpdateRoom(sid, key)
	return users, nil
}

// RemoveUser leaves key if the session is in it; any other key is a no-op.
func (o *Orchestrator) RemoveUser(ctx context.Context, sid core.SessionID, key domain.RoomKey) bool {
	cur, joined := o.Registry.RoomOf(sid)
	if !joined || cur != key {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("room", key.String()).Msg("removeUser for unoccupied room ignored")
		return false
	}
	o.leave(ctx, sid, key)
	return true
}

// OnDisconnect leaves the occupied room, if any, and forgets the session.
func (o *Orchestrator) OnDisconnect(ctx context.Context, sid core.SessionID) {
	if key, joined := o.Registry.RoomOf(sid); joined {
		o.leave(ctx, sid, key)
	}
	o.Registry.Unbind(sid)
}

func (o *Orchestrator) leave(ctx context.Context, sid core.SessionID, key domain.RoomKey) {
	if _, err := o.Rooms.Leave(ctx, key, sid); err != nil && !errors.Is(err, core.ErrUnknownConnection) {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", key.String()).Msg("leave failed")
	}
	o.Registry.RemoveRoom(sid)
}
