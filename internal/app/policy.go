package app

import (
	"github.com/dkeye/HangHub/internal/core"
	"github.com/dkeye/HangHub/internal/domain"
)

type BackpressureAction int

const (
	// KickMember closes the session; the zero action leaves it alone.
	KickMember BackpressureAction = iota + 1
)

// Policy decides what happens to a session whose send buffer is full.
type Policy interface {
	OnBackPressure(key domain.RoomKey, sid core.SessionID) BackpressureAction
}

// SimplePolicy drops slow viewers; they rejoin on reconnect with a fresh snapshot.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomKey, core.SessionID) BackpressureAction {
	return KickMember
}
