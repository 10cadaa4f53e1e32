package signal

import (
	"errors"

	"github.com/dkeye/HangHub/internal/app"
	"github.com/dkeye/HangHub/internal/core"
	"github.com/dkeye/HangHub/internal/domain"
	"github.com/rs/zerolog/log"
)

// Fanout delivers refresh frames to local websocket sessions.
type Fanout struct {
	registry *app.Registry
	policy   app.Policy
}

func NewFanout(reg *app.Registry, policy app.Policy) *Fanout {
	return &Fanout{registry: reg, policy: policy}
}

func (f *Fanout) Notify(sid core.SessionID, key domain.RoomKey, users []domain.User) error {
	conn, ok := f.registry.GetSession(sid)
	if !ok {
		return core.ErrUnknownConnection
	}
	frame, err := encodeRefresh(key, users)
	if err != nil {
		return err
	}
	err = conn.TrySend(frame)
	if errors.Is(err, ErrBackpressure) && f.policy != nil {
		if f.policy.OnBackPressure(key, sid) == app.KickMember {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("room", key.String()).Msg("slow viewer kicked")
			f.registry.Cancel(sid)
		}
	}
	return err
}
