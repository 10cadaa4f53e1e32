package orch

import (
	"github.com/dkeye/HangHub/internal/core"
	"github.com/dkeye/HangHub/internal/domain"
	"github.com/rs/zerolog/log"
)

// KickBySID closes the session's connection; its disconnect path performs
// the leave.
func (o *Orchestrator) KickBySID(sid core.SessionID) bool {
	return o.Registry.Cancel(sid)
}

// EvictRoom kicks every local session viewing key and returns how many.
func (o *Orchestrator) EvictRoom(key domain.RoomKey) int {
	n := 0
	for _, snap := range o.Registry.MembersOfRoom(key) {
		if o.KickBySID(snap.SID) {
			n++
		}
	}
	log.Info().Str("module", "orch").Str("room", key.String()).Int("kicked", n).Msg("evicted room")
	return n
}

func (o *Orchestrator) WhoAmI(sid core.SessionID) (client string, key domain.RoomKey, joined bool) {
	client, _ = o.Registry.ClientOf(sid)
	key, joined = o.Registry.RoomOf(sid)
	return client, key, joined
}
