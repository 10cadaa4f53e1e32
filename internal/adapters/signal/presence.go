package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/HangHub/internal/core"
	"github.com/dkeye/HangHub/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleSetUser(
	ctx context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	ack := ackID(data)
	var p setUserPayload
	if err := json.Unmarshal(data, &p); err != nil || p.User == nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad setUser payload")
		ctl.sendJSON(conn, ackMessage{Type: TypeAck, Ack: ack, Error: ErrCodeMalformed})
		return
	}

	users, err := ctl.Orch.SetUser(ctx, sid, p.RoomKey, *p.User)
	if err != nil {
		code := ErrCodeInternal
		if errors.Is(err, domain.ErrMalformedEvent) {
			code = ErrCodeMalformed
		}
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomKey.String()).Msg("setUser rejected")
		ctl.sendJSON(conn, ackMessage{Type: TypeAck, Ack: ack, Error: code})
		return
	}

	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomKey.String()).Str("login", p.User.Login).Msg("setUser")
	ctl.sendJSON(conn, ackMessage{Type: TypeAck, Ack: ack, Users: users})
}

// handleRemoveUser has no reply; the other viewers see the result as a refresh.
func (ctl *SignalWSController) handleRemoveUser(
	ctx context.Context,
	sid core.SessionID,
	data []byte,
) {
	var p removeUserPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad removeUser payload")
		return
	}
	if !ctl.Orch.RemoveUser(ctx, sid, p.RoomKey) {
		return
	}
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomKey.String()).Msg("removeUser")
}
