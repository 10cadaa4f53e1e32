package signal

import (
	"github.com/dkeye/HangHub/internal/core"
	"github.com/dkeye/HangHub/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	client, key, joined := ctl.Orch.WhoAmI(sid)

	resp := struct {
		Type    string          `json:"type"`
		Session core.SessionID  `json:"session"`
		Client  string          `json:"client,omitempty"`
		Room    *domain.RoomKey `json:"room,omitempty"`
	}{
		Type:    TypeWhoAmI,
		Session: sid,
		Client:  client,
	}
	if joined {
		resp.Room = &key
	}
	ctl.sendJSON(conn, resp)
}
