package signal

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: TypePong,
	}
	ctl.sendJSON(conn, resp)
}
