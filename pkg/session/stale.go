package session

// isLive reports whether rec may be handed to a caller: its connection is
// still up and its page has not been closed.
func isLive(rec *Record) bool {
	if rec == nil || rec.Conn == nil || rec.Page == nil {
		return false
	}
	return rec.Conn.IsConnected() && !rec.Page.IsClosed()
}
