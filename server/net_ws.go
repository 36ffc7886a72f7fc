package server

import (
	"net/http"

	"dungeonsync/logger"
	"dungeonsync/transport"
)

// HandleWS serves the game protocol over WebSocket, one frame per text
// message. The handler runs the connection's receive loop and returns when
// the client is gone.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if s.isClosed() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := transport.Upgrade(w, r, s.cfg.Transport)
	if err != nil {
		logger.Log.Warnf("ws upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	s.ServeConn(conn)
}
