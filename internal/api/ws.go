package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/oakfield-data/motion.report/internal/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamWebsocket streams readings over a websocket, for browser dashboards
// that prefer it over SSE. Each message is one JSON-encoded reading.
func (s *Server) streamWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, c := s.store.Subscribe()
	defer s.store.Unsubscribe(id)

	// Drain client messages so close frames and pings are processed; the
	// stream is one-directional.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case reading, ok := <-c:
			if !ok {
				return
			}
			if err := conn.WriteJSON(reading); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
