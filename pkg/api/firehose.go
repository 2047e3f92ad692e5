package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The firehose is a public read-only stream; cross-origin pages may
	// subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleFirehoseWebSocket streams one JSON event per completed search to
// the connected client. Delivery is best effort: events that arrive while
// the client's buffer is full are dropped, never queued.
func (s *Server) HandleFirehoseWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Firehose unavailable", "Event streaming is not enabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("upgrading firehose connection: %v", err)
		return
	}

	id, events := s.hub.Register()
	s.logger.Debugf("firehose listener %d connected from %s", id, r.RemoteAddr)

	defer func() {
		s.hub.Unregister(id)
		_ = conn.Close()
		s.logger.Debugf("firehose listener %d disconnected", id)
	}()

	// Reader goroutine: we never expect client messages, but reading is
	// required to process control frames and detect disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
