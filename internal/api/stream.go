package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/panelkit/devpanel/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local tooling connects from arbitrary ports.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleServiceLogStream pushes one service's live entries over a
// websocket. An id nothing publishes to yields a silent stream, not
// an error.
func (s *Server) handleServiceLogStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	subID, ch := s.logs.Hub().Subscribe(id)
	defer s.logs.Hub().Unsubscribe(id, subID)

	s.streamEntries(w, r, ch)
}

// handleCombinedLogStream pushes live entries from every service.
func (s *Server) handleCombinedLogStream(w http.ResponseWriter, r *http.Request) {
	subID, ch := s.logs.Hub().SubscribeAll()
	defer s.logs.Hub().UnsubscribeAll(subID)

	s.streamEntries(w, r, ch)
}

func (s *Server) streamEntries(w http.ResponseWriter, r *http.Request, ch <-chan models.LogEntry) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so pongs and the close handshake are seen.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
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
		case entry := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
