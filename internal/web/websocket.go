package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"metasnap.app/msc/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleDiagnosticsWS handles WebSocket connections for diagnostics data
func (s *Server) handleDiagnosticsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			account, connected := s.session.Active()

			msg := map[string]interface{}{
				"time":       time.Now().Format("2006-01-02 15:04:05"),
				"connected":  connected,
				"account":    account,
				"chain_id":   s.session.Chain(),
				"post_count": len(s.feed.Posts()),
				"stale":      s.feed.Stale(),
			}

			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// handleStatusWS handles WebSocket connections for status bar messages and console logs
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Send initial history, oldest first
	initialLogs := s.logger.GetRecent(50)
	for i := len(initialLogs) - 1; i >= 0; i-- {
		if err := conn.WriteJSON(initialLogs[i]); err != nil {
			return
		}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastLogTime time.Time
	if len(initialLogs) > 0 {
		lastLogTime = initialLogs[0].Timestamp
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			recent := s.logger.GetRecent(20)

			var newLogs []logger.Message
			for _, msg := range recent {
				if msg.Timestamp.After(lastLogTime) {
					newLogs = append(newLogs, msg)
				}
			}

			for i := len(newLogs) - 1; i >= 0; i-- {
				msg := newLogs[i]
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
				if msg.Timestamp.After(lastLogTime) {
					lastLogTime = msg.Timestamp
				}
			}
		}
	}
}
