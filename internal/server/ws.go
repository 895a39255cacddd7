package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleWebsocket streams stage events from ?from_seq (default 0, every
// retained event) until the client goes away or the server stops.
func (s *Server) handleWebsocket(c *gin.Context) {
	var from uint64
	if raw := c.Query("from_seq"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid from_seq")
			return
		}
		from = n
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.lifetime)
	defer cancel()

	// Reads only detect the peer closing; clients send nothing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := s.stage.Broker().Subscribe(ctx, from)
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	s.log.Debug("websocket subscribed", "from_seq", from)
	for {
		select {
		case <-ctx.Done():
			closeWith(conn, websocket.CloseGoingAway, "")
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				// The subscription also ends when ctx does.
				if ctx.Err() != nil {
					closeWith(conn, websocket.CloseGoingAway, "")
				} else {
					closeWith(conn, websocket.CloseNormalClosure, "stage closed")
				}
				return
			}
			data, err := e.Marshal()
			if err != nil {
				s.log.Warn("event encoding failed", "seq", e.Seq, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

// upgradeError keeps gorilla's error responses consistent with the API.
func upgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	body, err := json.Marshal(gin.H{"ok": false, "error": reason.Error()})
	if err != nil {
		http.Error(w, reason.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
