package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"budgetwise/internal/log"
	"budgetwise/internal/stream"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	// Clients send nothing but control frames.
	maxClientMessage = 512
)

// streamMessage is one frame sent to stream clients. Every snapshot is the
// complete transaction list; clients replace their state with it.
type streamMessage struct {
	Type     string           `json:"type"`
	Snapshot *stream.Snapshot `json:"snapshot,omitempty"`
}

// handleStream upgrades to a WebSocket and pushes the user's full snapshot
// on connect and after every change until either side goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentStream)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		logger.WarnContext(r.Context(), "WebSocket upgrade failed", log.FieldError, err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := s.hub.Subscribe(ctx, u.UID)
	if err != nil {
		closeWith(conn, websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer sub.Close()

	// Subscribed first so the initial snapshot arrives through sub.C().
	if _, err := s.txs.Snapshot(ctx, u.UID); err != nil {
		logger.ErrorContext(ctx, "Initial snapshot failed", log.FieldUserID, u.UID, log.FieldError, err)
		closeWith(conn, websocket.CloseInternalServerErr, "snapshot unavailable")
		return
	}
	logger.InfoContext(ctx, "Stream opened", log.FieldUserID, u.UID)

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			closeWith(conn, websocket.CloseNormalClosure, "")
			logger.InfoContext(ctx, "Stream closed", log.FieldUserID, u.UID)
			return
		case <-sub.Done():
			closeWith(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case snap, ok := <-sub.C():
			if !ok {
				closeWith(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(streamMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
				logger.DebugContext(ctx, "Stream write failed", log.FieldUserID, u.UID, log.FieldError, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump consumes pongs and close frames. It cancels the stream once the
// client disconnects or stops answering pings.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
