package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// handleWS streams the dashboard: once on connect, then after every change.
// Bursts of changes coalesce into one frame.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	changes, cancel := s.tracker.Subscribe()
	defer cancel()

	// Clients only listen; CloseRead discards their frames and ends ctx when
	// they go away.
	ctx := conn.CloseRead(r.Context())

	if err := s.pushDashboard(ctx, conn); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-changes:
			if err := s.pushDashboard(ctx, conn); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (s *server) pushDashboard(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, s.tracker.Dashboard())
}
