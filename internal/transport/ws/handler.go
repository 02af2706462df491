package ws

import (
	"context"
	"net/http"

	"github.com/golang/glog"
	"github.com/vedran77/orbit/internal/livesync"
	"github.com/vedran77/orbit/internal/transport/http/middleware"
	"nhooyr.io/websocket"
)

// SessionFactory builds a live session that reports to onUpdate.
type SessionFactory func(onUpdate func(livesync.View)) *livesync.Session

// ServeWS returns an HTTP handler that upgrades to WebSocket and runs one live
// session per connection. Auth is done via ?token=xxx query param (WebSocket can't
// send headers).
func ServeWS(ctx context.Context, hub *Hub, newSession SessionFactory, deps Deps, jwtSecret string, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := middleware.ParseToken(tokenStr, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			glog.Warningf("[ws]accept error = %s", err)
			return
		}

		client := NewClient(hub, conn, userID, deps)
		client.session = newSession(client.PushView)

		if err := client.session.Start(ctx, userID); err != nil {
			glog.Errorf("[ws]session start for %s error = %s", userID, err)
			conn.Close(websocket.StatusInternalError, "session unavailable")
			return
		}

		select {
		case hub.register <- client:
		case <-ctx.Done():
			client.session.Stop()
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}

		go client.WritePump()
		go client.ReadPump(ctx)
	}
}
