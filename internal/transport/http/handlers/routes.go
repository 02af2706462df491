package handlers

import (
	"net/http"
)

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Auth        *AuthHandler
	Profile     *ProfileHandler
	Connections *ConnectionHandler
	Messages    *MessageHandler
}

// Register mounts the API on mux. auth guards every route except health and sign-in.
func (h *Handlers) Register(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	protect := func(fn http.HandlerFunc) http.Handler {
		return auth(fn)
	}

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)

	// Protected - Profile
	mux.Handle("GET /api/v1/me", protect(h.Profile.Me))
	mux.Handle("PATCH /api/v1/me", protect(h.Profile.Update))
	mux.Handle("PUT /api/v1/me/mood", protect(h.Profile.SetMood))
	mux.Handle("DELETE /api/v1/me/mood", protect(h.Profile.ClearMood))
	mux.Handle("PUT /api/v1/me/location", protect(h.Profile.UpdateLocation))
	mux.Handle("POST /api/v1/me/photo-upload", protect(h.Profile.PhotoUpload))

	// Protected - Connections
	mux.Handle("GET /api/v1/connections", protect(h.Connections.List))
	mux.Handle("DELETE /api/v1/connections/{peerId}", protect(h.Connections.Remove))
	mux.Handle("PATCH /api/v1/connections/{peerId}", protect(h.Connections.Update))
	mux.Handle("GET /api/v1/users/search", protect(h.Connections.Search))

	// Protected - Connection requests
	mux.Handle("POST /api/v1/connection-requests", protect(h.Connections.SendRequest))
	mux.Handle("GET /api/v1/connection-requests/incoming", protect(h.Connections.ListIncoming))
	mux.Handle("GET /api/v1/connection-requests/outgoing", protect(h.Connections.ListOutgoing))
	mux.Handle("POST /api/v1/connection-requests/{id}/accept", protect(h.Connections.Accept))
	mux.Handle("POST /api/v1/connection-requests/{id}/reject", protect(h.Connections.Reject))
	mux.Handle("DELETE /api/v1/connection-requests/{id}", protect(h.Connections.Cancel))

	// Protected - Messages
	mux.Handle("POST /api/v1/messages", protect(h.Messages.Send))
	mux.Handle("GET /api/v1/messages", protect(h.Messages.Inbox))
}
