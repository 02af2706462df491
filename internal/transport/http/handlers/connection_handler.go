package handlers

import (
	"errors"
	"net/http"

	"github.com/vedran77/orbit/internal/service"
	"github.com/vedran77/orbit/internal/transport/http/middleware"
	"github.com/vedran77/orbit/pkg/validator"
)

type ConnectionHandler struct {
	connService *service.ConnectionService
}

func NewConnectionHandler(connService *service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connService: connService}
}

func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	conns, err := h.connService.Connections(r.Context(), userID)
	if err != nil {
		writeConnectionError(w, "list connections", err)
		return
	}

	writeJSON(w, http.StatusOK, conns)
}

func (h *ConnectionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID, ok := pathUUID(w, r, "peerId")
	if !ok {
		return
	}

	if err := h.connService.RemoveConnection(r.Context(), userID, peerID); err != nil {
		writeConnectionError(w, "remove connection", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Update edits the caller's private nickname and/or photo for a connection.
func (h *ConnectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID, ok := pathUUID(w, r, "peerId")
	if !ok {
		return
	}

	var input struct {
		Nickname *string `json:"nickname"`
		PhotoURL *string `json:"photo_url"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateConnectionUpdate(input.Nickname, input.PhotoURL); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	if input.Nickname != nil {
		if err := h.connService.UpdateNickname(r.Context(), userID, peerID, *input.Nickname); err != nil {
			writeConnectionError(w, "update nickname", err)
			return
		}
	}
	if input.PhotoURL != nil {
		if err := h.connService.UpdatePhoto(r.Context(), userID, peerID, *input.PhotoURL); err != nil {
			writeConnectionError(w, "update photo", err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConnectionHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateConnectionRequest(input.Email); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	req, err := h.connService.SendRequest(r.Context(), userID, input.Email)
	if err != nil {
		writeConnectionError(w, "send connection request", err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

func (h *ConnectionHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	reqs, err := h.connService.ListIncomingRequests(r.Context(), userID)
	if err != nil {
		writeInternal(w, "list incoming requests", err)
		return
	}

	writeJSON(w, http.StatusOK, reqs)
}

func (h *ConnectionHandler) ListOutgoing(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	reqs, err := h.connService.ListOutgoingRequests(r.Context(), userID)
	if err != nil {
		writeInternal(w, "list outgoing requests", err)
		return
	}

	writeJSON(w, http.StatusOK, reqs)
}

func (h *ConnectionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

func (h *ConnectionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *ConnectionHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	userID := middleware.GetUserID(r.Context())
	requestID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	rc, err := h.connService.RespondToRequest(r.Context(), userID, requestID, accept)
	if err != nil {
		writeConnectionError(w, "respond to request", err)
		return
	}

	if rc == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *ConnectionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	requestID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.connService.CancelRequest(r.Context(), userID, requestID); err != nil {
		writeConnectionError(w, "cancel request", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConnectionHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	results, err := h.connService.Search(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeInternal(w, "search", err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func writeConnectionError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Request not found")
	case errors.Is(err, service.ErrConnectionNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Connection not found")
	case errors.Is(err, service.ErrCannotRequestSelf):
		writeError(w, http.StatusBadRequest, "CANNOT_REQUEST_SELF", "Cannot send a request to yourself")
	case errors.Is(err, service.ErrRequestAlreadyExists):
		writeError(w, http.StatusConflict, "ALREADY_EXISTS", "A pending request already exists")
	case errors.Is(err, service.ErrAlreadyConnected):
		writeError(w, http.StatusConflict, "ALREADY_CONNECTED", "You are already connected")
	case errors.Is(err, service.ErrNotRequestRecipient):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the recipient can respond to this request")
	case errors.Is(err, service.ErrNotRequestSender):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the sender can cancel this request")
	case errors.Is(err, service.ErrRequestAlreadyHandled):
		writeError(w, http.StatusConflict, "ALREADY_HANDLED", "This request was already answered")
	default:
		writeInternal(w, op, err)
	}
}
