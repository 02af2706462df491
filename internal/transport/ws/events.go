package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeConnectionRespond  = "connection.respond"
	EventTypeConnectionRemove   = "connection.remove"
	EventTypeConnectionNickname = "connection.nickname"
	EventTypeConnectionPhoto    = "connection.photo"
	EventTypeLocationUpdate     = "location.update"
	EventTypeMessageSend        = "message.send"
	EventTypePing               = "ping"
)

// Event types - Server → Client
const (
	EventTypeSyncSnapshot = "sync.snapshot"
	EventTypeMessageNew   = "message.new"
	EventTypeRequestNew   = "request.new"
	EventTypePong         = "pong"
	EventTypeError        = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type RespondPayload struct {
	RequestID uuid.UUID `json:"request_id"`
	Accept    bool      `json:"accept"`
}

type PeerPayload struct {
	PeerID uuid.UUID `json:"peer_id"`
}

type NicknamePayload struct {
	PeerID   uuid.UUID `json:"peer_id"`
	Nickname string    `json:"nickname"`
}

type PhotoPayload struct {
	PeerID   uuid.UUID `json:"peer_id"`
	PhotoURL string    `json:"photo_url"`
}

type LocationPayload struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
}

type MessageSendPayload struct {
	ToID uuid.UUID `json:"to_id"`
	Text string    `json:"text"`
}

// --- Server → Client payloads ---

type MessagePayload struct {
	domain.EphemeralMessage
}

type RequestPayload struct {
	domain.ConnectionRequest
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Type echoes the client event that failed.
	Type string `json:"type,omitempty"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
