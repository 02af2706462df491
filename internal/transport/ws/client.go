package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/livesync"
	"github.com/vedran77/orbit/internal/service"
	"github.com/vedran77/orbit/pkg/validator"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Deps are the services a client calls for events that are not session operations.
type Deps struct {
	Profiles *service.ProfileService
	Messages *service.MessageService
}

// Client represents a single WebSocket connection and its live session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  uuid.UUID
	session *livesync.Session
	deps    Deps

	send  chan []byte
	views chan livesync.View

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, deps Deps) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		deps:   deps,
		send:   make(chan []byte, sendBufSize),
		views:  make(chan livesync.View, 1),
		done:   make(chan struct{}),
	}
}

// PushView queues v for delivery, replacing a view that has not been written yet.
// It is only called from the session goroutine.
func (c *Client) PushView(v livesync.View) {
	select {
	case <-c.views:
	default:
	}
	c.views <- v
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump reads client events until the connection drops, then unregisters the
// client and stops its session.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.session.Stop()
		select {
		case c.hub.unregister <- c:
		case <-ctx.Done():
		}
		c.close()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				glog.V(1).Infof("[ws]client %s disconnected", c.userID)
			} else if ctx.Err() == nil {
				glog.Warningf("[ws]read error from %s = %s", c.userID, err)
			}
			return
		}

		c.handleEvent(ctx, &event)
	}
}

// WritePump writes queued events and views to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				glog.Warningf("[ws]write error to %s = %s", c.userID, err)
				return
			}

		case view := <-c.views:
			evt, err := NewEvent(EventTypeSyncSnapshot, view)
			if err != nil {
				glog.Errorf("[ws]marshal view error = %s", err)
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := c.write(data); err != nil {
				glog.Warningf("[ws]write error to %s = %s", c.userID, err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				glog.V(1).Infof("[ws]ping error to %s = %s", c.userID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) write(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeConnectionRespond:
		var p RespondPayload
		if !c.decode(event, &p) {
			return
		}
		if _, err := c.session.Respond(ctx, p.RequestID, p.Accept); err != nil {
			c.sendFailure(event.Type, err)
		}

	case EventTypeConnectionRemove:
		var p PeerPayload
		if !c.decode(event, &p) {
			return
		}
		if err := c.session.Remove(ctx, p.PeerID); err != nil {
			c.sendFailure(event.Type, err)
		}

	case EventTypeConnectionNickname:
		var p NicknamePayload
		if !c.decode(event, &p) {
			return
		}
		if errs := validator.ValidateConnectionUpdate(&p.Nickname, nil); errs.HasErrors() {
			c.sendError("VALIDATION_ERROR", errs["nickname"], event.Type)
			return
		}
		if err := c.session.Nickname(ctx, p.PeerID, p.Nickname); err != nil {
			c.sendFailure(event.Type, err)
		}

	case EventTypeConnectionPhoto:
		var p PhotoPayload
		if !c.decode(event, &p) {
			return
		}
		if errs := validator.ValidateConnectionUpdate(nil, &p.PhotoURL); errs.HasErrors() {
			c.sendError("VALIDATION_ERROR", errs["photo_url"], event.Type)
			return
		}
		if err := c.session.Photo(ctx, p.PeerID, p.PhotoURL); err != nil {
			c.sendFailure(event.Type, err)
		}

	case EventTypeLocationUpdate:
		var p LocationPayload
		if !c.decode(event, &p) {
			return
		}
		if errs := validator.ValidateLocation(p.Latitude, p.Longitude, p.Accuracy); errs.HasErrors() {
			c.sendError("VALIDATION_ERROR", "Invalid coordinates", event.Type)
			return
		}
		loc, err := c.deps.Profiles.UpdateLocation(ctx, c.userID, service.UpdateLocationInput{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Timestamp: p.Timestamp,
			Accuracy:  p.Accuracy,
		})
		if err != nil {
			c.sendFailure(event.Type, err)
			return
		}
		if err := c.session.ApplyLocation(*loc); err != nil {
			c.sendFailure(event.Type, err)
		}

	case EventTypeMessageSend:
		var p MessageSendPayload
		if !c.decode(event, &p) {
			return
		}
		if errs := validator.ValidateMessage(p.Text); errs.HasErrors() {
			c.sendError("VALIDATION_ERROR", errs["text"], event.Type)
			return
		}
		if _, err := c.deps.Messages.Send(ctx, c.userID, service.SendMessageInput{ToID: p.ToID, Text: p.Text}); err != nil {
			c.sendFailure(event.Type, err)
		}

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type, event.Type)
	}
}

func (c *Client) decode(event *Event, v any) bool {
	if err := json.Unmarshal(event.Payload, v); err != nil {
		c.sendError("INVALID_PAYLOAD", "invalid "+event.Type+" payload", event.Type)
		return false
	}
	return true
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong, Timestamp: time.Now().Unix()})
	c.enqueue(data)
}

func (c *Client) sendFailure(eventType string, err error) {
	code, message := errorCode(err)
	if code == "INTERNAL" {
		glog.Errorf("[ws]%s from %s error = %s", eventType, c.userID, err)
	}
	c.sendError(code, message, eventType)
}

func (c *Client) sendError(code, message, eventType string) {
	evt, err := NewEvent(EventTypeError, ErrorPayload{Code: code, Message: message, Type: eventType})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, livesync.ErrSessionClosed):
		return "SESSION_CLOSED", "Session is closed"
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRequestNotFound),
		errors.Is(err, service.ErrConnectionNotFound):
		return "NOT_FOUND", err.Error()
	case errors.Is(err, service.ErrNotRequestRecipient), errors.Is(err, service.ErrNotConnected):
		return "FORBIDDEN", err.Error()
	case errors.Is(err, service.ErrRequestAlreadyHandled):
		return "ALREADY_HANDLED", err.Error()
	case errors.Is(err, service.ErrInvalidLocation), errors.Is(err, service.ErrEmptyMessage):
		return "VALIDATION_ERROR", err.Error()
	default:
		return "INTERNAL", "Something went wrong"
	}
}
