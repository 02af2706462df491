package ws

import (
	"context"
	"encoding/json"
	"flag"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/livesync"
	"github.com/vedran77/orbit/internal/repository/memory"
	"github.com/vedran77/orbit/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const testSecret = "ws-test-secret"

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("v", "0")
}

type testServer struct {
	url   string
	hub   *Hub
	auth  *service.AuthService
	conns *service.ConnectionService
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memory.New()
	profiles := store.Profiles()
	conns := service.NewConnectionService(profiles, store.Requests(), service.NewFetchResolver(profiles))
	messages := service.NewMessageService(profiles, time.Minute)
	t.Cleanup(messages.Close)

	hub := NewHub()
	go hub.Run(ctx)
	notifier := NewHubNotifier(hub)
	conns.SetNotifier(notifier)
	messages.SetNotifier(notifier)

	newSession := func(onUpdate func(livesync.View)) *livesync.Session {
		return livesync.NewSession(profiles, store.Requests(), conns, onUpdate)
	}
	srv := httptest.NewServer(ServeWS(ctx, hub, newSession, Deps{
		Profiles: service.NewProfileService(profiles),
		Messages: messages,
	}, testSecret, nil))
	t.Cleanup(srv.Close)

	return &testServer{
		url:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		hub:   hub,
		auth:  service.NewAuthService(profiles, testSecret),
		conns: conns,
		store: store,
	}
}

func (s *testServer) user(t *testing.T, email, name string) *domain.Profile {
	t.Helper()
	resp, err := s.auth.Register(context.Background(), service.RegisterInput{Email: email, DisplayName: name, Password: "Secret123"})
	assert.Equal(t, err, nil)
	return resp.Profile
}

func (s *testServer) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	token, err := s.auth.GenerateToken(userID)
	assert.Equal(t, err, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, s.url+"/?token="+token, nil)
	assert.Equal(t, err, nil)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	assert.Equal(t, err, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Equal(t, wsjson.Write(ctx, conn, Event{Type: eventType, Payload: data}), nil)
}

// next reads events until one of eventType matches cond.
func next[T any](t *testing.T, conn *websocket.Conn, eventType string, cond func(T) bool) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		var evt Event
		if err := wsjson.Read(ctx, conn, &evt); err != nil {
			t.Fatalf("waiting for %s: %s", eventType, err)
		}
		if evt.Type != eventType {
			continue
		}
		var v T
		if len(evt.Payload) > 0 {
			assert.Equal(t, json.Unmarshal(evt.Payload, &v), nil)
		}
		if cond(v) {
			return v
		}
	}
}

func TestRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, s.url+"/", nil)
	assert.NotEqual(t, err, nil)
	assert.Equal(t, resp.StatusCode, 401)
}

func TestSnapshotOnConnect(t *testing.T) {
	s := newTestServer(t)
	ana := s.user(t, "ana@x.com", "Ana")

	conn := s.dial(t, ana.ID)
	v := next(t, conn, EventTypeSyncSnapshot, func(v livesync.View) bool { return v.Profile != nil })
	assert.Equal(t, v.Profile.ID, ana.ID)
	assert.Equal(t, len(v.Connections), 0)

	send(t, conn, EventTypePing, nil)
	next(t, conn, EventTypePong, func(json.RawMessage) bool { return true })
}

func TestRequestAndAcceptOverSocket(t *testing.T) {
	s := newTestServer(t)
	ana := s.user(t, "ana@x.com", "Ana")
	ben := s.user(t, "ben@x.com", "Ben")

	conn := s.dial(t, ben.ID)
	next(t, conn, EventTypeSyncSnapshot, func(v livesync.View) bool { return v.Profile != nil })

	req, err := s.conns.SendRequest(context.Background(), ana.ID, ben.Email)
	assert.Equal(t, err, nil)

	pushed := next(t, conn, EventTypeRequestNew, func(p RequestPayload) bool { return true })
	assert.Equal(t, pushed.ID, req.ID)

	send(t, conn, EventTypeConnectionRespond, RespondPayload{RequestID: req.ID, Accept: true})
	v := next(t, conn, EventTypeSyncSnapshot, func(v livesync.View) bool {
		c := v.Connection(ana.ID)
		return c != nil && c.State == domain.SyncConfirmed
	})
	assert.Equal(t, len(v.Incoming), 0)

	send(t, conn, EventTypeConnectionRespond, RespondPayload{RequestID: req.ID, Accept: true})
	failure := next(t, conn, EventTypeError, func(ErrorPayload) bool { return true })
	assert.Equal(t, failure.Code, "ALREADY_HANDLED")
	assert.Equal(t, failure.Type, EventTypeConnectionRespond)
}

func TestLocationAndMessages(t *testing.T) {
	s := newTestServer(t)
	ana := s.user(t, "ana@x.com", "Ana")
	ben := s.user(t, "ben@x.com", "Ben")

	req, _ := s.conns.SendRequest(context.Background(), ana.ID, ben.Email)
	_, err := s.conns.RespondToRequest(context.Background(), ben.ID, req.ID, true)
	assert.Equal(t, err, nil)

	anaConn := s.dial(t, ana.ID)
	benConn := s.dial(t, ben.ID)
	next(t, anaConn, EventTypeSyncSnapshot, func(v livesync.View) bool { return len(v.Connections) == 1 })
	next(t, benConn, EventTypeSyncSnapshot, func(v livesync.View) bool { return len(v.Connections) == 1 })

	send(t, anaConn, EventTypeLocationUpdate, LocationPayload{Latitude: 200, Longitude: 0})
	failure := next(t, anaConn, EventTypeError, func(ErrorPayload) bool { return true })
	assert.Equal(t, failure.Code, "VALIDATION_ERROR")

	send(t, anaConn, EventTypeLocationUpdate, LocationPayload{Latitude: 45.8, Longitude: 15.97})
	next(t, benConn, EventTypeSyncSnapshot, func(v livesync.View) bool {
		c := v.Connection(ana.ID)
		return c != nil && c.Location != nil && c.Location.Latitude == 45.8
	})

	send(t, anaConn, EventTypeMessageSend, MessageSendPayload{ToID: ben.ID, Text: "omw"})
	msg := next(t, benConn, EventTypeMessageNew, func(MessagePayload) bool { return true })
	assert.Equal(t, msg.Text, "omw")
	assert.Equal(t, msg.FromID, ana.ID)

	send(t, anaConn, "teleport", nil)
	failure = next(t, anaConn, EventTypeError, func(ErrorPayload) bool { return true })
	assert.Equal(t, failure.Code, "UNKNOWN_EVENT")
}

func TestHubCountsConnections(t *testing.T) {
	s := newTestServer(t)
	ana := s.user(t, "ana@x.com", "Ana")

	first := s.dial(t, ana.ID)
	next(t, first, EventTypeSyncSnapshot, func(v livesync.View) bool { return v.Profile != nil })
	second := s.dial(t, ana.ID)
	next(t, second, EventTypeSyncSnapshot, func(v livesync.View) bool { return v.Profile != nil })

	assert.Equal(t, s.hub.Connections(), 2)

	first.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Connections() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, s.hub.Connections(), 1)
}
