package handlers

import (
	"bytes"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository/memory"
	"github.com/vedran77/orbit/internal/service"
	"github.com/vedran77/orbit/internal/transport/http/middleware"
)

const testSecret = "handlers-test-secret"

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("v", "0")
}

type apiError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func newAPI(t *testing.T) http.Handler {
	t.Helper()
	store := memory.New()
	profiles := store.Profiles()

	conns := service.NewConnectionService(profiles, store.Requests(), service.NewFetchResolver(profiles))
	messages := service.NewMessageService(profiles, time.Minute)
	t.Cleanup(messages.Close)

	h := &Handlers{
		Auth:        NewAuthHandler(service.NewAuthService(profiles, testSecret)),
		Profile:     NewProfileHandler(service.NewProfileService(profiles), service.NewPhotoService(nil, "", "")),
		Connections: NewConnectionHandler(conns),
		Messages:    NewMessageHandler(messages),
	}
	mux := http.NewServeMux()
	h.Register(mux, middleware.Auth(testSecret))
	return mux
}

func call(t *testing.T, api http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.Equal(t, json.NewEncoder(&buf).Encode(body), nil)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	assert.Equal(t, json.NewDecoder(rec.Body).Decode(&v), nil)
	return v
}

func register(t *testing.T, api http.Handler, email, name string) service.AuthResponse {
	t.Helper()
	rec := call(t, api, http.MethodPost, "/api/v1/auth/register", "", service.RegisterInput{
		Email: email, DisplayName: name, Password: "Secret123",
	})
	assert.Equal(t, rec.Code, http.StatusCreated)
	return decode[service.AuthResponse](t, rec)
}

func TestConnectionFlow(t *testing.T) {
	api := newAPI(t)
	ana := register(t, api, "ana@x.com", "Ana")
	ben := register(t, api, "ben@x.com", "Ben")

	rec := call(t, api, http.MethodPost, "/api/v1/connection-requests", ana.AccessToken, map[string]string{"email": "ben@x.com"})
	assert.Equal(t, rec.Code, http.StatusCreated)
	req := decode[domain.ConnectionRequest](t, rec)
	assert.Equal(t, req.Status, domain.RequestPending)

	rec = call(t, api, http.MethodPost, "/api/v1/connection-requests", ben.AccessToken, map[string]string{"email": "ana@x.com"})
	assert.Equal(t, rec.Code, http.StatusConflict)
	assert.Equal(t, decode[apiError](t, rec).Error.Code, "ALREADY_EXISTS")

	rec = call(t, api, http.MethodGet, "/api/v1/connection-requests/incoming", ben.AccessToken, nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, len(decode[[]domain.ConnectionRequest](t, rec)), 1)

	rec = call(t, api, http.MethodPost, "/api/v1/connection-requests/"+req.ID.String()+"/accept", ana.AccessToken, nil)
	assert.Equal(t, rec.Code, http.StatusForbidden)

	rec = call(t, api, http.MethodPost, "/api/v1/connection-requests/"+req.ID.String()+"/accept", ben.AccessToken, nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	rc := decode[domain.ResolvedConnection](t, rec)
	assert.Equal(t, rc.ID, ana.Profile.ID)
	assert.Equal(t, rc.State, domain.SyncOptimistic)

	rec = call(t, api, http.MethodPost, "/api/v1/connection-requests/"+req.ID.String()+"/reject", ben.AccessToken, nil)
	assert.Equal(t, rec.Code, http.StatusConflict)
	assert.Equal(t, decode[apiError](t, rec).Error.Code, "ALREADY_HANDLED")

	rec = call(t, api, http.MethodPut, "/api/v1/me/mood", ben.AccessToken, map[string]string{"emoji": "🏃", "text": "running"})
	assert.Equal(t, rec.Code, http.StatusOK)

	rec = call(t, api, http.MethodGet, "/api/v1/connections", ana.AccessToken, nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	list := decode[[]domain.ResolvedConnection](t, rec)
	assert.Equal(t, len(list), 1)
	assert.Equal(t, list[0].ID, ben.Profile.ID)
	assert.Equal(t, list[0].Mood.Text, "running")
	assert.Equal(t, list[0].State, domain.SyncConfirmed)

	rec = call(t, api, http.MethodDelete, "/api/v1/me/mood", ben.AccessToken, nil)
	assert.Equal(t, rec.Code, http.StatusNoContent)
	rec = call(t, api, http.MethodGet, "/api/v1/me", ben.AccessToken, nil)
	assert.Equal(t, decode[domain.Profile](t, rec).Mood == nil, true)

	rec = call(t, api, http.MethodPatch, "/api/v1/connections/"+ben.Profile.ID.String(), ana.AccessToken, map[string]string{"nickname": "benny"})
	assert.Equal(t, rec.Code, http.StatusNoContent)

	rec = call(t, api, http.MethodDelete, "/api/v1/connections/"+ben.Profile.ID.String(), ana.AccessToken, nil)
	assert.Equal(t, rec.Code, http.StatusNoContent)

	rec = call(t, api, http.MethodDelete, "/api/v1/connections/"+ben.Profile.ID.String(), ana.AccessToken, nil)
	assert.Equal(t, rec.Code, http.StatusNotFound)

	rec = call(t, api, http.MethodGet, "/api/v1/connections", ben.AccessToken, nil)
	assert.Equal(t, len(decode[[]domain.ResolvedConnection](t, rec)), 0)
}

func TestSendRequestErrors(t *testing.T) {
	api := newAPI(t)
	ana := register(t, api, "ana@x.com", "Ana")

	rec := call(t, api, http.MethodPost, "/api/v1/connection-requests", ana.AccessToken, map[string]string{"email": "ana@x.com"})
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	assert.Equal(t, decode[apiError](t, rec).Error.Code, "CANNOT_REQUEST_SELF")

	rec = call(t, api, http.MethodPost, "/api/v1/connection-requests", ana.AccessToken, map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, rec.Code, http.StatusNotFound)

	rec = call(t, api, http.MethodPost, "/api/v1/connection-requests", ana.AccessToken, map[string]string{"email": "nope"})
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	assert.Equal(t, decode[apiError](t, rec).Error.Code, "VALIDATION_ERROR")
}

func TestSearchEndpoint(t *testing.T) {
	api := newAPI(t)
	ana := register(t, api, "ana@x.com", "Ana")
	register(t, api, "abc@x.com", "Alpha")

	rec := call(t, api, http.MethodGet, "/api/v1/users/search?q=ab", ana.AccessToken, nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, len(decode[[]service.SearchResult](t, rec)), 0)

	rec = call(t, api, http.MethodGet, "/api/v1/users/search?q=abc", ana.AccessToken, nil)
	found := decode[[]service.SearchResult](t, rec)
	assert.Equal(t, len(found), 1)
	assert.Equal(t, found[0].Email, "abc@x.com")
}

func TestAuthRequired(t *testing.T) {
	api := newAPI(t)

	rec := call(t, api, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, rec.Code, http.StatusUnauthorized)

	rec = call(t, api, http.MethodGet, "/api/v1/me", "not-a-token", nil)
	assert.Equal(t, rec.Code, http.StatusUnauthorized)

	rec = call(t, api, http.MethodGet, "/health", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
}

func TestLoginAndLocation(t *testing.T) {
	api := newAPI(t)
	register(t, api, "ana@x.com", "Ana")

	rec := call(t, api, http.MethodPost, "/api/v1/auth/login", "", service.LoginInput{Email: "ana@x.com", Password: "wrong"})
	assert.Equal(t, rec.Code, http.StatusUnauthorized)

	rec = call(t, api, http.MethodPost, "/api/v1/auth/login", "", service.LoginInput{Email: "ana@x.com", Password: "Secret123"})
	assert.Equal(t, rec.Code, http.StatusOK)
	token := decode[service.AuthResponse](t, rec).AccessToken

	rec = call(t, api, http.MethodPut, "/api/v1/me/location", token, map[string]float64{"latitude": 120, "longitude": 0})
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = call(t, api, http.MethodPut, "/api/v1/me/location", token, map[string]float64{"latitude": 45.8, "longitude": 15.97})
	assert.Equal(t, rec.Code, http.StatusOK)

	rec = call(t, api, http.MethodGet, "/api/v1/me", token, nil)
	me := decode[domain.Profile](t, rec)
	assert.Equal(t, me.Location.Latitude, 45.8)

	rec = call(t, api, http.MethodPost, "/api/v1/me/photo-upload", token, map[string]string{"content_type": "image/png"})
	assert.Equal(t, rec.Code, http.StatusServiceUnavailable)
}

func TestMessages(t *testing.T) {
	api := newAPI(t)
	ana := register(t, api, "ana@x.com", "Ana")
	ben := register(t, api, "ben@x.com", "Ben")

	rec := call(t, api, http.MethodPost, "/api/v1/messages", ana.AccessToken, map[string]string{"to_id": ben.Profile.ID.String(), "text": "hi"})
	assert.Equal(t, rec.Code, http.StatusForbidden)
	assert.Equal(t, decode[apiError](t, rec).Error.Code, "NOT_CONNECTED")

	rec = call(t, api, http.MethodPost, "/api/v1/connection-requests", ana.AccessToken, map[string]string{"email": "ben@x.com"})
	req := decode[domain.ConnectionRequest](t, rec)
	call(t, api, http.MethodPost, "/api/v1/connection-requests/"+req.ID.String()+"/accept", ben.AccessToken, nil)

	rec = call(t, api, http.MethodPost, "/api/v1/messages", ana.AccessToken, map[string]string{"to_id": ben.Profile.ID.String(), "text": "hi"})
	assert.Equal(t, rec.Code, http.StatusCreated)

	rec = call(t, api, http.MethodGet, "/api/v1/messages", ben.AccessToken, nil)
	inbox := decode[[]domain.EphemeralMessage](t, rec)
	assert.Equal(t, len(inbox), 1)
	assert.Equal(t, inbox[0].Text, "hi")
}
