package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatcord/internal/auth"
	"chatcord/internal/config"
	"chatcord/internal/models"
	"chatcord/internal/relay"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryDB struct {
	users  map[string]*models.User
	nextID int
}

func newMemoryDB() *memoryDB {
	return &memoryDB{users: make(map[string]*models.User), nextID: 1}
}

func (m *memoryDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := m.users[username]
	if !ok {
		return nil, fmt.Errorf("no rows in result set")
	}
	return user, nil
}

func (m *memoryDB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:           m.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.nextID++
	m.users[username] = user
	return user, nil
}

func (m *memoryDB) Close() error { return nil }

func testAuthService() *auth.Service {
	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:    []byte("test-secret"),
			ExpiresIn: time.Hour,
		},
	}
	return auth.NewService(newMemoryDB(), cfg)
}

func TestRegisterHandler(t *testing.T) {
	h := NewAuthHandlers(testAuthService())

	body, _ := json.Marshal(models.RegisterRequest{Username: "alice", Password: "correct horse"})
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	// Same username again conflicts
	req = httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	svc := testAuthService()
	h := NewAuthHandlers(svc)

	_, err := svc.Register(context.Background(), &models.RegisterRequest{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)

	body, _ := json.Marshal(models.LoginRequest{Username: "alice", Password: "correct horse"})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice", resp.Username)
	assert.NotEmpty(t, resp.Token)

	// Wrong password is rejected
	body, _ = json.Marshal(models.LoginRequest{Username: "alice", Password: "wrong horse"})
	req = httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebSocketRequiresToken(t *testing.T) {
	hub := relay.NewHub(relay.NewRoster())
	go hub.Run()
	defer hub.Shutdown()

	h := NewWebSocketHandlers(testAuthService(), hub)
	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(server.URL + "?token=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketVoiceJoinEndToEnd(t *testing.T) {
	svc := testAuthService()
	hub := relay.NewHub(relay.NewRoster())
	go hub.Run()
	defer hub.Shutdown()

	h := NewWebSocketHandlers(svc, hub)
	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer server.Close()

	ctx := context.Background()
	_, err := svc.Register(ctx, &models.RegisterRequest{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	login, err := svc.Login(ctx, &models.LoginRequest{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + login.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	join, _ := json.Marshal(relay.Event{
		Type:   relay.EventJoinVoiceRoom,
		Room:   "Lobby",
		PeerID: "peer-alice",
	})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, join))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev relay.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, relay.EventRosterUpdate, ev.Type)
	assert.Equal(t, "Lobby", ev.Room)
	require.Len(t, ev.Members, 1)
	assert.Equal(t, "alice", ev.Members[0].Username)
	assert.Equal(t, "peer-alice", ev.Members[0].PeerID)
}
