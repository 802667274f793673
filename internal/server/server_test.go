// File: internal/server/server_test.go
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
	"github.com/xkilldash9x/mendbot/internal/healer"
	"github.com/xkilldash9x/mendbot/internal/mocks"
	"github.com/xkilldash9x/mendbot/internal/progress"
	"github.com/xkilldash9x/mendbot/internal/store"
)

// newTestServer wires a server around a memory store and a healer whose
// first external call (fork under required-fork policy) fails fast, so
// accepted sessions terminate quickly without further mocking.
func newTestServer(t *testing.T) (*Server, *store.MemoryStore, *progress.Registry) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	sessions := store.NewMemoryStore()
	registry := progress.NewRegistry(logger)
	t.Cleanup(registry.Shutdown)

	host := new(mocks.MockRepoHost)
	host.On("Fork", mock.Anything, mock.Anything, mock.Anything).
		Return(schemas.ForkResult{Success: false, Error: "forbidden"})

	h := healer.New(config.HealerConfig{
		MaxAttempts:       1,
		SessionTimeout:    time.Minute,
		EmitterGrace:      50 * time.Millisecond,
		RequireFork:       true,
		DefaultTeamName:   "mendbot",
		DefaultLeaderName: "auto",
	}, healer.Deps{
		Store:   sessions,
		Host:    host,
		Sandbox: new(mocks.MockSandboxManager),
		Git:     new(mocks.MockGitClient),
		Runner:  new(mocks.MockTestRunner),
		Scanner: new(mocks.MockBugScanner),
		Fixer:   new(mocks.MockFixEngineer),
		Emitter: registry,
	}, logger)

	return New(config.ServerConfig{Addr: ":0", ShutdownTimeout: time.Second}, h, sessions, registry, logger), sessions, registry
}

func TestHealEndpointAcceptsValidRequest(t *testing.T) {
	srv, sessions, _ := newTestServer(t)

	body := `{"repo_url":"https://github.com/octocat/app"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/heal", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id := resp["session_id"]
	require.NotEmpty(t, id)

	// The accepted session exists immediately.
	sess, err := sessions.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "octocat", sess.Owner)
}

func TestHealEndpointRejectsInvalidURL(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/heal",
		strings.NewReader(`{"repo_url":"not-a-url"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealEndpointRejectsMalformedBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/heal", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	srv.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession(t *testing.T) {
	srv, sessions, _ := newTestServer(t)

	sess := &schemas.Session{ID: "s-1", Owner: "octocat", Repo: "app", Status: schemas.StatusCompleted}
	require.NoError(t, sessions.Create(context.Background(), sess))

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got schemas.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, schemas.StatusCompleted, got.Status)
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsStreamDeliversSSE(t *testing.T) {
	srv, sessions, registry := newTestServer(t)

	sess := &schemas.Session{ID: "s-sse", Owner: "octocat", Repo: "app", Status: schemas.StatusTesting}
	require.NoError(t, sessions.Create(context.Background(), sess))

	ts := httptest.NewServer(srv.engine)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/sessions/s-sse/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	go func() {
		// Give the subscriber a moment to attach, then emit and tear down.
		time.Sleep(100 * time.Millisecond)
		registry.Publish(schemas.NewEvent("s-sse", schemas.EventLog, schemas.LogPayload{Text: "working"}))
		registry.CloseAfter("s-sse", 100*time.Millisecond)
	}()

	reader := bufio.NewReader(resp.Body)
	var sawEvent bool
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		if strings.HasPrefix(line, "event:") && strings.Contains(line, "log") {
			sawEvent = true
		}
	}
	assert.True(t, sawEvent, "no log event arrived on the SSE stream")
}

func TestEventsStreamUnknownSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebsocketMirrorsEvents(t *testing.T) {
	srv, sessions, registry := newTestServer(t)

	sess := &schemas.Session{ID: "s-ws", Owner: "octocat", Repo: "app", Status: schemas.StatusTesting}
	require.NoError(t, sessions.Create(context.Background(), sess))

	ts := httptest.NewServer(srv.engine)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/sessions/s-ws/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)
	registry.Publish(schemas.NewEvent("s-ws", schemas.EventScore, schemas.Score{Final: 90}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev schemas.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, schemas.EventScore, ev.Kind)
	assert.Equal(t, "s-ws", ev.SessionID)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
