package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/api/middleware"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/identity"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/preview"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/sandbox"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/scheduler"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/workspace"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/monitoring"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/store"
)

type streamEnv struct {
	server   *httptest.Server
	identity *identity.Service
	manager  *workspace.Manager
	store    *store.Store
	metrics  *monitoring.Metrics
}

func newStreamEnv(t *testing.T) *streamEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.OpenMemory(t)
	ids, err := identity.NewService([]byte("stream-test-secret-value"), time.Hour)
	require.NoError(t, err)

	host := sandbox.NewHost("http://preview.test", nil)
	metrics := monitoring.NewMetrics()
	mgr := workspace.NewManager(preview.NewCompiler("unpkg.com", nil), host, st, workspace.Config{
		Delay: time.Hour,
		Mode:  scheduler.Manual,
	}, nil).WithPreviewURL(host.URL)
	t.Cleanup(mgr.Shutdown)

	router := gin.New()
	router.GET("/stream", middleware.Auth(ids), NewHandler(mgr, st, metrics, nil).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &streamEnv{server: srv, identity: ids, manager: mgr, store: st, metrics: metrics}
}

func (e *streamEnv) session(t *testing.T) (string, string) {
	t.Helper()
	s, err := e.identity.SignInAnonymously()
	require.NoError(t, err)
	return s.Token, s.Principal.OwnerID
}

func (e *streamEnv) dial(t *testing.T, wsID, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/stream?workspace=" + wsID + "&token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

// readUntil reads messages until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == want {
			return msg
		}
	}
}

// collect reads until one message of every wanted type has arrived, in any
// order.
func collect(t *testing.T, conn *websocket.Conn, want ...string) map[string]map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	got := make(map[string]map[string]interface{})
	for len(got) < len(want) {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		typ, _ := msg["type"].(string)
		for _, w := range want {
			if typ == w {
				got[typ] = msg
			}
		}
	}
	return got
}

func TestStreamRejectsMissingToken(t *testing.T) {
	e := newStreamEnv(t)

	_, resp, err := e.dial(t, "ws_x", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamRejectsForeignWorkspace(t *testing.T) {
	e := newStreamEnv(t)
	_, alice := e.session(t)
	bobToken, _ := e.session(t)

	w, err := e.manager.Open(context.Background(), workspace.OpenRequest{OwnerID: alice})
	require.NoError(t, err)

	_, resp, err := e.dial(t, w.ID(), bobToken)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamEvents(t *testing.T) {
	e := newStreamEnv(t)
	token, owner := e.session(t)

	w, err := e.manager.Open(context.Background(), workspace.OpenRequest{OwnerID: owner})
	require.NoError(t, err)

	conn, _, err := e.dial(t, w.ID(), token)
	require.NoError(t, err)
	defer conn.Close()

	system := readUntil(t, conn, "system")
	assert.Equal(t, w.ID(), system["workspace"])
	readUntil(t, conn, string(workspace.EventProjects))

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	readUntil(t, conn, "pong")

	require.NoError(t, conn.WriteJSON(Message{Type: "run"}))
	mounted := readUntil(t, conn, string(workspace.EventMounted))
	assert.Equal(t, float64(2), mounted["generation"])
	assert.Contains(t, mounted["url"], "http://preview.test/preview/")

	_, err = w.Save(context.Background())
	require.NoError(t, err)
	got := collect(t, conn, string(workspace.EventNotification), string(workspace.EventProjects))
	notification := got[string(workspace.EventNotification)]
	assert.Equal(t, "Saved", notification["notification"].(map[string]interface{})["message"])

	list, ok := got[string(workspace.EventProjects)]["projects"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestStreamEditAndErrors(t *testing.T) {
	e := newStreamEnv(t)
	token, owner := e.session(t)

	w, err := e.manager.Open(context.Background(), workspace.OpenRequest{OwnerID: owner})
	require.NoError(t, err)

	conn, _, err := e.dial(t, w.ID(), token)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "system")

	require.NoError(t, conn.WriteJSON(Message{Type: "edit", File: project.StylesheetFile, Content: "h1 { color: blue; }"}))
	ack := readUntil(t, conn, "ack")
	assert.Equal(t, "edit", ack["action"])
	assert.Equal(t, false, ack["scheduled"], "manual mode never schedules")
	assert.Equal(t, "h1 { color: blue; }", w.Files().Content(project.StylesheetFile))

	require.NoError(t, conn.WriteJSON(Message{Type: "edit", File: "missing.jsx", Content: "x"}))
	msg := readUntil(t, conn, "error")
	assert.Contains(t, msg["message"], "unknown file")

	require.NoError(t, conn.WriteJSON(Message{Type: "dance"}))
	msg = readUntil(t, conn, "error")
	assert.Contains(t, msg["message"], "unknown message type")
}

func TestStreamTracksConnections(t *testing.T) {
	e := newStreamEnv(t)
	token, owner := e.session(t)

	w, err := e.manager.Open(context.Background(), workspace.OpenRequest{OwnerID: owner})
	require.NoError(t, err)

	conn, _, err := e.dial(t, w.ID(), token)
	require.NoError(t, err)
	readUntil(t, conn, "system")
	assert.Equal(t, int64(1), e.metrics.Snapshot().ActiveConnections)
	assert.Equal(t, 1, e.manager.Bus().Subscribers(w.ID()))

	conn.Close()
	assert.Eventually(t, func() bool {
		return e.metrics.Snapshot().ActiveConnections == 0 && e.manager.Bus().Subscribers(w.ID()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRejectsOversizedAndMalformedFrames(t *testing.T) {
	e := newStreamEnv(t)
	token, owner := e.session(t)

	w, err := e.manager.Open(context.Background(), workspace.OpenRequest{OwnerID: owner})
	require.NoError(t, err)
	before := w.Files().Content(project.StylesheetFile)

	conn, _, err := e.dial(t, w.ID(), token)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "system")

	big := strings.Repeat("a", maxMessageSize)
	require.NoError(t, conn.WriteJSON(Message{Type: "edit", File: project.StylesheetFile, Content: big}))
	msg := readUntil(t, conn, "error")
	assert.Contains(t, msg["message"], "exceeds maximum")
	assert.Equal(t, before, w.Files().Content(project.StylesheetFile))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	msg = readUntil(t, conn, "error")
	assert.Contains(t, msg["message"], "invalid message")

	// The connection survives both.
	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	readUntil(t, conn, "pong")
}

func TestStreamEndsWhenWorkspaceCloses(t *testing.T) {
	e := newStreamEnv(t)
	token, owner := e.session(t)

	w, err := e.manager.Open(context.Background(), workspace.OpenRequest{OwnerID: owner})
	require.NoError(t, err)

	conn, _, err := e.dial(t, w.ID(), token)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "system")

	// Queue more requests than the reply buffer holds, then close the
	// workspace while they are still being answered.
	for range 4 * bufferSize {
		require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	}
	require.NoError(t, e.manager.Close(w.ID()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	var netErr net.Error
	assert.False(t, errors.As(err, &netErr) && netErr.Timeout(), "stream ends instead of timing out: %v", err)

	assert.Eventually(t, func() bool {
		return e.metrics.Snapshot().ActiveConnections == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, e.manager.Bus().Subscribers(w.ID()))
}
