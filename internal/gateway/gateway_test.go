package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjadal/steward/internal/action"
	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/config"
	"github.com/jjadal/steward/internal/engine"
	"github.com/jjadal/steward/internal/logging"
	"github.com/jjadal/steward/internal/prompt"
	"github.com/jjadal/steward/internal/provider"
	"github.com/jjadal/steward/internal/store"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Gateway.Auth.Token = "test-token-123"
	cfg.Providers = map[string]config.ProviderEntry{
		"mock": {API: "openai-completions", Models: []config.ModelEntry{{ID: "test-model"}}},
	}
	cfg.Defaults.Model = "test-model"
	cfg.Personalities = []config.PersonalityEntry{{ID: "helper", Default: true}}
	return cfg
}

type stubTool struct{ name string }

func (s stubTool) Schema() chat.ToolSchema {
	return chat.ToolSchema{Name: s.name, Description: "stub", ParameterSpec: `{"type":"object"}`}
}

func (s stubTool) Execute(ctx context.Context, params json.RawMessage, ec action.ExecContext) action.Result {
	return action.Result{Success: true}
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := testConfig()

	db, err := store.Open(":memory:", logging.Silent())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tools := action.NewRegistry(logging.Silent())
	tools.MustRegister(stubTool{name: "note_append"}, stubTool{name: "timer_start"})
	srv := New(cfg, logging.Silent(), WithTools(tools))

	prompts := prompt.NewProvider(t.TempDir(), t.TempDir(), nil, logging.Silent())
	mgr := engine.NewManager(cfg, store.NewConversations(db), tools, prompts, nil, srv.EventSink(), logging.Silent())
	mgr.SetAdapterFactory(func(pc provider.Config, log *logging.Logger) (provider.Adapter, error) {
		return &provider.MockAdapter{Model: pc.Model}, nil
	})
	srv.AttachManager(mgr)

	mux := http.NewServeMux()
	srv.registerHTTPRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func connect(t *testing.T, conn *websocket.Conn, token string) Frame {
	t.Helper()
	req, err := NewRequest("req-connect", "connect", ConnectParams{
		Client: ClientInfo{ID: "test-client", Version: "1.0.0", Platform: "linux"},
		Auth:   &ConnectAuth{Token: token},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

// call issues one RPC and reads frames until the matching response arrives,
// returning any event frames seen along the way.
func call(t *testing.T, conn *websocket.Conn, id, method string, params any) (Frame, []Frame) {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	var events []Frame
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == FrameTypeEvent {
			events = append(events, f)
			continue
		}
		if f.ID == id {
			return f, events
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandshakeSuccess(t *testing.T) {
	_, ts := testServer(t)
	conn := dial(t, ts)

	resp := connect(t, conn, "test-token-123")
	assert.Equal(t, FrameTypeResponse, resp.Type)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var hello HelloOK
	require.NoError(t, json.Unmarshal(resp.Payload, &hello))
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.Contains(t, hello.Methods, "chat.send")
	assert.Contains(t, hello.Events, "chat.delta")
}

func TestHandshakeBadToken(t *testing.T) {
	_, ts := testServer(t)
	conn := dial(t, ts)

	resp := connect(t, conn, "wrong-token")
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unauthorized", resp.Error.Code)
}

func TestChatSendStreamsAndResponds(t *testing.T) {
	_, ts := testServer(t)
	conn := dial(t, ts)
	connect(t, conn, "test-token-123")

	resp, events := call(t, conn, "req-send", "chat.send", map[string]any{"text": "hello"})
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var payload struct {
		ChatID string `json:"chatId"`
		Turns  int    `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	assert.NotEmpty(t, payload.ChatID)
	assert.Equal(t, 2, payload.Turns)

	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Event)
	}
	assert.Contains(t, names, "chat.delta")
	assert.Contains(t, names, "chat.final")
}

func TestChatSendEmptyTextRejected(t *testing.T) {
	_, ts := testServer(t)
	conn := dial(t, ts)
	connect(t, conn, "test-token-123")

	resp, _ := call(t, conn, "req-bad", "chat.send", map[string]any{"text": "  "})
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_params", resp.Error.Code)
}

func TestChatListRPC(t *testing.T) {
	srv, ts := testServer(t)
	require.NoError(t, srv.manager.SendUserMessage(context.Background(), "seed chat"))

	conn := dial(t, ts)
	connect(t, conn, "test-token-123")

	resp, _ := call(t, conn, "req-list", "chat.list", nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var payload struct {
		Chats []store.ConversationSummary `json:"chats"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	require.Len(t, payload.Chats, 1)
	assert.Equal(t, "seed chat", payload.Chats[0].Title)
}

func TestToolsListRPC(t *testing.T) {
	_, ts := testServer(t)
	conn := dial(t, ts)
	connect(t, conn, "test-token-123")

	var payload struct {
		Tools []chat.ToolSchema `json:"tools"`
	}

	resp, _ := call(t, conn, "req-tools", "tools.list", nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	require.Len(t, payload.Tools, 2)

	resp, _ = call(t, conn, "req-tools-2", "tools.list", map[string]any{"names": []string{"timer_start"}})
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	require.Len(t, payload.Tools, 1)
	assert.Equal(t, "timer_start", payload.Tools[0].Name)
}

func TestUnknownMethod(t *testing.T) {
	_, ts := testServer(t)
	conn := dial(t, ts)
	connect(t, conn, "test-token-123")

	resp, _ := call(t, conn, "req-x", "bogus.method", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "method_not_found", resp.Error.Code)
}

func TestAuthorize(t *testing.T) {
	assert.True(t, Authorize("secret", &ConnectAuth{Token: "secret"}).OK)
	assert.False(t, Authorize("secret", &ConnectAuth{Token: "nope"}).OK)
	assert.False(t, Authorize("secret", nil).OK)
	assert.False(t, Authorize("secret", &ConnectAuth{}).OK)
	assert.False(t, Authorize("", &ConnectAuth{Token: "anything"}).OK)
}

func TestTranslateEvent(t *testing.T) {
	name, payload := translateEvent(engine.Event{Type: engine.EventDelta, ChatID: "c1", Text: "hi"})
	assert.Equal(t, "chat.delta", name)
	assert.Equal(t, "hi", payload["text"])

	name, payload = translateEvent(engine.Event{
		Type: engine.EventError, ChatID: "c1",
		Err: &chat.TransportError{Provider: "openai", Message: "boom"},
	})
	assert.Equal(t, "chat.error", name)
	assert.Contains(t, payload["message"], "boom")

	name, payload = translateEvent(engine.Event{
		Type: engine.EventToolResult, ChatID: "c1",
		ToolName: "echo", ToolCallID: "call_1", ToolSuccess: true, Text: "done",
	})
	assert.Equal(t, "chat.tool", name)
	assert.Equal(t, "result", payload["phase"])
	assert.Equal(t, true, payload["success"])
}
