package provider

import (
	"strings"
	"testing"

	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHistory() []chat.Turn {
	return []chat.Turn{
		chat.NewUserTurn("set a timer"),
		chat.NewModelTurn("", []chat.ToolCallRequest{
			{CallID: "call-1", Name: "timer_start", Arguments: `{"duration_seconds":60}`},
		}, false),
		chat.NewToolResultTurn(chat.ToolResultPayload{
			CallID: "call-1", Name: "timer_start", Content: `{"id":"t1"}`,
		}),
		chat.NewModelTurn("Timer set.", nil, false),
	}
}

func testSchemas() []chat.ToolSchema {
	return []chat.ToolSchema{{
		Name:          "timer_start",
		Description:   "Start a countdown timer",
		ParameterSpec: `{"type":"object","properties":{"duration_seconds":{"type":"integer"}}}`,
	}}
}

// --- factory / credentials ---

func TestNewFailsWithoutCredential(t *testing.T) {
	t.Setenv("STEWARD_TEST_KEY", "")
	_, err := New(Config{Provider: "openai", Family: "openai-completions", Model: "gpt-test", EnvVar: "STEWARD_TEST_KEY"}, logging.Silent())
	var cfgErr *chat.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "openai", cfgErr.Provider)
}

func TestNewResolvesEnvCredential(t *testing.T) {
	t.Setenv("STEWARD_TEST_KEY", "sk-from-env")
	a, err := New(Config{Provider: "openai", Family: "openai-completions", Model: "gpt-test", EnvVar: "STEWARD_TEST_KEY"}, logging.Silent())
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", a.ModelName())
	assert.Equal(t, KindDelta, a.Kind())
}

func TestNewConfiguredKeyTakesPrecedence(t *testing.T) {
	t.Setenv("STEWARD_TEST_KEY", "sk-from-env")
	cfg := Config{Provider: "gemini", Family: "google-generative-ai", Model: "gemini-test", APIKey: "configured", EnvVar: "STEWARD_TEST_KEY"}
	a, err := New(cfg, logging.Silent())
	require.NoError(t, err)
	assert.Equal(t, KindWhole, a.Kind())
	assert.Equal(t, "configured", a.(*geminiAdapter).cfg.APIKey)
}

func TestNewRejectsUnknownFamily(t *testing.T) {
	_, err := New(Config{Provider: "x", Family: "carrier-pigeon", APIKey: "k"}, logging.Silent())
	var cfgErr *chat.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

// --- OpenAI wire translation ---

func TestOpenAIBuildRequestBody(t *testing.T) {
	a := newOpenAIAdapter(Config{Provider: "openai", Model: "gpt-test", APIKey: "k", SystemPrompt: "be helpful"}, logging.Silent())
	body := a.buildRequestBody(testHistory(), testSchemas())

	msgs := body["messages"].([]map[string]any)
	require.Len(t, msgs, 5)

	assert.Equal(t, "system", msgs[0]["role"])
	assert.Equal(t, "be helpful", msgs[0]["content"])
	assert.Equal(t, "user", msgs[1]["role"])

	assistant := msgs[2]
	assert.Equal(t, "assistant", assistant["role"])
	calls := assistant["tool_calls"].([]map[string]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "call-1", calls[0]["id"])
	fn := calls[0]["function"].(map[string]any)
	assert.Equal(t, "timer_start", fn["name"])

	toolMsg := msgs[3]
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call-1", toolMsg["tool_call_id"])

	assert.Equal(t, true, body["stream"])
	tools := body["tools"].([]map[string]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "function", tools[0]["type"])
}

// --- Gemini wire translation ---

func TestGeminiBuildRequestBody(t *testing.T) {
	a := newGeminiAdapter(Config{Provider: "gemini", Model: "gemini-test", APIKey: "k", SystemPrompt: "be helpful"}, logging.Silent())
	body := a.buildRequestBody(testHistory(), testSchemas())

	// System prompt uses the dedicated field, not a leading message.
	require.Contains(t, body, "systemInstruction")

	contents := body["contents"].([]map[string]any)
	require.Len(t, contents, 4)
	assert.Equal(t, "user", contents[0]["role"])
	assert.Equal(t, "model", contents[1]["role"])

	// Tool results use the distinct "function" role.
	fnTurn := contents[2]
	assert.Equal(t, "function", fnTurn["role"])
	parts := fnTurn["parts"].([]map[string]any)
	require.Len(t, parts, 1)
	require.Contains(t, parts[0], "functionResponse")

	tools := body["tools"].([]map[string]any)
	require.Len(t, tools, 1)
	decls := tools[0]["functionDeclarations"].([]map[string]any)
	require.Len(t, decls, 1)
	assert.Equal(t, "timer_start", decls[0]["name"])
}

// --- SSE scanner ---

func TestSSEScannerFiltersDataLines(t *testing.T) {
	raw := ": comment\n" +
		"event: ping\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"data: [DONE]\n"
	sc := newSSEScanner(strings.NewReader(raw))

	d1, ok := sc.Next()
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, d1)

	d2, ok := sc.Next()
	require.True(t, ok)
	assert.Equal(t, "[DONE]", d2)

	_, ok = sc.Next()
	assert.False(t, ok)
	assert.NoError(t, sc.Err())
}

func TestParseJSONSchema(t *testing.T) {
	assert.Nil(t, parseJSONSchema(""))
	assert.Nil(t, parseJSONSchema("{not json"))
	m := parseJSONSchema(`{"type":"object"}`)
	require.NotNil(t, m)
	assert.Equal(t, "object", m["type"])
}
