package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/llms/anthropic"
	"github.com/effective-security/devagency/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "claude-3-5-sonnet-20241022"

func TestNew(t *testing.T) {
	t.Setenv(anthropic.TokenEnvVarName, "")

	_, err := anthropic.New(anthropic.WithModel(testModel))
	assert.ErrorIs(t, err, anthropic.ErrMissingToken)

	_, err = anthropic.New(anthropic.WithToken("fake-token"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is required")

	llm, err := anthropic.New(
		anthropic.WithToken("fake-token"),
		anthropic.WithModel(testModel),
		anthropic.WithBaseURL("https://custom.anthropic.com"),
		anthropic.WithHTTPClient(&http.Client{}),
		anthropic.WithAnthropicBetaHeader("beta-feature-1"),
	)
	require.NoError(t, err)
	assert.Equal(t, testModel, llm.GetName())
	assert.Equal(t, llms.ProviderAnthropic, llm.GetProviderType())

	t.Setenv(anthropic.TokenEnvVarName, "env-token")
	llm, err = anthropic.New(anthropic.WithModel(testModel))
	require.NoError(t, err)
	assert.Equal(t, "env-token", llm.Options.Token)
	assert.EqualValues(t, anthropic.DefaultMaxTokens, llm.Options.MaxTokens)
	assert.Equal(t, 2, llm.Options.MaxRetries)

	llm, err = anthropic.New(
		anthropic.WithModel(testModel),
		anthropic.WithMaxTokens(8192),
		anthropic.WithMaxTokens(0),
		anthropic.WithRetries(0, time.Minute),
	)
	require.NoError(t, err)
	assert.EqualValues(t, 8192, llm.Options.MaxTokens)
	assert.Equal(t, 0, llm.Options.MaxRetries)
	assert.Equal(t, time.Minute, llm.Options.Timeout)
}

func TestProcessMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		messages     []llms.Message
		wantMessages int
		wantSystem   string
		errContains  string
	}{
		{
			name: "empty",
		},
		{
			name: "system messages are joined",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.RoleSystem, "You are a CEO."),
				llms.MessageFromTextParts(llms.RoleSystem, "Be concise."),
			},
			wantSystem: "You are a CEO.\nBe concise.",
		},
		{
			name: "human with image",
			messages: []llms.Message{
				llms.MessageFromParts(llms.RoleHuman,
					llms.TextPart("What's in this image?"),
					llms.BinaryPart("image/jpeg", []byte("fake-image-data")),
					llms.ImageURLPart("https://example.com/a.png"),
				),
			},
			wantMessages: 1,
		},
		{
			name: "conversation with tools",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.RoleHuman, "Plan the project"),
				llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
					ID:           "call_123",
					Type:         "function",
					FunctionCall: &llms.FunctionCall{Name: "project_plan", Arguments: `{"spec":{}}`},
				}),
				llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
					ToolCallID: "call_123",
					Name:       "project_plan",
					Content:    `{"tool":"project_plan"}`,
				}),
				llms.MessageFromTextParts(llms.RoleGeneric, "Generic message"),
			},
			wantMessages: 4,
		},
		{
			name: "unsupported binary",
			messages: []llms.Message{
				llms.MessageFromParts(llms.RoleHuman, llms.BinaryPart("application/pdf", []byte("pdf"))),
			},
			errContains: "unsupported binary content type",
		},
		{
			name: "invalid tool arguments",
			messages: []llms.Message{
				llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
					ID:           "call_1",
					FunctionCall: &llms.FunctionCall{Name: "f", Arguments: `{not json`},
				}),
			},
			errContains: "failed to unmarshal tool call arguments",
		},
		{
			name: "text in tool message",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.RoleTool, "oops"),
			},
			errContains: "invalid content type",
		},
		{
			name: "unknown role",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.Role("function"), "oops"),
			},
			errContains: "unsupported message type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			messages, system, err := anthropic.ProcessMessages(tt.messages)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Len(t, messages, tt.wantMessages)
			assert.Equal(t, tt.wantSystem, system)
		})
	}
}

func TestToTools(t *testing.T) {
	t.Parallel()

	assert.Nil(t, anthropic.ToTools(nil))

	type params struct {
		Location string `json:"location" jsonschema:"description=The city name"`
	}
	s, err := schema.New(reflect.TypeOf(params{}))
	require.NoError(t, err)

	tools := anthropic.ToTools([]llms.Tool{
		{Type: "function", Function: &llms.FunctionDefinition{Name: "get_weather", Description: "Weather", Parameters: s.Parameters}},
		{Type: "function", Function: &llms.FunctionDefinition{Name: "no_params", Description: "None"}},
		{Type: "function"},
	})
	require.Len(t, tools, 2)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "get_weather", tools[0].OfTool.Name)
	assert.Contains(t, tools[0].OfTool.InputSchema.Properties, "location")
	assert.Equal(t, []string{"location"}, tools[0].OfTool.InputSchema.Required)
	assert.Nil(t, tools[1].OfTool.InputSchema.Properties)
}

type capture struct {
	lock   sync.Mutex
	path   string
	header http.Header
	body   map[string]any
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *capture) {
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		c.lock.Lock()
		c.path = r.URL.Path
		c.header = r.Header.Clone()
		_ = json.Unmarshal(raw, &c.body)
		c.lock.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	srv, c := newServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-sonnet-20241022",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"location": "Boston"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)

	llm, err := anthropic.New(
		anthropic.WithToken("fake-token"),
		anthropic.WithModel(testModel),
		anthropic.WithBaseURL(srv.URL),
		anthropic.WithAnthropicBetaHeader("beta-1"),
	)
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(),
		[]llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, "You are the CTO."),
			llms.MessageFromTextParts(llms.RoleHuman, "Weather in Boston?"),
		},
		llms.WithTemperature(0.5),
		llms.WithMaxTokens(100),
		llms.WithTools([]llms.Tool{
			{Type: "function", Function: &llms.FunctionDefinition{Name: "get_weather", Description: "Weather"}},
		}),
		llms.WithToolChoice("none"),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 2)

	assert.Equal(t, "Let me check.", resp.Choices[0].Content)
	assert.Equal(t, "tool_use", resp.Choices[0].StopReason)
	assert.Equal(t, int64(15), resp.Choices[0].GenerationInfo["TotalTokens"])

	require.Len(t, resp.Choices[1].ToolCalls, 1)
	tc := resp.Choices[1].ToolCalls[0]
	assert.Equal(t, "toolu_1", tc.ID)
	assert.Equal(t, "function", tc.Type)
	assert.Equal(t, "get_weather", tc.FunctionCall.Name)
	assert.JSONEq(t, `{"location":"Boston"}`, tc.FunctionCall.Arguments)
	assert.Equal(t, tc.FunctionCall, resp.Choices[1].FuncCall)

	c.lock.Lock()
	defer c.lock.Unlock()
	assert.Equal(t, "/v1/messages", c.path)
	assert.Equal(t, "fake-token", c.header.Get("X-Api-Key"))
	assert.Equal(t, "beta-1", c.header.Get("Anthropic-Beta"))
	assert.Equal(t, testModel, c.body["model"])
	assert.EqualValues(t, 100, c.body["max_tokens"])
	assert.EqualValues(t, 0.5, c.body["temperature"])
	system, ok := c.body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "You are the CTO.", system[0].(map[string]any)["text"])
	assert.Len(t, c.body["tools"], 1)
	assert.Equal(t, map[string]any{"type": "none"}, c.body["tool_choice"])
}

func TestGenerateContent_Errors(t *testing.T) {
	t.Parallel()

	t.Run("api_error", func(t *testing.T) {
		t.Parallel()
		srv, _ := newServer(t, http.StatusBadRequest,
			`{"type":"error","error":{"type":"invalid_request_error","message":"bad request"}}`)
		llm, err := anthropic.New(anthropic.WithToken("t"), anthropic.WithModel(testModel), anthropic.WithBaseURL(srv.URL))
		require.NoError(t, err)

		_, err = llm.GenerateContent(context.Background(), []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create message")
	})

	t.Run("empty_content", func(t *testing.T) {
		t.Parallel()
		srv, _ := newServer(t, http.StatusOK,
			`{"id":"msg_2","type":"message","role":"assistant","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`)
		llm, err := anthropic.New(anthropic.WithToken("t"), anthropic.WithModel(testModel), anthropic.WithBaseURL(srv.URL))
		require.NoError(t, err)

		_, err = llm.GenerateContent(context.Background(), []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")})
		assert.ErrorIs(t, err, anthropic.ErrEmptyResponse)
	})

	t.Run("bad_messages", func(t *testing.T) {
		t.Parallel()
		llm, err := anthropic.New(anthropic.WithToken("t"), anthropic.WithModel(testModel), anthropic.WithBaseURL("http://127.0.0.1:1"))
		require.NoError(t, err)

		_, err = llm.GenerateContent(context.Background(), []llms.Message{llms.MessageFromTextParts(llms.RoleTool, "x")})
		assert.ErrorIs(t, err, anthropic.ErrInvalidContentType)
	})
}
