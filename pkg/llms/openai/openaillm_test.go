package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const responsesReply = `{
  "id": "resp_1",
  "object": "response",
  "status": "completed",
  "model": "gpt-4o-mini",
  "output": [
    {
      "type": "message",
      "id": "msg_1",
      "role": "assistant",
      "status": "completed",
      "content": [{"type": "output_text", "text": "Hello!", "annotations": []}]
    },
    {
      "type": "function_call",
      "id": "fc_1",
      "call_id": "call_1",
      "name": "web_search",
      "arguments": "{\"query\":\"golang\"}",
      "status": "completed"
    }
  ],
  "usage": {"input_tokens": 10, "output_tokens": 5, "total_tokens": 15}
}`

type capture struct {
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func newServer(t *testing.T, reply string, c *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.header = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &c.body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	t.Setenv(tokenEnvVarName, "")
	t.Setenv(modelEnvVarName, "")
	t.Setenv(baseURLEnvVarName, "")
	_, err := New()
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = New(WithToken("t"), WithProvider(llms.ProviderAzure))
	assert.EqualError(t, err, "base URL is required for Azure")

	_, err = New(WithToken("t"), WithProvider(llms.ProviderBedrock))
	assert.EqualError(t, err, "unsupported provider type: BEDROCK")

	llm, err := New(WithToken("t"))
	require.NoError(t, err)
	assert.Equal(t, DefaultChatModel, llm.GetName())
	assert.Equal(t, llms.ProviderOpenAI, llm.GetProviderType())
}

func TestGenerateContent_Responses(t *testing.T) {
	t.Parallel()
	c := &capture{}
	srv := newServer(t, responsesReply, c)

	llm, err := New(WithToken("secret"), WithBaseURL(srv.URL+"/v1"), WithModel("gpt-4o-mini"))
	require.NoError(t, err)

	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are CEO."),
		llms.MessageFromTextParts(llms.RoleHuman, "Build an app"),
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{ID: "call_0", Type: "function", FunctionCall: &llms.FunctionCall{Name: "web_search", Arguments: "{}"}}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "call_0", Name: "web_search", Content: "result"}),
		llms.MessageFromParts(llms.RoleHuman, llms.TextPart("look"), llms.ImageURLPart("https://example.com/a.png")),
	}
	resp, err := llm.GenerateContent(context.Background(), messages,
		llms.WithMaxTokens(100),
		llms.WithTemperature(0.5),
		llms.WithTools([]llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "web_search", Description: "search"}}}),
		llms.WithMetadata(map[string]any{"chat": 1}),
		llms.WithResponseFormat(&schema.ResponseFormat{Type: "json_schema", JSONSchema: &schema.ResponseFormatJSONSchema{Name: "OutputResult", Schema: &schema.Property{Type: "object"}}}),
	)
	require.NoError(t, err)

	assert.Equal(t, "/v1/responses", c.path)
	assert.Equal(t, "Bearer secret", c.header.Get("Authorization"))
	assert.Equal(t, "gpt-4o-mini", c.body["model"])
	assert.EqualValues(t, 100, c.body["max_output_tokens"])
	assert.EqualValues(t, 0.5, c.body["temperature"])
	assert.Equal(t, map[string]any{"chat": "1"}, c.body["metadata"])

	input := c.body["input"].([]any)
	require.Len(t, input, 5)
	assert.Equal(t, map[string]any{"role": "system", "content": "You are CEO."}, input[0])
	assert.Equal(t, map[string]any{"role": "user", "content": "Build an app"}, input[1])
	assert.Equal(t, "function_call", input[2].(map[string]any)["type"])
	assert.Equal(t, map[string]any{"type": "function_call_output", "call_id": "call_0", "output": "result"}, input[3])
	parts := input[4].(map[string]any)["content"].([]any)
	assert.Equal(t, "input_image", parts[1].(map[string]any)["type"])

	tools := c.body["tools"].([]any)
	assert.Equal(t, "web_search", tools[0].(map[string]any)["name"])
	format := c.body["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "OutputResult", format["name"])

	require.Len(t, resp.Choices, 1)
	choice := resp.Choices[0]
	assert.Equal(t, "Hello!", choice.Content)
	assert.Equal(t, "completed", choice.StopReason)
	require.Len(t, choice.ToolCalls, 1)
	assert.Equal(t, "call_1", choice.ToolCalls[0].ID)
	assert.Equal(t, "web_search", choice.ToolCalls[0].FunctionCall.Name)
	assert.Equal(t, `{"query":"golang"}`, choice.ToolCalls[0].FunctionCall.Arguments)
	assert.EqualValues(t, 10, choice.GenerationInfo["InputTokens"])
	assert.EqualValues(t, 15, choice.GenerationInfo["TotalTokens"])
}

func TestGenerateContent_Azure(t *testing.T) {
	t.Parallel()
	c := &capture{}
	srv := newServer(t, responsesReply, c)

	llm, err := New(WithToken("secret"), WithBaseURL(srv.URL), WithModel("gpt4o-deployment"),
		WithProvider(llms.ProviderAzure), WithAPIVersion("2025-04-01-preview"))
	require.NoError(t, err)

	_, err = llm.GenerateContent(context.Background(), []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")})
	require.NoError(t, err)
	assert.Equal(t, "/openai/responses", c.path)
	assert.Equal(t, "api-version=2025-04-01-preview", c.query)
	assert.Equal(t, "secret", c.header.Get("api-key"))
	assert.Equal(t, "gpt4o-deployment", c.body["model"])
}

func TestGenerateContent_Perplexity(t *testing.T) {
	t.Parallel()
	c := &capture{}
	srv := newServer(t, `{
  "id": "1", "object": "chat.completion", "model": "sonar",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "answer"}}],
  "usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
}`, c)

	llm, err := New(WithToken("secret"), WithBaseURL(srv.URL), WithModel("sonar"), WithProvider(llms.ProviderPerplexity))
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "sys"),
		llms.MessageFromTextParts(llms.RoleHuman, "hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/chat/completions", c.path)
	assert.Len(t, c.body["messages"], 2)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "answer", resp.Choices[0].Content)
	assert.Equal(t, "stop", resp.Choices[0].StopReason)
	assert.EqualValues(t, 5, resp.Choices[0].GenerationInfo["TotalTokens"])
}

func TestNewResponsesRequest_Errors(t *testing.T) {
	t.Parallel()
	_, err := newResponsesRequest("m", []llms.Message{{Role: "unknown"}}, llms.NewCallOptions())
	assert.ErrorIs(t, err, llms.ErrUnexpectedRole)

	_, err = newResponsesRequest("m", []llms.Message{llms.MessageFromTextParts(llms.RoleTool, "x")}, llms.NewCallOptions())
	assert.Error(t, err)

	_, err = newResponsesRequest("m", nil, llms.NewCallOptions(llms.WithTools([]llms.Tool{{Type: "web"}})))
	assert.EqualError(t, err, "tool type web not supported")

	req, err := newResponsesRequest("m", nil, llms.NewCallOptions())
	require.NoError(t, err)
	assert.Nil(t, req.Temperature)

	req, err = newResponsesRequest("m", nil, llms.NewCallOptions(llms.WithTemperature(0)))
	require.NoError(t, err)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)

	req, err = newResponsesRequest("m", nil, llms.NewCallOptions(
		llms.WithToolChoice(llms.ToolChoice{Type: "function", Function: &llms.FunctionReference{Name: "f"}})))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"type": "function", "name": "f"}, req.ToolChoice)
}
