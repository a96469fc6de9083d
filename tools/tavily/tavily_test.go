package tavily_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/pkg/llmutils"
	"github.com/effective-security/devagency/tools/tavily"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Tool(t *testing.T) {
	t.Setenv(tavily.EnvAPIKey, "testkey")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req tavilyModels.SearchRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		assert.NoError(t, err)
		assert.Equal(t, "Top project management SaaS competitors", req.Query)

		resp := tavily.SearchResult{
			Results: []tavilyModels.SearchResult{
				{Title: "Market report", URL: "https://example.com", Content: "Jira, Asana, Linear", Score: 0.9},
			},
		}
		if req.IncludeAnswer {
			resp.Answer = "Jira and Asana lead the market"
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	ctx := context.Background()

	assert.True(t, tavily.Available())
	tool, err := tavily.New()
	require.NoError(t, err)
	tool.WithBaseURL(server.URL).WithHTTPClient(server.Client())

	assert.Equal(t, tavily.ToolName, tool.Name())
	assert.Contains(t, tool.Description(), "web")

	params := llmutils.ToJSON(tool.Parameters())
	assert.Contains(t, params, `"query"`)
	assert.Contains(t, params, `"required":["query"]`)

	_, err = tool.Call(ctx, "plain string")
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))

	_, err = tool.Call(ctx, `{"query":""}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")

	input := &tavily.SearchRequest{
		Query: "Top project management SaaS competitors",
	}
	resp, err := tool.Run(ctx, input)
	require.NoError(t, err)
	exp := `ANSWER: Jira and Asana lead the market
- URL: https://example.com
  TITLE: Market report
  SCORE: 0.900000
  CONTENT: Jira, Asana, Linear
`
	assert.Equal(t, exp, resp.String())

	out, err := tool.Call(ctx, llmutils.ToJSON(input))
	require.NoError(t, err)
	assert.Equal(t, exp, out)
}

func Test_New_NoKey(t *testing.T) {
	t.Setenv(tavily.EnvAPIKey, "")
	assert.False(t, tavily.Available())
	_, err := tavily.New()
	assert.EqualError(t, err, "TAVILY_API_KEY is not set")
}
