// Package tavily provides the web search tool backed by the Tavily API.
package tavily

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/devagency/pkg/llmutils"
	"github.com/effective-security/devagency/tools"
)

// ToolName is the name of the tool.
const ToolName = "web_search"

// EnvAPIKey is the environment variable with the API key.
const EnvAPIKey = "TAVILY_API_KEY"

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query string `json:"query" yaml:"query" validate:"required" jsonschema:"title=Search Query,description=The query to search web."`
}

// SearchResult is the search response.
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" yaml:"results"`
	Answer  string                      `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// GetContent returns JSON of the result.
func (r *SearchResult) GetContent() string {
	return llmutils.ToJSON(r)
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}
	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}
	return buf.String()
}

// Tool is the web search tool.
type Tool struct {
	*tools.Func[SearchRequest, SearchResult]

	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Available returns true when the API key is set.
func Available() bool {
	return os.Getenv(EnvAPIKey) != ""
}

// New returns the tool, the API key is read from TAVILY_API_KEY.
func New() (*Tool, error) {
	apikey := os.Getenv(EnvAPIKey)
	if apikey == "" {
		return nil, errors.Newf("%s is not set", EnvAPIKey)
	}

	t := &Tool{
		apiKey:     apikey,
		httpClient: http.DefaultClient,
	}
	f, err := tools.NewFunc(ToolName,
		"Searches the web and returns an aggregated answer with the source pages. Use it for market research, competitors and technology trends.",
		t.search)
	if err != nil {
		return nil, err
	}
	t.Func = f
	return t, nil
}

// WithBaseURL overrides the API endpoint.
func (t *Tool) WithBaseURL(baseURL string) *Tool {
	t.baseURL = baseURL
	return t
}

// WithHTTPClient sets the HTTP client.
func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	t.httpClient = client
	return t
}

func (t *Tool) search(_ context.Context, req *SearchRequest) (*SearchResult, error) {
	client := tavilygo.NewClient(t.apiKey)
	if t.baseURL != "" {
		client.BaseURL = t.baseURL
	}
	if t.httpClient != nil {
		client.HTTPClient = t.httpClient
	}

	searchResp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:         req.Query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform search")
	}

	return &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}, nil
}
