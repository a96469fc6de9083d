package openai

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/schema"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency/pkg/llms", "openai")

var (
	// ErrEmptyResponse is returned when the API returns no output.
	ErrEmptyResponse = errors.New("no response")
	// ErrMissingToken is returned when the token is not provided.
	ErrMissingToken = errors.New("missing the OpenAI API key, set it in the OPENAI_API_KEY environment variable")
)

// LLM is the OpenAI compatible model: OpenAI and Azure use the Responses API,
// Perplexity uses Chat Completions.
type LLM struct {
	client         openai.Client
	model          string
	provider       llms.ProviderType
	responseFormat *schema.ResponseFormat
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		token:        os.Getenv(tokenEnvVarName),
		model:        os.Getenv(modelEnvVarName),
		baseURL:      os.Getenv(baseURLEnvVarName),
		organization: os.Getenv(organizationEnvVarName),
		provider:     llms.ProviderOpenAI,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, ErrMissingToken
	}

	reqOpts := []option.RequestOption{
		option.WithMaxRetries(2),
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	var baseURL string
	switch o.provider {
	case llms.ProviderOpenAI:
		baseURL = values.StringsCoalesce(o.baseURL, DefaultBaseURL)
		reqOpts = append(reqOpts, option.WithAPIKey(o.token))
		if o.organization != "" {
			reqOpts = append(reqOpts, option.WithOrganization(o.organization))
		}
	case llms.ProviderPerplexity:
		baseURL = values.StringsCoalesce(o.baseURL, DefaultPerplexityBaseURL)
		reqOpts = append(reqOpts, option.WithAPIKey(o.token))
	case llms.ProviderAzure, llms.ProviderAzureAD:
		if o.baseURL == "" {
			return nil, errors.New("base URL is required for Azure")
		}
		if o.model == "" {
			return nil, errors.New("model deployment is required for Azure")
		}
		baseURL = strings.TrimSuffix(o.baseURL, "/") + "/openai"
		reqOpts = append(reqOpts, option.WithQuery("api-version", values.StringsCoalesce(o.apiVersion, DefaultAPIVersion)))
		if o.provider == llms.ProviderAzure {
			reqOpts = append(reqOpts, option.WithHeader("api-key", o.token))
		} else {
			reqOpts = append(reqOpts, option.WithHeader("Authorization", "Bearer "+o.token))
		}
	default:
		return nil, errors.Errorf("unsupported provider type: %s", o.provider)
	}
	reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimSuffix(baseURL, "/")+"/"))

	return &LLM{
		client:         openai.NewClient(reqOpts...),
		model:          values.StringsCoalesce(o.model, DefaultChatModel),
		provider:       o.provider,
		responseFormat: o.responseFormat,
	}, nil
}

// GetName returns the model name.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.provider
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)
	if o.responseFormat != nil {
		opts.ResponseFormat = o.responseFormat
	}
	model := values.StringsCoalesce(opts.Model, o.model)

	if o.provider == llms.ProviderPerplexity {
		return o.createChat(ctx, model, messages, opts)
	}

	req, err := newResponsesRequest(model, messages, opts)
	if err != nil {
		return nil, err
	}

	var resp responses.Response
	if err = o.client.Post(ctx, "responses", req, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to create response")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"model", model,
		"status", resp.Status,
		"output", len(resp.Output),
	)

	return toContentResponse(&resp)
}

func toContentResponse(resp *responses.Response) (*llms.ContentResponse, error) {
	choice := &llms.ContentChoice{
		StopReason: string(resp.Status),
		GenerationInfo: map[string]any{
			"InputTokens":  resp.Usage.InputTokens,
			"OutputTokens": resp.Usage.OutputTokens,
			"TotalTokens":  resp.Usage.TotalTokens,
		},
	}

	var text strings.Builder
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, c := range item.AsMessage().Content {
				if c.Type == "output_text" {
					text.WriteString(c.Text)
				}
			}
		case "function_call":
			fc := item.AsFunctionCall()
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   fc.CallID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      fc.Name,
					Arguments: fc.Arguments,
				},
			})
		}
	}
	choice.Content = text.String()
	if len(choice.ToolCalls) > 0 {
		choice.FuncCall = choice.ToolCalls[0].FunctionCall
	}

	if choice.Content == "" && len(choice.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func (o *LLM) createChat(ctx context.Context, model string, messages []llms.Message, opts *llms.CallOptions) (*llms.ContentResponse, error) {
	req, err := newChatRequest(model, messages, opts)
	if err != nil {
		return nil, err
	}

	var resp openai.ChatCompletion
	if err = o.client.Post(ctx, "chat/completions", req, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, len(resp.Choices))
	for i, c := range resp.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
			GenerationInfo: map[string]any{
				"InputTokens":  resp.Usage.PromptTokens,
				"OutputTokens": resp.Usage.CompletionTokens,
				"TotalTokens":  resp.Usage.TotalTokens,
			},
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}
