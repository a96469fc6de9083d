package openai

import (
	"net/http"

	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/schema"
)

const (
	tokenEnvVarName        = "OPENAI_API_KEY"      //nolint:gosec
	modelEnvVarName        = "OPENAI_MODEL"        //nolint:gosec
	baseURLEnvVarName      = "OPENAI_BASE_URL"     //nolint:gosec
	organizationEnvVarName = "OPENAI_ORGANIZATION" //nolint:gosec
)

const (
	// DefaultBaseURL is the OpenAI API endpoint
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultPerplexityBaseURL is the Perplexity API endpoint
	DefaultPerplexityBaseURL = "https://api.perplexity.ai"
	// DefaultChatModel is used when the model is not configured
	DefaultChatModel = "gpt-4o-mini"
	// DefaultAPIVersion is the Azure API version with the Responses API
	DefaultAPIVersion = "2025-03-01-preview"
)

type options struct {
	token        string
	model        string
	baseURL      string
	organization string
	provider     llms.ProviderType
	apiVersion   string
	httpClient   *http.Client

	responseFormat *schema.ResponseFormat
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithToken passes the API token to the client. If not set, the token
// is read from the OPENAI_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel passes the model to the client. If not set, the model
// is read from the OPENAI_MODEL environment variable.
// For Azure it is the deployment name.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithBaseURL passes the base url to the client. If not set, the base url
// is read from the OPENAI_BASE_URL environment variable.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithOrganization passes the OpenAI organization to the client.
func WithOrganization(organization string) Option {
	return func(opts *options) {
		opts.organization = organization
	}
}

// WithProvider sets the provider flavour: OPENAI (default), AZURE, AZURE_AD or PERPLEXITY.
func WithProvider(provider llms.ProviderType) Option {
	return func(opts *options) {
		opts.provider = provider
	}
}

// WithAPIVersion sets the Azure API version.
func WithAPIVersion(apiVersion string) Option {
	return func(opts *options) {
		opts.apiVersion = apiVersion
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithResponseFormat sets the response format for all requests.
func WithResponseFormat(responseFormat *schema.ResponseFormat) Option {
	return func(opts *options) {
		opts.responseFormat = responseFormat
	}
}
