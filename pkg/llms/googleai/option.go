package googleai

import (
	"net/http"
	"os"

	"cloud.google.com/go/auth"
	"google.golang.org/genai"
)

// Environment variables
const (
	// APIKeyEnvVarName is the Gemini API key.
	APIKeyEnvVarName = "GOOGLE_API_KEY" //nolint:gosec
	// CloudProjectEnvVarName selects Vertex AI when no API key is set.
	CloudProjectEnvVarName = "GOOGLE_CLOUD_PROJECT"
	// CloudLocationEnvVarName is the Vertex AI region.
	CloudLocationEnvVarName = "GOOGLE_CLOUD_LOCATION"
)

// DefaultModel is used when the model is not configured.
const DefaultModel = "gemini-2.5-flash"

// Options of the Gemini client. The Vertex AI backend is used when
// CloudProject is set without an API key.
type Options struct {
	APIKey        string
	CloudProject  string
	CloudLocation string
	Credentials   *auth.Credentials
	HTTPClient    *http.Client
	BaseURL       string

	DefaultModel          string
	DefaultCandidateCount int
	DefaultMaxTokens      int
	DefaultTemperature    float64
	DefaultTopK           int
	DefaultTopP           float64
	HarmThreshold         genai.HarmBlockThreshold
}

// DefaultOptions returns the options used unless overridden.
func DefaultOptions() Options {
	return Options{
		DefaultModel:          DefaultModel,
		DefaultCandidateCount: 1,
		DefaultMaxTokens:      65536,
		DefaultTemperature:    0.5,
		DefaultTopK:           3,
		DefaultTopP:           0.95,
		HarmThreshold:         genai.HarmBlockThresholdBlockOnlyHigh,
	}
}

// resolveEnv fills the API key, or the Vertex AI project and location,
// from the environment when no credentials are provided.
func (o *Options) resolveEnv() {
	if o.Credentials != nil || o.APIKey != "" {
		return
	}
	if o.APIKey = os.Getenv(APIKeyEnvVarName); o.APIKey != "" {
		return
	}
	if o.CloudProject == "" {
		o.CloudProject = os.Getenv(CloudProjectEnvVarName)
	}
	if o.CloudLocation == "" {
		o.CloudLocation = os.Getenv(CloudLocationEnvVarName)
	}
}

// backend returns Vertex AI for a cloud project without an API key.
func (o *Options) backend() genai.Backend {
	if o.CloudProject != "" && o.APIKey == "" {
		return genai.BackendVertexAI
	}
	return genai.BackendGeminiAPI
}

// Option configures Options.
type Option func(*Options)

// WithAPIKey sets the Gemini API key.
func WithAPIKey(apiKey string) Option {
	return func(opts *Options) {
		opts.APIKey = apiKey
	}
}

// WithCredentials authenticates Vertex AI calls with the credentials.
func WithCredentials(credentials *auth.Credentials) Option {
	return func(opts *Options) {
		if credentials != nil {
			opts.Credentials = credentials
		}
	}
}

// WithCloudProject sets the Vertex AI project.
func WithCloudProject(p string) Option {
	return func(opts *Options) {
		opts.CloudProject = p
	}
}

// WithCloudLocation sets the Vertex AI region.
func WithCloudLocation(l string) Option {
	return func(opts *Options) {
		opts.CloudLocation = l
	}
}

// WithHTTPClient uses the HTTP client to make requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = httpClient
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithDefaultModel sets the model used when the call does not specify one.
func WithDefaultModel(defaultModel string) Option {
	return func(opts *Options) {
		opts.DefaultModel = defaultModel
	}
}

// WithDefaultMaxTokens sets the output token limit.
func WithDefaultMaxTokens(maxTokens int) Option {
	return func(opts *Options) {
		opts.DefaultMaxTokens = maxTokens
	}
}

// WithDefaultTemperature sets the sampling temperature.
func WithDefaultTemperature(defaultTemperature float64) Option {
	return func(opts *Options) {
		opts.DefaultTemperature = defaultTemperature
	}
}

// WithHarmThreshold sets the safety threshold of all harm categories.
func WithHarmThreshold(ht genai.HarmBlockThreshold) Option {
	return func(opts *Options) {
		opts.HarmThreshold = ht
	}
}
