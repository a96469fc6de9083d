package anthropic

import (
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// TokenEnvVarName is the environment variable with the API key.
	TokenEnvVarName = "ANTHROPIC_API_KEY" //nolint:gosec
	// DefaultBaseURL is the Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultMaxTokens is used when the call does not set MaxTokens.
	DefaultMaxTokens = 4096
)

// Options for the Anthropic model.
type Options struct {
	Token      string
	Model      string
	BaseURL    string
	HTTPClient option.HTTPClient
	MaxTokens  int64
	MaxRetries int
	Timeout    time.Duration

	// AnthropicBetaHeader is sent as 'anthropic-beta' when set.
	AnthropicBetaHeader string
}

func defaultOptions() *Options {
	return &Options{
		Token:      os.Getenv(TokenEnvVarName),
		BaseURL:    DefaultBaseURL,
		HTTPClient: http.DefaultClient,
		MaxTokens:  DefaultMaxTokens,
		MaxRetries: 2,
		Timeout:    5 * time.Minute,
	}
}

// requestOptions returns the SDK options for the client.
func (o *Options) requestOptions() []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(o.Token),
		option.WithMaxRetries(o.MaxRetries),
	}
	if o.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.Timeout))
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	if o.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(o.HTTPClient))
	}
	if o.AnthropicBetaHeader != "" {
		opts = append(opts, option.WithHeader("anthropic-beta", o.AnthropicBetaHeader))
	}
	return opts
}

// Option configures Options.
type Option func(*Options)

// WithToken sets the API key, ANTHROPIC_API_KEY by default.
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel sets the model name. It is required.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client, http.DefaultClient by default.
func WithHTTPClient(client option.HTTPClient) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithMaxTokens sets the output limit used when the call does not set one.
func WithMaxTokens(n int64) Option {
	return func(opts *Options) {
		if n > 0 {
			opts.MaxTokens = n
		}
	}
}

// WithRetries sets the number of retries and the per request timeout.
func WithRetries(retries int, timeout time.Duration) Option {
	return func(opts *Options) {
		opts.MaxRetries = retries
		opts.Timeout = timeout
	}
}

// WithAnthropicBetaHeader enables beta features.
func WithAnthropicBetaHeader(value string) Option {
	return func(opts *Options) {
		opts.AnthropicBetaHeader = value
	}
}
