package llms

import (
	"github.com/effective-security/devagency/pkg/schema"
	"github.com/invopop/jsonschema"
)

// CallOption configures CallOptions.
type CallOption func(*CallOptions)

// CallOptions is a set of options for calling models.
// Not all providers support all options.
type CallOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// TemperatureSet is true when WithTemperature is used, so 0 is sent.
	TemperatureSet bool
	StopWords      []string
	TopK           int
	TopP           float64
	Seed           int

	// Tools available to the model.
	Tools []Tool
	// ToolChoice is "none", "auto" (default) or a ToolChoice value.
	ToolChoice any

	// Metadata is passed to the backend, its meaning is backend specific.
	Metadata map[string]any

	// ResponseFormat requests structured output, when supported.
	ResponseFormat *schema.ResponseFormat
}

// Tool is a tool definition sent to the model.
type Tool struct {
	Type     string              `json:"type"`
	Function *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition describes a function the model may call.
type FunctionDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	// Strict is used by OpenAI structured output only.
	Strict bool `json:"strict,omitempty"`
}

// ToolChoice forces a specific tool.
type ToolChoice struct {
	Type     string             `json:"type"`
	Function *FunctionReference `json:"function,omitempty"`
}

// FunctionReference is a reference to a function by name.
type FunctionReference struct {
	Name string `json:"name"`
}

// NewCallOptions applies the options on top of defaults.
func NewCallOptions(options ...CallOption) *CallOptions {
	o := &CallOptions{}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// WithModel specifies which model name to use.
func WithModel(model string) CallOption {
	return func(o *CallOptions) {
		o.Model = model
	}
}

// WithMaxTokens specifies the max number of tokens to generate.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature specifies the sampling temperature.
func WithTemperature(temperature float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = temperature
		o.TemperatureSet = true
	}
}

// WithStopWords specifies a list of words to stop generation on.
func WithStopWords(stopWords []string) CallOption {
	return func(o *CallOptions) {
		o.StopWords = stopWords
	}
}

// WithTopK will add an option to use top-k sampling.
func WithTopK(topK int) CallOption {
	return func(o *CallOptions) {
		o.TopK = topK
	}
}

// WithTopP will add an option to use top-p sampling.
func WithTopP(topP float64) CallOption {
	return func(o *CallOptions) {
		o.TopP = topP
	}
}

// WithSeed will add an option to use deterministic sampling.
func WithSeed(seed int) CallOption {
	return func(o *CallOptions) {
		o.Seed = seed
	}
}

// WithTools sets the tools.
func WithTools(tools []Tool) CallOption {
	return func(o *CallOptions) {
		o.Tools = tools
	}
}

// WithToolChoice sets the tool choice.
func WithToolChoice(choice any) CallOption {
	return func(o *CallOptions) {
		o.ToolChoice = choice
	}
}

// WithMetadata sets request metadata.
func WithMetadata(metadata map[string]any) CallOption {
	return func(o *CallOptions) {
		o.Metadata = metadata
	}
}

// WithResponseFormat requests structured output.
func WithResponseFormat(rf *schema.ResponseFormat) CallOption {
	return func(o *CallOptions) {
		o.ResponseFormat = rf
	}
}
