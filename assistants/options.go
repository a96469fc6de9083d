package assistants

import (
	"maps"
	"slices"

	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/encoding"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/schema"
	"github.com/effective-security/devagency/store"
)

// Option modifies the assistant Config.
type Option func(*Config)

// Config is the assistant configuration, the LLM call options are
// sent only when set.
type Config struct {
	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	StopWords    []string
	stopWordsSet bool

	TopK    int
	topkSet bool

	TopP    float64
	toppSet bool

	Seed    int
	seedSet bool

	Tools    []llms.Tool
	toolsSet bool

	// ToolChoice is "none", "auto" (the default behavior), or llms.ToolChoice.
	ToolChoice    any
	toolChoiceSet bool

	Metadata       map[string]any
	ResponseFormat *schema.ResponseFormat

	//
	// Below are the options for the Assistant, not related to LLM call
	//

	CallbackHandler Callback
	Store           store.MessageStore

	PromptInput map[string]any
	Examples    chatmodel.FewShotExamples
	Mode        encoding.Mode

	// MaxMessages limits the messages sent to the LLM.
	MaxMessages int
	// MaxLength limits the size in bytes of the messages sent to the LLM.
	MaxLength int
	// MaxToolCalls limits the number of tool calls in a run.
	MaxToolCalls int

	// SkipMessageHistory does not add the run messages to the store.
	SkipMessageHistory bool
	// SkipToolHistory does not add tool calls and responses to the store.
	SkipToolHistory bool
	// IsGeneric stores the run messages with the generic role,
	// annotated with the assistant name.
	IsGeneric bool
}

// NewConfig returns Config with defaults.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Mode:         encoding.ModeDefault,
		MaxMessages:  DefaultMaxMessages,
		MaxLength:    DefaultMaxContentSize,
		MaxToolCalls: DefaultMaxToolCalls,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the options applied.
func (c *Config) Apply(opts ...Option) *Config {
	cp := *c
	cp.StopWords = slices.Clone(c.StopWords)
	cp.Tools = slices.Clone(c.Tools)
	cp.Metadata = maps.Clone(c.Metadata)
	cp.PromptInput = maps.Clone(c.PromptInput)
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// GetCallOptions returns the LLM call options.
func (c *Config) GetCallOptions(options ...Option) []llms.CallOption {
	cfg := c
	if len(options) > 0 {
		cfg = c.Apply(options...)
	}

	var opts []llms.CallOption
	if cfg.modelSet {
		opts = append(opts, llms.WithModel(cfg.Model))
	}
	if cfg.maxTokensSet {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.temperatureSet {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.stopWordsSet {
		opts = append(opts, llms.WithStopWords(cfg.StopWords))
	}
	if cfg.topkSet {
		opts = append(opts, llms.WithTopK(cfg.TopK))
	}
	if cfg.toppSet {
		opts = append(opts, llms.WithTopP(cfg.TopP))
	}
	if cfg.seedSet {
		opts = append(opts, llms.WithSeed(cfg.Seed))
	}
	if cfg.toolsSet {
		opts = append(opts, llms.WithTools(cfg.Tools))
	}
	if cfg.toolChoiceSet {
		opts = append(opts, llms.WithToolChoice(cfg.ToolChoice))
	}
	if len(cfg.Metadata) > 0 {
		opts = append(opts, llms.WithMetadata(cfg.Metadata))
	}
	if cfg.ResponseFormat != nil {
		opts = append(opts, llms.WithResponseFormat(cfg.ResponseFormat))
	}
	return opts
}

// WithMode specifies the output encoding mode.
func WithMode(mode encoding.Mode) Option {
	return func(o *Config) {
		o.Mode = mode
	}
}

// WithExamples specifies the few-shot examples sent after the system prompt.
func WithExamples(examples chatmodel.FewShotExamples) Option {
	return func(o *Config) {
		o.Examples = examples
	}
}

// WithStore sets the chat history store.
func WithStore(st store.MessageStore) Option {
	return func(o *Config) {
		o.Store = st
	}
}

// WithSkipMessageHistory skips adding the run messages to the store.
func WithSkipMessageHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipMessageHistory = skip
	}
}

// WithSkipToolHistory skips adding tool calls to the store.
func WithSkipToolHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipToolHistory = skip
	}
}

// WithGeneric stores the run messages with the generic role.
func WithGeneric(generic bool) Option {
	return func(o *Config) {
		o.IsGeneric = generic
	}
}

// WithPromptInput sets the default system prompt inputs.
func WithPromptInput(input map[string]any) Option {
	return func(o *Config) {
		o.PromptInput = input
	}
}

// WithMaxMessages limits the number of messages sent to the LLM.
func WithMaxMessages(n int) Option {
	return func(o *Config) {
		o.MaxMessages = n
	}
}

// WithMaxLength limits the size of the messages sent to the LLM.
func WithMaxLength(n int) Option {
	return func(o *Config) {
		o.MaxLength = n
	}
}

// WithMaxToolCalls limits the tool calls in a run.
func WithMaxToolCalls(n int) Option {
	return func(o *Config) {
		o.MaxToolCalls = n
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithTopK will add an option to use top-k sampling for LLM.Call.
func WithTopK(topK int) Option {
	return func(o *Config) {
		o.TopK = topK
		o.topkSet = true
	}
}

// WithTopP will add an option to use top-p sampling for LLM.Call.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
		o.toppSet = true
	}
}

// WithSeed will add an option to use deterministic sampling for LLM.Call.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
		o.seedSet = true
	}
}

// WithStopWords sets the stop words for LLM.Call.
func WithStopWords(stopWords []string) Option {
	return func(o *Config) {
		o.StopWords = stopWords
		o.stopWordsSet = true
	}
}

// WithCallback sets the callback handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithTools is an option for LLM.Call.
func WithTools(tools []llms.Tool) Option {
	return func(o *Config) {
		o.Tools = tools
		o.toolsSet = true
	}
}

// WithToolChoice is an option for LLM.Call.
func WithToolChoice(choice any) Option {
	return func(o *Config) {
		o.ToolChoice = choice
		o.toolChoiceSet = true
	}
}

// WithMetadata is an option for LLM.Call.
func WithMetadata(metadata map[string]any) Option {
	return func(o *Config) {
		o.Metadata = metadata
	}
}
