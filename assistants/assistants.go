package assistants

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/prompts"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency", "assistants")

//go:generate mockgen -destination=../mocks/mockllms/llm_mock.gen.go -package mockllms github.com/effective-security/devagency/pkg/llms Model

// Limits of a single run
const (
	DefaultMaxMessages    = 200
	DefaultMaxContentSize = 400000
	DefaultMaxToolCalls   = 25
	DefaultMaxRetries     = 3
	// MaxNotFoundTools is the number of unknown tools requested in a row
	// before the run fails.
	MaxNotFoundTools = 3
)

// CallInput is the input of a run.
type CallInput struct {
	// Input is the user message, can be empty when Messages are provided.
	Input string
	// PromptInputs are the system prompt variables.
	PromptInputs map[string]any
	// Messages are appended after the input.
	Messages []llms.Message
	// Options override the assistant config for this call.
	Options []Option
}

// ProvidePromptInputsFunc returns extra prompt inputs for the request.
type ProvidePromptInputsFunc func(ctx context.Context, input string) (map[string]any, error)

// IAssistant is an LLM persona.
type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Description returns the description of the Assistant, to be used in the prompt of other Assistants or LLMs.
	Description() string
	// FormatPrompt returns the system prompt for the values.
	FormatPrompt(values map[string]any) (prompts.PromptValue, error)
	GetPromptInputVariables() []string
	GetTools() []tools.ITool

	Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error)
}

// TypeableAssistant is an assistant with a typed output.
type TypeableAssistant[O chatmodel.ContentProvider] interface {
	IAssistant
	// Run executes the assistant and parses the output into optionalOutputType, if provided.
	Run(ctx context.Context, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, error)
}

// Callback receives assistant and tool events.
type Callback interface {
	tools.Callback
	OnAssistantStart(ctx context.Context, agent IAssistant, input string)
	OnAssistantEnd(ctx context.Context, agent IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnAssistantError(ctx context.Context, agent IAssistant, input string, err error, messages []llms.Message)
	OnAssistantLLMParseError(ctx context.Context, agent IAssistant, input string, response string, err error)
	OnAssistantLLMCallStart(ctx context.Context, agent IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, agent IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, agent IAssistant, tool string)
}

// Ask runs the assistant and returns the content of the parsed output.
func Ask[O chatmodel.ContentProvider](ctx context.Context, a TypeableAssistant[O], input *CallInput) (string, error) {
	var out O
	if _, err := a.Run(ctx, input, &out); err != nil {
		return "", err
	}
	return out.GetContent(), nil
}

// GetDescriptions returns a Markdown list of the assistants.
func GetDescriptions(list ...IAssistant) string {
	var ts strings.Builder
	for _, item := range list {
		fmt.Fprintf(&ts, "- `%s`: %s\n", item.Name(), item.Description())
	}
	return ts.String()
}
