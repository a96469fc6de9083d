package tools

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llmutils"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency", "tools")

var (
	// ErrInvalidInput is returned when the tool input fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrFatal marks a tool error that must stop the run of the assistant,
	// other errors are reported to the model as the tool result.
	ErrFatal = errors.New("fatal tool error")
)

// Fatal marks err to stop the run of the assistant.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrFatal)
}

//go:generate mockgen -source=tool.go -destination=../mocks/mocktools/tools_mock.gen.go -package mocktools

// ITool is a tool for the llm agent to interact with different applications.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the parameters definition of the function, to be used in the prompt.
	Parameters() *jsonschema.Schema

	// Call executes the tool with the given input and returns the result.
	// If the tool fails to parse the input, it should return ErrFailedUnmarshalInput error.
	Call(context.Context, string) (string, error)
}

// Callback receives tool events.
type Callback interface {
	OnToolStart(ctx context.Context, tool ITool, assistantName, input string)
	OnToolEnd(ctx context.Context, tool ITool, assistantName, input string, output string)
	OnToolError(ctx context.Context, tool ITool, assistantName, input string, err error)
}

// Tool is a typed tool.
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns a fenced JSON list of tool names and descriptions.
func GetDescriptions(list ...ITool) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
