package chatmodel

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrFailedUnmarshalInput is returned by tools when the input does not
// match the schema, the model is asked to retry.
var ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")

// OutputParser parses the text produced by a model.
type OutputParser[T any] interface {
	Parse(text string) (*T, error)
	// GetFormatInstructions returns the instructions appended to the system prompt.
	GetFormatInstructions() string
	// Type returns the parser type, used in logs.
	Type() string
}

// ContentProvider returns the content stored in chat history.
type ContentProvider interface {
	GetContent() string
}

// InputParser parses a tool input.
type InputParser interface {
	ParseInput(raw string) error
}

// Stringify returns the text form of v used as a tool result.
func Stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case ContentProvider:
		return s.GetContent()
	}
	bs, _ := json.Marshal(v)
	return string(bs)
}

// FewShotExample is a prompt and the expected completion.
type FewShotExample struct {
	Prompt     string
	Completion string
}

// FewShotExamples is a list of examples added before the chat history.
type FewShotExamples []FewShotExample
