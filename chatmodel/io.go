package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// InputRequest is a plain text request to an assistant.
type InputRequest struct {
	Input string `json:"input" jsonschema:"title=Input,description=The message sent to the assistant."`
}

// NewInputRequest returns an InputRequest.
func NewInputRequest(input string) *InputRequest {
	return &InputRequest{Input: input}
}

// ParseInput parses JSON into the request.
func (r *InputRequest) ParseInput(raw string) error {
	if err := json.Unmarshal([]byte(raw), r); err != nil {
		return errors.Wrap(ErrFailedUnmarshalInput, err.Error())
	}
	return nil
}

// GetContent returns the input text.
func (r InputRequest) GetContent() string {
	return r.Input
}

// JSONSchemaExtend sets the schema title.
func (InputRequest) JSONSchemaExtend(s *jsonschema.Schema) {
	s.Title = "Input Request"
}

// OutputResult is a plain text response of an assistant.
type OutputResult struct {
	Content string `json:"content" jsonschema:"title=Content,description=The response to the request."`
}

// GetContent returns the content.
func (r OutputResult) GetContent() string {
	return r.Content
}
