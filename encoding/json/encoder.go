package json

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llmutils"
	"github.com/effective-security/devagency/pkg/schema"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Encoder is a lenient JSON encoder with schema instructions.
type Encoder struct {
	schema *schema.Schema
}

// NewEncoder returns the encoder for the type of v.
func NewEncoder(v any) (*Encoder, error) {
	s, err := schema.New(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	return &Encoder{schema: s}, nil
}

// Schema returns the schema.
func (e *Encoder) Schema() *schema.Schema {
	return e.schema
}

// Marshal returns JSON of v.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes the JSON found in bs, tolerating surrounding text.
func (e *Encoder) Unmarshal(bs []byte, v any) error {
	if err := ljson.Unmarshal(llmutils.CleanJSON(bs), v); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Validate validates struct tags of v.
func (e *Encoder) Validate(v any) error {
	return validate.Struct(v)
}

// GetFormatInstructions describes the JSON schema.
func (e *Encoder) GetFormatInstructions() string {
	var b strings.Builder
	b.WriteString("\nRespond with JSON in the following JSON schema:\n```json\n")
	b.WriteString(e.schema.String())
	b.WriteString("\n```\nReturn an instance of the JSON, not the schema itself.\n")
	b.WriteString("Use the exact field names as they are defined in the schema.\n")
	return b.String()
}
