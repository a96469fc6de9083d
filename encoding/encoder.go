// Package encoding provides the output parsers used by assistants to
// describe the expected response format and to decode model output.
package encoding

import (
	"github.com/cockroachdb/errors"
	jsonenc "github.com/effective-security/devagency/encoding/json"
	plainenc "github.com/effective-security/devagency/encoding/plain"
	tomlenc "github.com/effective-security/devagency/encoding/toml"
	yamlenc "github.com/effective-security/devagency/encoding/yaml"
)

// SchemaEncoder encodes and decodes values of a given type.
type SchemaEncoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(bs []byte, v any) error
	// GetFormatInstructions describes the format for the system prompt.
	GetFormatInstructions() string
}

// Validator is implemented by encoders that validate decoded values.
type Validator interface {
	Validate(v any) error
}

// Mode is the encoding mode of assistant responses.
type Mode = string

// Modes
const (
	ModeJSON       Mode = "json"
	ModeJSONSchema Mode = "json_schema"
	// ModeJSONSchemaStrict requires all properties, not every provider supports it
	ModeJSONSchemaStrict Mode = "json_schema_strict"
	ModeYAML             Mode = "yaml"
	ModeTOML             Mode = "toml"
	ModePlainText        Mode = "plain_text"
)

// ModeDefault is used when an assistant does not specify the mode.
var ModeDefault = ModeJSONSchema

// IsJSON returns true for the JSON based modes.
func IsJSON(mode Mode) bool {
	return mode == ModeJSON || mode == ModeJSONSchema || mode == ModeJSONSchemaStrict
}

// PredefinedSchemaEncoder returns the encoder for mode and the type of v.
func PredefinedSchemaEncoder(mode Mode, v any) (SchemaEncoder, error) {
	switch mode {
	case ModeJSON, ModeJSONSchema, ModeJSONSchemaStrict:
		return jsonenc.NewEncoder(v)
	case ModeYAML:
		return yamlenc.NewEncoder(v), nil
	case ModeTOML:
		return tomlenc.NewEncoder(v), nil
	case ModePlainText:
		return plainenc.NewEncoder(), nil
	default:
		return nil, errors.Newf("unsupported encoding mode: %q", mode)
	}
}

var (
	_ SchemaEncoder = (*jsonenc.Encoder)(nil)
	_ SchemaEncoder = (*yamlenc.Encoder)(nil)
	_ SchemaEncoder = (*tomlenc.Encoder)(nil)
	_ SchemaEncoder = (*plainenc.Encoder)(nil)
	_ Validator     = (*jsonenc.Encoder)(nil)
)
