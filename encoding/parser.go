package encoding

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/chatmodel"
)

// TypedOutputParser decodes model output into T.
type TypedOutputParser[T any] struct {
	enc      SchemaEncoder
	name     string
	validate bool
}

var _ chatmodel.OutputParser[chatmodel.OutputResult] = (*TypedOutputParser[chatmodel.OutputResult])(nil)

// NewTypedOutputParser returns a parser for the type of v.
func NewTypedOutputParser[T any](v T, mode Mode) (*TypedOutputParser[T], error) {
	enc, err := PredefinedSchemaEncoder(mode, v)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create encoder")
	}
	return &TypedOutputParser[T]{
		enc:  enc,
		name: fmt.Sprintf("%s:%T", mode, v),
	}, nil
}

// WithValidation enables struct validation of decoded values.
func (p *TypedOutputParser[T]) WithValidation(validate bool) *TypedOutputParser[T] {
	p.validate = validate
	return p
}

// Parse decodes text.
func (p *TypedOutputParser[T]) Parse(text string) (*T, error) {
	var target T
	if err := p.enc.Unmarshal([]byte(text), &target); err != nil {
		return nil, errors.Wrap(err, "failed to decode")
	}
	if v, ok := p.enc.(Validator); ok && p.validate {
		if err := v.Validate(target); err != nil {
			return nil, errors.Wrap(err, "failed to validate")
		}
	}
	return &target, nil
}

// GetFormatInstructions returns the encoder instructions.
func (p *TypedOutputParser[T]) GetFormatInstructions() string {
	return p.enc.GetFormatInstructions()
}

// Type returns the parser name.
func (p *TypedOutputParser[T]) Type() string {
	return p.name
}

// SimpleOutputParser returns the trimmed text as is.
type SimpleOutputParser struct{}

var _ chatmodel.OutputParser[chatmodel.String] = SimpleOutputParser{}

// Parse returns the trimmed text.
func (SimpleOutputParser) Parse(text string) (*chatmodel.String, error) {
	return chatmodel.NewString(strings.TrimSpace(text)), nil
}

// GetFormatInstructions returns empty string.
func (SimpleOutputParser) GetFormatInstructions() string { return "" }

// Type returns "simple".
func (SimpleOutputParser) Type() string { return "simple" }
