package yaml

import (
	"reflect"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llmutils"
	"github.com/effective-security/devagency/pkg/schema"
	"gopkg.in/yaml.v3"
)

// Encoder encodes YAML, the instructions show a generated example.
type Encoder struct {
	typ reflect.Type
}

// NewEncoder returns the encoder for the type of v.
func NewEncoder(v any) *Encoder {
	return &Encoder{typ: reflect.TypeOf(v)}
}

// Marshal returns YAML of v.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// Unmarshal decodes YAML, a fenced block is accepted.
func (e *Encoder) Unmarshal(bs []byte, v any) error {
	if err := yaml.Unmarshal(llmutils.BytesTrimBackticks(bs), v); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// GetFormatInstructions returns an example instance of the type.
func (e *Encoder) GetFormatInstructions() string {
	bs, err := e.Marshal(example(e.typ))
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nRespond with YAML in the following format, without comments:\n```yaml\n")
	b.Write(bs)
	b.WriteString("```\nReturn an instance of the YAML, not the format itself.\n")
	return b.String()
}

// example returns a fake instance of t.
func example(t reflect.Type) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v := reflect.New(t)
	if f, ok := v.Elem().Interface().(schema.Faker); ok {
		return f.Fake()
	}
	_ = gofakeit.Struct(v.Interface())
	return v.Interface()
}
