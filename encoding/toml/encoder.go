package toml

import (
	"bytes"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llmutils"
	"github.com/effective-security/devagency/pkg/schema"
)

// Encoder encodes TOML, the instructions show a generated example.
type Encoder struct {
	typ reflect.Type
}

// NewEncoder returns the encoder for the type of v.
func NewEncoder(v any) *Encoder {
	return &Encoder{typ: reflect.TypeOf(v)}
}

// Marshal returns TOML of v.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes TOML, a fenced block is accepted.
func (e *Encoder) Unmarshal(bs []byte, v any) error {
	if err := toml.Unmarshal(llmutils.BytesTrimBackticks(bs), v); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// GetFormatInstructions returns an example instance of the type.
func (e *Encoder) GetFormatInstructions() string {
	t := e.typ
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v := reflect.New(t)
	var instance any = v.Interface()
	if f, ok := v.Elem().Interface().(schema.Faker); ok {
		instance = f.Fake()
	} else {
		_ = gofakeit.Struct(instance)
	}
	bs, err := e.Marshal(instance)
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nRespond with TOML in the following format:\n```toml\n")
	b.Write(bs)
	b.WriteString("```\nReturn an instance of the TOML, not the format itself.\n")
	return b.String()
}
