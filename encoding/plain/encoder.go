// Package plain is the pass-through encoder for plain text responses.
package plain

import (
	"encoding/json"
	"fmt"
)

// Unmarshaler is implemented by types decoding raw text.
type Unmarshaler interface {
	Unmarshal(bs []byte) error
}

// Encoder passes text through.
type Encoder struct{}

// NewEncoder returns Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Marshal returns the text of v, JSON for other types.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	switch s := v.(type) {
	case fmt.Stringer:
		return []byte(s.String()), nil
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	}
	return json.Marshal(v)
}

// Unmarshal stores bs into v.
func (e *Encoder) Unmarshal(bs []byte, v any) error {
	switch s := v.(type) {
	case Unmarshaler:
		return s.Unmarshal(bs)
	case *string:
		*s = string(bs)
		return nil
	case *[]byte:
		*s = bs
		return nil
	}
	return json.Unmarshal(bs, v)
}

// GetFormatInstructions returns empty string.
func (e *Encoder) GetFormatInstructions() string {
	return ""
}
