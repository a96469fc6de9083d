package chatmodel

import "strings"

// String is a ContentProvider for plain text responses.
type String struct {
	value string
}

// NewString returns a String.
func NewString(s string) *String {
	return &String{value: s}
}

// GetContent returns the text.
func (s String) GetContent() string { return s.value }

func (s String) String() string { return s.value }

// Unmarshal stores bs, surrounding quotes are removed.
func (s *String) Unmarshal(bs []byte) error {
	s.value = strings.Trim(string(bs), "\"")
	return nil
}
