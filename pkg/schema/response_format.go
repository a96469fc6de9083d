package schema

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

// ResponseFormat requests structured output from the provider.
type ResponseFormat struct {
	Type       string                    `json:"type"`
	JSONSchema *ResponseFormatJSONSchema `json:"json_schema,omitempty"`
}

// ResponseFormatJSONSchema is the named schema of the expected response.
type ResponseFormatJSONSchema struct {
	Name   string    `json:"name"`
	Strict bool      `json:"strict"`
	Schema *Property `json:"schema"`
}

// Property is the subset of JSON schema accepted by structured output APIs.
type Property struct {
	Type                 string               `json:"type,omitempty"`
	Description          string               `json:"description,omitempty"`
	Enum                 []any                `json:"enum,omitempty"`
	Items                *Property            `json:"items,omitempty"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	AdditionalProperties *bool                `json:"additionalProperties,omitempty"`
	Required             []string             `json:"required,omitempty"`
}

// NewResponseFormat returns the JSON schema response format for t.
func NewResponseFormat(t reflect.Type, strict bool) (*ResponseFormat, error) {
	sc, err := New(t)
	if err != nil {
		return nil, err
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &ResponseFormatJSONSchema{
			Name:   t.Name(),
			Strict: strict,
			Schema: toProperty(sc.Parameters, strict),
		},
	}, nil
}

func toProperty(in *jsonschema.Schema, strict bool) *Property {
	if in == nil {
		return nil
	}
	p := &Property{
		Type:        in.Type,
		Description: in.Description,
		Enum:        in.Enum,
		Required:    in.Required,
		Items:       toProperty(in.Items, strict),
	}
	if in.Type == "object" {
		additional := in.AdditionalProperties != nil && !strict
		p.AdditionalProperties = &additional
	}
	if in.Properties != nil && in.Properties.Len() > 0 {
		p.Properties = make(map[string]*Property, in.Properties.Len())
		for pair := in.Properties.Oldest(); pair != nil; pair = pair.Next() {
			p.Properties[pair.Key] = toProperty(pair.Value, strict)
		}
		if strict {
			// strict mode requires every property to be listed
			p.Required = PropertyNames(in)
		}
	}
	return p
}
