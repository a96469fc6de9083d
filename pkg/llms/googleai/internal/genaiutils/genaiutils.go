package genaiutils

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/schema"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// ConvertTools returns a single genai tool with the function declarations,
// nil when there are no tools.
func ConvertTools(tools []llms.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for i, tool := range tools {
		if tool.Type != "function" || tool.Function == nil {
			return nil, errors.Errorf("tool [%d]: unsupported type %q, want 'function'", i, tool.Type)
		}

		params, err := ConvertJSONSchemaDefinition(tool.Function.Parameters)
		if err != nil {
			return nil, errors.Wrapf(err, "tool [%d]", i)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  params,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// ConvertResponseFormatJSONSchema converts a json_schema response format to a genai.Schema.
func ConvertResponseFormatJSONSchema(jschema *schema.ResponseFormatJSONSchema) (*genai.Schema, error) {
	if jschema == nil || jschema.Schema == nil {
		return nil, nil
	}
	return fromProperty(jschema.Schema), nil
}

func fromProperty(p *schema.Property) *genai.Schema {
	if p == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        ConvertJSONSchemaType(p.Type),
		Description: p.Description,
		Required:    p.Required,
		Enum:        stringEnum(p.Enum),
		Items:       fromProperty(p.Items),
	}
	if len(p.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for k, v := range p.Properties {
			out.Properties[k] = fromProperty(v)
		}
	}
	return out
}

// ConvertJSONSchemaDefinition converts a jsonschema.Schema to a genai.Schema.
// The enum values and the order of the properties are kept, the model
// fills the arguments in that order.
func ConvertJSONSchemaDefinition(jschema *jsonschema.Schema) (*genai.Schema, error) {
	if jschema == nil {
		return nil, nil
	}

	out := &genai.Schema{
		Type:        ConvertJSONSchemaType(jschema.Type),
		Title:       jschema.Title,
		Description: jschema.Description,
		Required:    jschema.Required,
		Enum:        stringEnum(jschema.Enum),
	}

	if jschema.Properties != nil && jschema.Properties.Len() > 0 {
		out.Properties = make(map[string]*genai.Schema, jschema.Properties.Len())
		for pair := jschema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			prop, err := ConvertJSONSchemaDefinition(pair.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "property [%s]", pair.Key)
			}
			out.Properties[pair.Key] = prop
			out.PropertyOrdering = append(out.PropertyOrdering, pair.Key)
		}
	}

	if jschema.Items != nil {
		items, err := ConvertJSONSchemaDefinition(jschema.Items)
		if err != nil {
			return nil, errors.Wrap(err, "items")
		}
		out.Items = items
	}

	return out, nil
}

// stringEnum returns the string values, Gemini supports string enums only.
func stringEnum(values []any) []string {
	var res []string
	for _, e := range values {
		if v, ok := e.(string); ok {
			res = append(res, v)
		}
	}
	return res
}

// ConvertJSONSchemaType converts a JSON schema type to a genai.Type.
func ConvertJSONSchemaType(dt string) genai.Type {
	switch dt {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

// Float32Ptr returns nil for zero.
func Float32Ptr(f float32) *float32 {
	if f == 0 {
		return nil
	}
	return &f
}

// Int32Ptr returns nil for zero.
func Int32Ptr(i int32) *int32 {
	if i == 0 {
		return nil
	}
	return &i
}
