package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Faker is implemented by types that can produce an example of themselves.
type Faker interface {
	Fake() any
}

var (
	cache   = make(map[reflect.Type]*Schema)
	cacheMu sync.Mutex
)

// Schema holds the reflected schema of a Go type.
type Schema struct {
	// RawSchema is the schema as produced by the reflector.
	RawSchema *jsonschema.Schema
	// Parameters is the flattened object schema used for function parameters.
	Parameters *jsonschema.Schema
}

// New returns the schema of t, the result is cached per type.
func New(t reflect.Type) (*Schema, error) {
	if t == nil {
		return nil, errors.New("schema: nil type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if s, ok := cache[t]; ok {
		return s, nil
	}

	raw := JSONSchema(t)
	params, err := ToFunctionSchema(raw)
	if err != nil {
		return nil, errors.WithMessagef(err, "schema: %s", t.String())
	}
	s := &Schema{
		RawSchema:  raw,
		Parameters: params,
	}
	cache[t] = s
	return s, nil
}

// String returns the indented JSON of the parameters schema.
func (s *Schema) String() string {
	js, _ := json.MarshalIndent(s.Parameters, "", "\t")
	return string(js)
}

// JSONSchema reflects t without references.
func JSONSchema(t reflect.Type) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
		// structs with the same name in different packages must not collide
		Namer: func(t reflect.Type) string {
			if t.Kind() != reflect.Struct {
				return t.Name()
			}
			return t.Name() + "@" + strconv.FormatUint(xxhash.Sum64String(t.PkgPath()+"/"+t.Name()), 10)
		},
	}
	return r.ReflectFromType(t)
}

// ToFunctionSchema returns the root object of s with definitions inlined.
func ToFunctionSchema(s *jsonschema.Schema) (*jsonschema.Schema, error) {
	rootID := strings.TrimPrefix(s.Ref, "#/$defs/")
	root := s
	defs := make(map[string]*jsonschema.Schema)
	for name, def := range s.Definitions {
		if name == rootID {
			root = def
			continue
		}
		defs[name] = def
	}

	res := &jsonschema.Schema{
		Type:        root.Type,
		Description: root.Description,
		Properties:  root.Properties,
		Required:    root.Required,
	}
	if res.Properties == nil {
		res.Properties = orderedmap.New[string, *jsonschema.Schema]()
	}
	if err := resolveRefs(res.Properties, defs); err != nil {
		return nil, err
	}
	return res, nil
}

func resolveRefs(props *orderedmap.OrderedMap[string, *jsonschema.Schema], defs map[string]*jsonschema.Schema) error {
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Ref != "" {
			def, err := lookupDef(pair.Value.Ref, defs)
			if err != nil {
				return err
			}
			pair.Value = def
		}
		child := pair.Value
		if child.Properties != nil {
			if err := resolveRefs(child.Properties, defs); err != nil {
				return err
			}
		}
		if child.Items != nil && child.Items.Ref != "" {
			def, err := lookupDef(child.Items.Ref, defs)
			if err != nil {
				return err
			}
			child.Items = def
		}
	}
	return nil
}

func lookupDef(ref string, defs map[string]*jsonschema.Schema) (*jsonschema.Schema, error) {
	def, ok := defs[strings.TrimPrefix(ref, "#/$defs/")]
	if !ok {
		return nil, errors.Newf("definition not found: %s", ref)
	}
	return def, nil
}

// PropertyNames returns the top level property names in declaration order.
func PropertyNames(s *jsonschema.Schema) []string {
	if s == nil || s.Properties == nil {
		return nil
	}
	names := make([]string, 0, s.Properties.Len())
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// ToMap converts the schema into a generic map.
func ToMap(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		return nil, nil
	}
	js, err := json.Marshal(s)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var m map[string]any
	if err := json.Unmarshal(js, &m); err != nil {
		return nil, errors.WithStack(err)
	}
	return m, nil
}

// FromAny converts a schema described as a map or struct into jsonschema.Schema.
func FromAny(v any) (*jsonschema.Schema, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s := &jsonschema.Schema{}
	if err := json.Unmarshal(js, s); err != nil {
		return nil, errors.WithStack(err)
	}
	return s, nil
}

// MustFromAny is like FromAny but panics on error.
func MustFromAny(v any) *jsonschema.Schema {
	s, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return s
}
