package schema_test

import (
	"reflect"
	"testing"

	"github.com/effective-security/devagency/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Address struct {
	City string `json:"city" jsonschema:"description=City name"`
}

type Request struct {
	Query    string         `json:"query" jsonschema:"description=Query to search for"`
	Kind     string         `json:"kind,omitempty" jsonschema:"enum=web,enum=image"`
	Home     *Address       `json:"home,omitempty"`
	Previous []Address      `json:"previous,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

func TestNew(t *testing.T) {
	t.Parallel()

	s, err := schema.New(reflect.TypeOf(Request{}))
	require.NoError(t, err)
	assert.Equal(t, "object", s.Parameters.Type)
	assert.Equal(t, []string{"query", "kind", "home", "previous", "extra"}, schema.PropertyNames(s.Parameters))
	assert.Equal(t, []string{"query"}, s.Parameters.Required)

	home, ok := s.Parameters.Properties.Get("home")
	require.True(t, ok)
	assert.Empty(t, home.Ref)
	assert.Equal(t, []string{"city"}, schema.PropertyNames(home))

	// cached and pointer types resolve to the same schema
	s2, err := schema.New(reflect.TypeOf(&Request{}))
	require.NoError(t, err)
	assert.Same(t, s, s2)

	m, err := schema.ToMap(s.Parameters)
	require.NoError(t, err)
	assert.Equal(t, "object", m["type"])
	assert.Contains(t, m["properties"], "query")
}

func TestNew_Nil(t *testing.T) {
	t.Parallel()
	_, err := schema.New(nil)
	assert.EqualError(t, err, "schema: nil type")
}

func TestNewResponseFormat(t *testing.T) {
	t.Parallel()

	rf, err := schema.NewResponseFormat(reflect.TypeOf(Request{}), true)
	require.NoError(t, err)
	assert.Equal(t, "json_schema", rf.Type)
	assert.Equal(t, "Request", rf.JSONSchema.Name)
	assert.True(t, rf.JSONSchema.Strict)
	assert.Equal(t, []string{"query", "kind", "home", "previous", "extra"}, rf.JSONSchema.Schema.Required)
	require.NotNil(t, rf.JSONSchema.Schema.AdditionalProperties)
	assert.False(t, *rf.JSONSchema.Schema.AdditionalProperties)
	assert.Equal(t, []any{"web", "image"}, rf.JSONSchema.Schema.Properties["kind"].Enum)
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	s, err := schema.FromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"query"}, schema.PropertyNames(s))

	assert.Panics(t, func() { schema.MustFromAny(make(chan int)) })
}
