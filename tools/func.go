package tools

import (
	"context"
	"reflect"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/pkg/llmutils"
	"github.com/effective-security/devagency/pkg/schema"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	mcp "github.com/metoro-io/mcp-golang"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RunFunc is the typed implementation of a Func tool.
type RunFunc[I any, O any] func(ctx context.Context, req *I) (*O, error)

// Func is a Tool backed by a function, its parameters schema is
// reflected from I and the input is validated with `validate` tags.
type Func[I any, O any] struct {
	name        string
	description string
	params      *jsonschema.Schema
	run         RunFunc[I, O]
}

var (
	_ Tool[chatmodel.InputRequest, chatmodel.OutputResult] = (*Func[chatmodel.InputRequest, chatmodel.OutputResult])(nil)
	_ MCPTool[chatmodel.InputRequest]                      = (*Func[chatmodel.InputRequest, chatmodel.OutputResult])(nil)
)

// NewFunc returns a tool.
func NewFunc[I any, O any](name, description string, run RunFunc[I, O]) (*Func[I, O], error) {
	var def I
	sc, err := schema.New(reflect.TypeOf(def))
	if err != nil {
		return nil, errors.WithMessagef(err, "tool %s", name)
	}
	return &Func[I, O]{
		name:        name,
		description: description,
		params:      sc.Parameters,
		run:         run,
	}, nil
}

// Name returns the tool name.
func (t *Func[I, O]) Name() string {
	return t.name
}

// Description returns the tool description.
func (t *Func[I, O]) Description() string {
	return t.description
}

// Parameters returns the input schema.
func (t *Func[I, O]) Parameters() *jsonschema.Schema {
	return t.params
}

// Run validates req and calls the function.
func (t *Func[I, O]) Run(ctx context.Context, req *I) (*O, error) {
	if err := validate.Struct(req); err != nil {
		return nil, errors.Mark(errors.WithMessage(err, "invalid input"), ErrInvalidInput)
	}
	return t.run(ctx, req)
}

// Call parses input as JSON and returns the text form of the result.
func (t *Func[I, O]) Call(ctx context.Context, input string) (string, error) {
	var req I
	if parser, ok := any(&req).(chatmodel.InputParser); ok {
		if err := parser.ParseInput(input); err != nil {
			return "", err
		}
	} else if err := ljson.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
	}

	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return chatmodel.Stringify(out), nil
}

// RegisterMCP registers the tool on the MCP server.
func (t *Func[I, O]) RegisterMCP(registrator McpServerRegistrator) error {
	return registrator.RegisterTool(t.name, t.description, t.RunMCP)
}

// RunMCP runs the tool for the MCP server, the response has the text
// form of the result.
func (t *Func[I, O]) RunMCP(ctx context.Context, req *I) (*mcp.ToolResponse, error) {
	out, err := t.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResponse(mcp.NewTextContent(chatmodel.Stringify(out))), nil
}
