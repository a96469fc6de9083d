package openai

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/schema"
)

// responsesRequest is the body of POST /responses
type responsesRequest struct {
	Model           string            `json:"model"`
	Input           []inputItem       `json:"input"`
	Tools           []responsesTool   `json:"tools,omitempty"`
	ToolChoice      any               `json:"tool_choice,omitempty"`
	MaxOutputTokens int               `json:"max_output_tokens,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	TopP            *float64          `json:"top_p,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Text            *textConfig       `json:"text,omitempty"`
	Store           bool              `json:"store"`
}

type inputItem struct {
	Type      string  `json:"type,omitempty"`
	Role      string  `json:"role,omitempty"`
	Content   any     `json:"content,omitempty"`
	CallID    string  `json:"call_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Arguments string  `json:"arguments,omitempty"`
	Output    *string `json:"output,omitempty"`
}

type inputContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Detail   string `json:"detail,omitempty"`
	FileData string `json:"file_data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type responsesTool struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
	Strict      bool   `json:"strict"`
}

type textConfig struct {
	Format textFormat `json:"format"`
}

type textFormat struct {
	Type   string           `json:"type"`
	Name   string           `json:"name,omitempty"`
	Schema *schema.Property `json:"schema,omitempty"`
	Strict bool             `json:"strict,omitempty"`
}

// newResponsesRequest maps the messages to the Responses API input items.
func newResponsesRequest(model string, messages []llms.Message, opts *llms.CallOptions) (*responsesRequest, error) {
	req := &responsesRequest{
		Model:           model,
		MaxOutputTokens: opts.MaxTokens,
	}
	if opts.Temperature > 0 || opts.TemperatureSet {
		t := opts.Temperature
		req.Temperature = &t
	}
	if opts.TopP > 0 {
		p := opts.TopP
		req.TopP = &p
	}
	if len(opts.Metadata) > 0 {
		req.Metadata = make(map[string]string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			req.Metadata[k] = fmt.Sprint(v)
		}
	}

	for _, mc := range messages {
		items, err := inputItems(mc)
		if err != nil {
			return nil, err
		}
		req.Input = append(req.Input, items...)
	}

	for _, tool := range opts.Tools {
		if tool.Type != "function" || tool.Function == nil {
			return nil, errors.Errorf("tool type %v not supported", tool.Type)
		}
		req.Tools = append(req.Tools, responsesTool{
			Type:        "function",
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
			Strict:      tool.Function.Strict,
		})
	}
	req.ToolChoice = toolChoice(opts.ToolChoice)

	if rf := opts.ResponseFormat; rf != nil {
		switch {
		case rf.JSONSchema != nil:
			req.Text = &textConfig{Format: textFormat{
				Type:   "json_schema",
				Name:   rf.JSONSchema.Name,
				Schema: rf.JSONSchema.Schema,
				Strict: rf.JSONSchema.Strict,
			}}
		case rf.Type != "":
			req.Text = &textConfig{Format: textFormat{Type: rf.Type}}
		}
	}
	return req, nil
}

func toolChoice(choice any) any {
	switch c := choice.(type) {
	case nil:
		return nil
	case string:
		return c
	case llms.ToolChoice:
		if c.Function != nil {
			return map[string]string{"type": "function", "name": c.Function.Name}
		}
		return c.Type
	case *llms.ToolChoice:
		if c == nil {
			return nil
		}
		return toolChoice(*c)
	}
	return choice
}

func inputItems(mc llms.Message) ([]inputItem, error) {
	switch mc.Role {
	case llms.RoleSystem:
		return []inputItem{{Role: "system", Content: textOf(mc.Parts)}}, nil
	case llms.RoleHuman, llms.RoleGeneric:
		content, err := userContent(mc.Parts)
		if err != nil {
			return nil, err
		}
		return []inputItem{{Role: "user", Content: content}}, nil
	case llms.RoleAI:
		var items []inputItem
		if text := textOf(mc.Parts); text != "" {
			items = append(items, inputItem{Role: "assistant", Content: text})
		}
		for _, p := range mc.Parts {
			if tc, ok := p.(llms.ToolCall); ok && tc.FunctionCall != nil {
				items = append(items, inputItem{
					Type:      "function_call",
					CallID:    tc.ID,
					Name:      tc.FunctionCall.Name,
					Arguments: tc.FunctionCall.Arguments,
				})
			}
		}
		return items, nil
	case llms.RoleTool:
		var items []inputItem
		for _, p := range mc.Parts {
			tr, ok := p.(llms.ToolCallResponse)
			if !ok {
				return nil, errors.Errorf("expected part of type ToolCallResponse for role %v, got %T", mc.Role, p)
			}
			output := tr.Content
			items = append(items, inputItem{
				Type:   "function_call_output",
				CallID: tr.ToolCallID,
				Output: &output,
			})
		}
		return items, nil
	default:
		return nil, errors.Wrapf(llms.ErrUnexpectedRole, "role %v not supported", mc.Role)
	}
}

func textOf(parts []llms.ContentPart) string {
	var texts []string
	for _, p := range parts {
		if tc, ok := p.(llms.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// userContent returns a string for text only messages
func userContent(parts []llms.ContentPart) (any, error) {
	textOnly := true
	for _, p := range parts {
		if _, ok := p.(llms.TextContent); !ok {
			textOnly = false
			break
		}
	}
	if textOnly {
		return textOf(parts), nil
	}

	content := make([]inputContent, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case llms.TextContent:
			content = append(content, inputContent{Type: "input_text", Text: v.Text})
		case llms.ImageURLContent:
			content = append(content, inputContent{Type: "input_image", ImageURL: v.URL, Detail: v.Detail})
		case llms.BinaryContent:
			if strings.HasPrefix(v.MIMEType, "image/") {
				content = append(content, inputContent{Type: "input_image", ImageURL: v.String()})
			} else {
				content = append(content, inputContent{Type: "input_file", FileData: v.String(), Filename: "file"})
			}
		default:
			return nil, errors.Errorf("unsupported content part for user message: %T", p)
		}
	}
	return content, nil
}

// chatRequest is the body of POST /chat/completions, used for Perplexity
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
	TopP           *float64      `json:"top_p,omitempty"`
	TopK           int           `json:"top_k,omitempty"`
	Stop           []string      `json:"stop,omitempty"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func newChatRequest(model string, messages []llms.Message, opts *llms.CallOptions) (*chatRequest, error) {
	req := &chatRequest{
		Model:     model,
		MaxTokens: opts.MaxTokens,
		TopK:      opts.TopK,
		Stop:      opts.StopWords,
	}
	if opts.Temperature > 0 || opts.TemperatureSet {
		t := opts.Temperature
		req.Temperature = &t
	}
	if opts.TopP > 0 {
		p := opts.TopP
		req.TopP = &p
	}
	if rf := opts.ResponseFormat; rf != nil && rf.JSONSchema != nil {
		req.ResponseFormat = map[string]any{
			"type":        "json_schema",
			"json_schema": map[string]any{"schema": rf.JSONSchema.Schema},
		}
	}

	for _, mc := range messages {
		var role string
		switch mc.Role {
		case llms.RoleSystem:
			role = "system"
		case llms.RoleHuman, llms.RoleGeneric:
			role = "user"
		case llms.RoleAI:
			role = "assistant"
		default:
			return nil, errors.Wrapf(llms.ErrUnexpectedRole, "role %v not supported", mc.Role)
		}
		req.Messages = append(req.Messages, chatMessage{Role: role, Content: textOf(mc.Parts)})
	}
	return req, nil
}
