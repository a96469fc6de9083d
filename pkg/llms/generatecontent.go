package llms

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnexpectedRole is returned when a message role can not be mapped.
var ErrUnexpectedRole = errors.New("unexpected role")

// Role of the message author.
type Role string

// Roles
const (
	RoleAI      Role = "ai"
	RoleHuman   Role = "human"
	RoleSystem  Role = "system"
	RoleGeneric Role = "generic"
	RoleTool    Role = "tool"
)

// Message is one entry of a conversation: a role and a sequence of parts.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// ContentPart is implemented by all part types.
type ContentPart interface {
	isPart()
}

// TextContent is a text part.
type TextContent struct {
	Text string `json:"text"`
}

func (TextContent) isPart() {}

func (c TextContent) String() string { return c.Text }

// ImageURLContent references an image by URL.
type ImageURLContent struct {
	URL string `json:"url"`
	// Detail is a provider hint, e.g. "low" or "high".
	Detail string `json:"detail,omitempty"`
}

func (ImageURLContent) isPart() {}

func (c ImageURLContent) String() string { return c.URL }

// BinaryContent carries inline data with a MIME type.
type BinaryContent struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

func (BinaryContent) isPart() {}

// String returns the content as a data URL.
func (c BinaryContent) String() string {
	return "data:" + c.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

// FunctionCall is the function name and JSON encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	FunctionCall *FunctionCall `json:"function,omitempty"`
}

func (ToolCall) isPart() {}

func (c ToolCall) String() string {
	if c.FunctionCall == nil {
		return "ToolCall: " + c.ID
	}
	return fmt.Sprintf("ToolCall: %s (%s), input: %s", c.ID, c.FunctionCall.Name, c.FunctionCall.Arguments)
}

// ToolCallResponse is the result of a ToolCall.
type ToolCallResponse struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

func (ToolCallResponse) isPart() {}

func (c ToolCallResponse) String() string {
	return fmt.Sprintf("ToolCallResponse: %s (%s), response size: %d", c.ToolCallID, c.Name, len(c.Content))
}

// ContentResponse is returned by GenerateContent.
type ContentResponse struct {
	Choices []*ContentChoice
}

// ContentChoice is one of the generated choices.
type ContentChoice struct {
	Content    string `json:"content"`
	StopReason string `json:"stop_reason"`
	// GenerationInfo is provider specific, token usage is reported with
	// InputTokens, OutputTokens and TotalTokens keys.
	GenerationInfo map[string]any `json:"generation_info"`
	// FuncCall is the first of ToolCalls, if any.
	FuncCall  *FunctionCall `json:"func_call"`
	ToolCalls []ToolCall    `json:"tool_calls"`
}

// TextPart returns a text part.
func TextPart(s string) TextContent {
	return TextContent{Text: s}
}

// BinaryPart returns a binary part.
func BinaryPart(mime string, data []byte) BinaryContent {
	return BinaryContent{MIMEType: mime, Data: data}
}

// ImageURLPart returns an image URL part.
func ImageURLPart(url string) ImageURLContent {
	return ImageURLContent{URL: url}
}

// MessageFromParts creates a Message.
func MessageFromParts(role Role, parts ...ContentPart) Message {
	return Message{Role: role, Parts: parts}
}

// MessageFromTextParts creates a Message with text parts.
func MessageFromTextParts(role Role, texts ...string) Message {
	m := Message{Role: role, Parts: make([]ContentPart, 0, len(texts))}
	for _, s := range texts {
		m.Parts = append(m.Parts, TextPart(s))
	}
	return m
}

// MessageFromToolCalls creates a Message with copies of the tool calls.
func MessageFromToolCalls(role Role, calls ...ToolCall) Message {
	m := Message{Role: role, Parts: make([]ContentPart, 0, len(calls))}
	for _, tc := range calls {
		cp := ToolCall{ID: tc.ID, Type: tc.Type}
		if tc.FunctionCall != nil {
			fc := *tc.FunctionCall
			cp.FunctionCall = &fc
		}
		m.Parts = append(m.Parts, cp)
	}
	return m
}

// MessageFromToolResponse creates a Message with a tool response.
func MessageFromToolResponse(role Role, resp ToolCallResponse) Message {
	return MessageFromParts(role, resp)
}

// GetContent returns the text rendering of all parts, each part on its own line.
func (m Message) GetContent() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		switch v := p.(type) {
		case TextContent:
			sb.WriteString(v.Text)
		case ImageURLContent:
			sb.WriteString("URL: ")
			sb.WriteString(v.URL)
		case BinaryContent:
			sb.WriteString("Binary: ")
			sb.WriteString(v.MIMEType)
		case ToolCall:
			js, _ := json.Marshal(v)
			sb.WriteString("Tool Call: ")
			sb.Write(js)
		case ToolCallResponse:
			js, _ := json.Marshal(v)
			sb.WriteString("Response: ")
			sb.Write(js)
		}
		if !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// GetBufferString renders the messages as a chat transcript,
// text parts only, one "<Prefix>: <text>" line per message.
func GetBufferString(messages []Message, humanPrefix, aiPrefix string) (string, error) {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		var prefix string
		switch m.Role {
		case RoleHuman:
			prefix = humanPrefix
		case RoleAI:
			prefix = aiPrefix
		case RoleSystem:
			prefix = "System"
		case RoleGeneric:
			prefix = "Generic"
		case RoleTool:
			prefix = "Tool"
		default:
			return "", errors.Wrapf(ErrUnexpectedRole, "role %q", m.Role)
		}
		var texts []string
		for _, p := range m.Parts {
			if tc, ok := p.(TextContent); ok {
				texts = append(texts, tc.Text)
			}
		}
		if len(texts) == 0 {
			continue
		}
		lines = append(lines, prefix+": "+strings.Join(texts, "\n"))
	}
	return strings.Join(lines, "\n"), nil
}
