package llmutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/x/values"
	"gopkg.in/yaml.v3"
)

// CleanJSON drops any text before the first opening and after the last
// closing bracket, models often wrap JSON like "Here you go: {...}".
func CleanJSON(bs []byte) []byte {
	start := firstIndex(bytes.IndexByte(bs, '{'), bytes.IndexByte(bs, '['))
	if start > 0 {
		bs = bs[start:]
	}
	end := max(bytes.LastIndexByte(bs, '}'), bytes.LastIndexByte(bs, ']'))
	if end >= 0 {
		bs = bs[:end+1]
	}
	return bs
}

func firstIndex(a, b int) int {
	switch {
	case a < 0:
		return b
	case b < 0:
		return a
	default:
		return min(a, b)
	}
}

var fence = []byte("```")

// TrimBackticks removes a ```json fenced block around the text.
func TrimBackticks(text string) string {
	return string(BytesTrimBackticks([]byte(text)))
}

// BytesTrimBackticks removes a ```lang fenced block around bs.
func BytesTrimBackticks(bs []byte) []byte {
	start := bytes.Index(bs, fence)
	if start < 0 {
		return bs
	}
	rest := bs[start+len(fence):]
	// skip the language tag, if any
	if nl := bytes.IndexByte(rest, '\n'); nl >= 0 && !bytes.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	}
	if end := bytes.LastIndex(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	return bytes.TrimSpace(rest)
}

// AddComment prefixes content with an HTML comment describing its origin.
func AddComment(role, name, typ, content string) string {
	return fmt.Sprintf("<!-- @role=%s @name=%s @content=%s -->\n", role, name, typ) + content
}

// RemoveAllComments removes all <!-- --> comments.
func RemoveAllComments(text string) string {
	for {
		before, after, ok := strings.Cut(text, "<!--")
		if !ok {
			return text
		}
		_, tail, ok := strings.Cut(after, "-->")
		if !ok {
			return text
		}
		text = before + strings.TrimPrefix(tail, "\n")
	}
}

// ToJSON returns compact JSON, errors are ignored.
func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

// ToJSONIndent returns tab indented JSON, errors are ignored.
func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

// ToYAML returns YAML, errors are ignored.
func ToYAML(val any) string {
	y, _ := yaml.Marshal(val)
	return string(y)
}

// BackticksJSON wraps js into a json fenced block.
func BackticksJSON(js string) string {
	return "\n```json\n" + strings.TrimSpace(js) + "\n```\n"
}

// Stringify returns the String() of v if implemented, v itself for strings,
// and fenced indented JSON otherwise.
func Stringify(v any) string {
	switch s := v.(type) {
	case fmt.Stringer:
		return s.String()
	case string:
		return s
	}
	return BackticksJSON(ToJSONIndent(v))
}

// NewContentResponse returns a single choice response with v as content.
func NewContentResponse(v any) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: Stringify(v)}},
	}
}

// MergeInputs returns defaults overridden by inputs.
func MergeInputs(defaults, inputs map[string]any) map[string]any {
	res := make(map[string]any, len(defaults)+len(inputs))
	for k, v := range defaults {
		res[k] = v
	}
	for k, v := range inputs {
		res[k] = v
	}
	return res
}

// CountMessagesContentSize returns the number of bytes in the messages.
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size int
	for _, m := range msgs {
		size += len(m.Role)
		for _, p := range m.Parts {
			switch v := p.(type) {
			case llms.TextContent:
				size += len(v.Text)
			case llms.ImageURLContent:
				size += len(v.URL) + len(v.Detail)
			case llms.BinaryContent:
				size += len(v.MIMEType) + len(v.Data)
			case llms.ToolCall:
				size += len(v.ID) + len(v.Type)
				if v.FunctionCall != nil {
					size += len(v.FunctionCall.Name) + len(v.FunctionCall.Arguments)
				}
			case llms.ToolCallResponse:
				size += len(v.ToolCallID) + len(v.Name) + len(v.Content)
			}
		}
	}
	return uint64(size)
}

// CountResponseContentSize returns the number of bytes in the response.
func CountResponseContentSize(resp *llms.ContentResponse) uint64 {
	if resp == nil {
		return 0
	}
	var size int
	for _, c := range resp.Choices {
		size += len(c.Content)
		for _, tc := range c.ToolCalls {
			size += len(tc.ID) + len(tc.Type)
			if tc.FunctionCall != nil {
				size += len(tc.FunctionCall.Name) + len(tc.FunctionCall.Arguments)
			}
		}
	}
	return uint64(size)
}

// CountTokens sums the token usage reported in GenerationInfo.
func CountTokens(resp *llms.ContentResponse) (in, out, total int64) {
	if resp == nil {
		return
	}
	for _, c := range resp.Choices {
		info := values.MapAny(c.GenerationInfo)
		in += info.Int64("InputTokens")
		out += info.Int64("OutputTokens")
		total += info.Int64("TotalTokens")
	}
	return
}

// FindLastUserQuestion returns the first text part of the last human message.
func FindLastUserQuestion(messages []llms.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != llms.RoleHuman {
			continue
		}
		for _, p := range messages[i].Parts {
			if tc, ok := p.(llms.TextContent); ok {
				return tc.Text
			}
		}
	}
	return ""
}

// EnsureEndsWithNewline trims s and terminates it with a newline.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return s + "\n"
}
