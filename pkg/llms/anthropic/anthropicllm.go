package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/x/values"
)

var (
	ErrEmptyResponse          = errors.New("anthropic: no response")
	ErrMissingToken           = errors.New("anthropic: missing API key, set it in the ANTHROPIC_API_KEY environment variable")
	ErrInvalidContentType     = errors.New("anthropic: invalid content type")
	ErrUnsupportedMessageType = errors.New("anthropic: unsupported message type")
	ErrUnsupportedContentType = errors.New("anthropic: unsupported content type")
)

// LLM is the Anthropic Messages API model.
type LLM struct {
	Client  *anthropic.Client
	Options *Options
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Anthropic model.
// The token is read from ANTHROPIC_API_KEY when not provided with WithToken.
func New(opts ...Option) (*LLM, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.Token == "" {
		return nil, ErrMissingToken
	}
	if options.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}

	return &LLM{
		Client:  newClient(options),
		Options: options,
	}, nil
}

func newClient(options *Options) *anthropic.Client {
	client := anthropic.NewClient(options.requestOptions()...)
	return &client
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.Options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: o.Options.Model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	params, err := NewMessageParams(messages, &opts)
	if err != nil {
		return nil, err
	}

	result, err := o.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create message")
	}
	return ToContentResponse(result)
}

// NewMessageParams builds the request parameters for the messages and call options.
// It is shared with the Bedrock provider, which serves Anthropic models.
func NewMessageParams(messages []llms.Message, opts *llms.CallOptions) (anthropic.MessageNewParams, error) {
	sdkMessages, systemPrompt, err := ProcessMessages(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, errors.WithMessage(err, "anthropic: failed to process messages")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		Messages:  sdkMessages,
		MaxTokens: values.NumbersCoalesce(int64(opts.MaxTokens), o.Options.MaxTokens),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		}
	}
	if opts.Temperature > 0 || opts.TemperatureSet {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	if opts.TopK > 0 {
		params.TopK = anthropic.Int(int64(opts.TopK))
	}
	if len(opts.StopWords) > 0 {
		params.StopSequences = opts.StopWords
	}
	if tools := ToTools(opts.Tools); len(tools) > 0 {
		params.Tools = tools
		params.ToolChoice = toToolChoice(opts.ToolChoice)
	}
	return params, nil
}

// ToContentResponse converts the Anthropic message to the response,
// one choice per content block.
func ToContentResponse(result *anthropic.Message) (*llms.ContentResponse, error) {
	if result == nil || len(result.Content) == 0 {
		return nil, ErrEmptyResponse
	}

	info := func(i int) map[string]any {
		return map[string]any{
			"InputTokens":  result.Usage.InputTokens,
			"OutputTokens": result.Usage.OutputTokens,
			"TotalTokens":  result.Usage.InputTokens + result.Usage.OutputTokens,
			"ID":           result.ID,
			"Index":        i,
		}
	}

	choices := make([]*llms.ContentChoice, 0, len(result.Content))
	for i, block := range result.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			choices = append(choices, &llms.ContentChoice{
				Content:        content.Text,
				StopReason:     string(result.StopReason),
				GenerationInfo: info(i),
			})
		case anthropic.ToolUseBlock:
			args, err := json.Marshal(content.Input)
			if err != nil {
				return nil, errors.Wrap(err, "anthropic: failed to marshal tool use arguments")
			}
			fc := &llms.FunctionCall{
				Name:      content.Name,
				Arguments: string(args),
			}
			choices = append(choices, &llms.ContentChoice{
				StopReason:     string(result.StopReason),
				GenerationInfo: info(i),
				FuncCall:       fc,
				ToolCalls: []llms.ToolCall{
					{ID: content.ID, Type: "function", FunctionCall: fc},
				},
			})
		default:
			return nil, errors.WithMessagef(ErrUnsupportedContentType, "anthropic: %T", content)
		}
	}
	if len(choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// ToTools converts tool definitions to Anthropic tool parameters.
func ToTools(tools []llms.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	sdkTools := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: "object",
		}
		if params := tool.Function.Parameters; params != nil {
			if params.Properties != nil {
				properties := make(map[string]any, params.Properties.Len())
				for pair := params.Properties.Oldest(); pair != nil; pair = pair.Next() {
					properties[pair.Key] = pair.Value
				}
				inputSchema.Properties = properties
			}
			if len(params.Required) > 0 {
				inputSchema.Required = params.Required
			}
		}

		sdkTools = append(sdkTools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Function.Name,
				Description: anthropic.String(tool.Function.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return sdkTools
}

func toToolChoice(choice any) anthropic.ToolChoiceUnionParam {
	switch c := choice.(type) {
	case string:
		switch c {
		case "none":
			return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
		case "required", "any":
			return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
		}
	case llms.ToolChoice:
		if c.Function != nil && c.Function.Name != "" {
			return anthropic.ToolChoiceParamOfTool(c.Function.Name)
		}
	case *llms.ToolChoice:
		if c != nil && c.Function != nil && c.Function.Name != "" {
			return anthropic.ToolChoiceParamOfTool(c.Function.Name)
		}
	}
	return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
}

// ProcessMessages converts the messages to Anthropic message parameters,
// system messages are joined and returned as the system prompt.
func ProcessMessages(messages []llms.Message) ([]anthropic.MessageParam, string, error) {
	chatMessages := make([]anthropic.MessageParam, 0, len(messages))
	var system []string
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}
		switch msg.Role {
		case llms.RoleSystem:
			content, err := HandleSystemMessage(msg)
			if err != nil {
				return nil, "", err
			}
			system = append(system, content)
		case llms.RoleHuman:
			chatMessage, err := HandleHumanMessage(msg)
			if err != nil {
				return nil, "", err
			}
			chatMessages = append(chatMessages, chatMessage)
		case llms.RoleAI, llms.RoleGeneric:
			chatMessage, err := HandleAIMessage(msg)
			if err != nil {
				return nil, "", err
			}
			chatMessages = append(chatMessages, chatMessage)
		case llms.RoleTool:
			chatMessage, err := HandleToolMessage(msg)
			if err != nil {
				return nil, "", err
			}
			chatMessages = append(chatMessages, chatMessage)
		default:
			return nil, "", errors.WithMessagef(ErrUnsupportedMessageType, "anthropic: %v", msg.Role)
		}
	}
	return chatMessages, strings.Join(system, "\n"), nil
}

// HandleSystemMessage returns the text of a system message.
func HandleSystemMessage(msg llms.Message) (string, error) {
	var texts []string
	for _, part := range msg.Parts {
		tc, ok := part.(llms.TextContent)
		if !ok {
			return "", errors.WithMessagef(ErrInvalidContentType, "anthropic: system message part %T", part)
		}
		texts = append(texts, tc.Text)
	}
	return strings.Join(texts, "\n"), nil
}

// HandleHumanMessage converts a human message to a user message.
func HandleHumanMessage(msg llms.Message) (anthropic.MessageParam, error) {
	var contents []anthropic.ContentBlockParamUnion
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			contents = append(contents, anthropic.NewTextBlock(p.Text))
		case llms.BinaryContent:
			if !strings.HasPrefix(p.MIMEType, "image/") {
				return anthropic.MessageParam{}, errors.Errorf("anthropic: unsupported binary content type: %s", p.MIMEType)
			}
			contents = append(contents, anthropic.NewImageBlockBase64(p.MIMEType, base64.StdEncoding.EncodeToString(p.Data)))
		case llms.ImageURLContent:
			contents = append(contents, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: p.URL}))
		default:
			return anthropic.MessageParam{}, errors.Errorf("anthropic: unsupported human message part type: %T", part)
		}
	}
	return anthropic.NewUserMessage(contents...), nil
}

// HandleAIMessage converts an AI message with text and tool calls to an assistant message.
func HandleAIMessage(msg llms.Message) (anthropic.MessageParam, error) {
	var contents []anthropic.ContentBlockParamUnion
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.ToolCall:
			if p.FunctionCall == nil {
				return anthropic.MessageParam{}, errors.Errorf("anthropic: tool call %s has no function", p.ID)
			}
			args := p.FunctionCall.Arguments
			if args == "" {
				args = "{}"
			}
			var input json.RawMessage
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				return anthropic.MessageParam{}, errors.Wrap(err, "anthropic: failed to unmarshal tool call arguments")
			}
			contents = append(contents, anthropic.NewToolUseBlock(p.ID, input, p.FunctionCall.Name))
		case llms.TextContent:
			contents = append(contents, anthropic.NewTextBlock(p.Text))
		default:
			return anthropic.MessageParam{}, errors.Errorf("anthropic: unsupported AI message part type: %T", part)
		}
	}
	return anthropic.NewAssistantMessage(contents...), nil
}

// HandleToolMessage converts tool responses to a user message with tool results.
func HandleToolMessage(msg llms.Message) (anthropic.MessageParam, error) {
	var contents []anthropic.ContentBlockParamUnion
	for _, part := range msg.Parts {
		resp, ok := part.(llms.ToolCallResponse)
		if !ok {
			return anthropic.MessageParam{}, errors.WithMessagef(ErrInvalidContentType, "anthropic: tool message part %T", part)
		}
		contents = append(contents, anthropic.NewToolResultBlock(resp.ToolCallID, resp.Content, false))
	}
	return anthropic.NewUserMessage(contents...), nil
}
