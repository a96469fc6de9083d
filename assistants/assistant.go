package assistants

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/encoding"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/llmutils"
	"github.com/effective-security/devagency/pkg/metricskey"
	"github.com/effective-security/devagency/pkg/prompts"
	"github.com/effective-security/devagency/pkg/schema"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// Assistant is a chat assistant with tools and a typed output.
type Assistant[O chatmodel.ContentProvider] struct {
	LLM          llms.Model
	OutputParser chatmodel.OutputParser[O]

	toolsByName map[string]tools.ITool
	toolsNames  []string
	tools       []tools.ITool
	llmToolDefs []llms.Tool

	cfg         *Config
	name        string
	description string
	sysprompt   prompts.FormatPrompter
	onPrompt    ProvidePromptInputsFunc
	inputParser func(string) (string, error)
}

var _ TypeableAssistant[chatmodel.OutputResult] = (*Assistant[chatmodel.OutputResult])(nil)

// NewAssistant returns an Assistant.
func NewAssistant[O chatmodel.ContentProvider](
	llmModel llms.Model,
	sysprompt prompts.FormatPrompter,
	options ...Option) *Assistant[O] {
	ret := &Assistant[O]{
		cfg:         NewConfig(options...),
		LLM:         llmModel,
		sysprompt:   sysprompt,
		name:        "Generic Assistant",
		description: "An AI assistant that can perform various tasks.",
	}

	var output O
	parser, err := encoding.NewTypedOutputParser(output, ret.cfg.Mode)
	if err != nil {
		logger.KV(xlog.ERROR,
			"status", "failed_to_create_output_parser",
			"mode", ret.cfg.Mode,
			"err", err.Error(),
		)
	} else {
		ret.OutputParser = parser
	}

	prov := llmModel.GetProviderType()
	strict := ret.cfg.Mode == encoding.ModeJSONSchemaStrict && prov.Supports(llms.CapabilityJSONSchemaStrict)
	jsonSchema := (ret.cfg.Mode == encoding.ModeJSONSchema || ret.cfg.Mode == encoding.ModeJSONSchemaStrict) &&
		prov.Supports(llms.CapabilityJSONSchema)
	if jsonSchema {
		rf, err := schema.NewResponseFormat(reflect.TypeOf(output), strict)
		if err != nil {
			logger.KV(xlog.ERROR,
				"status", "failed_to_create_response_format",
				"err", err.Error(),
			)
		}
		ret.cfg.ResponseFormat = rf
	}

	return ret
}

// WithOutputParser sets the output parser.
func (a *Assistant[O]) WithOutputParser(outputParser chatmodel.OutputParser[O]) *Assistant[O] {
	a.OutputParser = outputParser
	return a
}

// WithInputParser sets the input parser for the Assistant.
func (a *Assistant[O]) WithInputParser(inputParser func(string) (string, error)) *Assistant[O] {
	a.inputParser = inputParser
	return a
}

// GetCallConfig returns the config with the call options applied.
func (a *Assistant[O]) GetCallConfig(opts ...Option) *Config {
	return a.cfg.Apply(opts...)
}

// GetCallback returns the configured callback.
func (a *Assistant[O]) GetCallback() Callback {
	return a.cfg.CallbackHandler
}

// WithName sets the name of the Assistant.
func (a *Assistant[O]) WithName(name string) *Assistant[O] {
	a.name = name
	return a
}

// WithDescription sets the description of the Assistant, to be used in the prompt of other Assistants.
func (a *Assistant[O]) WithDescription(description string) *Assistant[O] {
	a.description = description
	return a
}

// Name returns the name of the Assistant.
func (a *Assistant[O]) Name() string {
	return a.name
}

// Description returns the description of the Assistant.
func (a *Assistant[O]) Description() string {
	return a.description
}

// GetTools returns the tools.
func (a *Assistant[O]) GetTools() []tools.ITool {
	return a.tools
}

// WithTools adds new tools to the Assistant,
// existing tools are not replaced.
func (a *Assistant[O]) WithTools(list ...tools.ITool) *Assistant[O] {
	if a.toolsByName == nil {
		a.toolsByName = make(map[string]tools.ITool)
	}
	for _, tool := range list {
		name := tool.Name()
		key := strings.ToLower(name)
		if a.toolsByName[key] != nil {
			continue
		}
		a.toolsByName[key] = tool
		a.toolsNames = append(a.toolsNames, name)
		a.tools = append(a.tools, tool)
		a.llmToolDefs = append(a.llmToolDefs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        name,
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return a
}

// FormatPrompt returns the system prompt for the inputs merged with the configured ones.
func (a *Assistant[O]) FormatPrompt(promptInputs map[string]any) (prompts.PromptValue, error) {
	return a.sysprompt.FormatPrompt(llmutils.MergeInputs(a.cfg.PromptInput, promptInputs))
}

// GetPromptInputVariables returns the system prompt variables.
func (a *Assistant[O]) GetPromptInputVariables() []string {
	return a.sysprompt.GetInputVariables()
}

// WithPromptInputProvider sets the provider of dynamic prompt inputs.
func (a *Assistant[O]) WithPromptInputProvider(cb ProvidePromptInputsFunc) *Assistant[O] {
	a.onPrompt = cb
	return a
}

// GetSystemPrompt generates the system prompt for the Assistant.
func (a *Assistant[O]) GetSystemPrompt(ctx context.Context, input string, promptInputs map[string]any) (string, error) {
	if a.onPrompt != nil {
		extra, err := a.onPrompt(ctx, input)
		if err != nil {
			return "", errors.WithMessage(err, "failed to get prompt inputs")
		}
		if len(extra) > 0 {
			promptInputs = llmutils.MergeInputs(promptInputs, extra)
		}
	}

	promptValue, err := a.FormatPrompt(promptInputs)
	if err != nil {
		return "", err
	}

	systemPrompt := strings.TrimRight(promptValue.String(), "\n")

	// the schema is sent in the prompt when the provider can not enforce it
	if a.cfg.ResponseFormat == nil && a.OutputParser != nil {
		outputSchema := strings.TrimRight(a.OutputParser.GetFormatInstructions(), "\n")
		if outputSchema != "" {
			systemPrompt = fmt.Sprintf("%s\n\n# OUTPUT SCHEMA\n%s", systemPrompt, outputSchema)
		}
	}
	return systemPrompt, nil
}

// Call runs the assistant and parses the output.
func (a *Assistant[O]) Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error) {
	var output O
	return a.Run(ctx, input, &output)
}

// Run executes the assistant, the output is parsed when optionalOutputType is provided.
func (a *Assistant[O]) Run(ctx context.Context, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, error) {
	started := time.Now()
	defer metricskey.PerfAssistantCall.MeasureSince(started, a.Name())

	cfg := a.GetCallConfig(input.Options...)

	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnAssistantStart(ctx, a, input.Input)
	}

	resp, messages, err := a.run(ctx, cfg, input, optionalOutputType)
	if err != nil {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, a.Name())
		if callback != nil {
			callback.OnAssistantError(ctx, a, input.Input, err, messages)
		}
		return nil, err
	}
	metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, a.Name())
	if callback != nil {
		callback.OnAssistantEnd(ctx, a, input.Input, resp, messages)
	}
	return resp, nil
}

// runState holds the messages produced by one run.
type runState struct {
	lock     sync.Mutex
	messages []llms.Message
}

func (s *runState) add(msgs ...llms.Message) {
	s.lock.Lock()
	s.messages = append(s.messages, msgs...)
	s.lock.Unlock()
}

// limits bound a single run.
type limits struct {
	messages  int
	bytes     uint64
	toolCalls int
}

func newLimits(cfg *Config) limits {
	return limits{
		messages:  values.NumbersCoalesce(cfg.MaxMessages, DefaultMaxMessages),
		bytes:     uint64(values.NumbersCoalesce(cfg.MaxLength, DefaultMaxContentSize)),
		toolCalls: values.NumbersCoalesce(cfg.MaxToolCalls, DefaultMaxToolCalls),
	}
}

// history returns the system prompt, the few-shot examples and the stored
// messages of the thread.
func (a *Assistant[O]) history(ctx context.Context, cfg *Config, systemPrompt string) []llms.Message {
	msgs := []llms.Message{llms.MessageFromTextParts(llms.RoleSystem, systemPrompt)}
	for _, ex := range cfg.Examples {
		msgs = append(msgs,
			llms.MessageFromTextParts(llms.RoleHuman, ex.Prompt),
			llms.MessageFromTextParts(llms.RoleAI, ex.Completion),
		)
	}
	if cfg.Store != nil {
		prev := cfg.Store.Messages(ctx)
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"message_history", len(prev))
		msgs = append(msgs, prev...)
	}
	return msgs
}

// observe returns the message recorded in the thread for the role.
func (a *Assistant[O]) observe(cfg *Config, role llms.Role, kind, content string) llms.Message {
	if cfg.IsGeneric {
		return llms.MessageFromTextParts(llms.RoleGeneric, llmutils.AddComment("assistant", a.name, kind, content))
	}
	return llms.MessageFromTextParts(role, content)
}

func (a *Assistant[O]) generate(ctx context.Context, cfg *Config, lim limits, msgs []llms.Message, callOpts []llms.CallOption) (*llms.ContentResponse, error) {
	name := a.Name()
	if len(msgs) >= lim.messages {
		return nil, errors.Newf("assistant %s: the messages count exceeded limit", name)
	}
	sent := llmutils.CountMessagesContentSize(msgs)
	if sent > lim.bytes {
		return nil, errors.Newf("assistant %s: the content size exceeded limit", name)
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnAssistantLLMCallStart(ctx, a, a.LLM, msgs)
	}

	model := a.LLM.GetName()
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(msgs)), name, model)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(sent), name, model)

	resp, err := a.LLM.GenerateContent(ctx, msgs, callOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate content from LLM")
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnAssistantLLMCallEnd(ctx, a, a.LLM, resp)
	}

	received := llmutils.CountResponseContentSize(resp)
	metricskey.StatsLLMBytesReceived.IncrCounter(float64(received), name, model)
	metricskey.StatsLLMBytesTotal.IncrCounter(float64(sent+received), name, model)

	in, out, total := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(in), name, model)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(out), name, model)
	metricskey.StatsLLMTotalTokens.IncrCounter(float64(total), name, model)
	return resp, nil
}

func joinChoices(choices []*llms.ContentChoice) string {
	parts := make([]string, 0, len(choices))
	for _, c := range choices {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (a *Assistant[O]) run(ctx context.Context, cfg *Config, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, []llms.Message, error) {
	_, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, nil, errors.WithStack(chatmodel.ErrInvalidChatContext)
	}

	systemPrompt, err := a.GetSystemPrompt(ctx, input.Input, input.PromptInputs)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "failed to format system prompt")
	}

	name := a.Name()
	state := &runState{}
	msgs := a.history(ctx, cfg, systemPrompt)

	question := input.Input
	if question != "" {
		if a.inputParser != nil {
			if question, err = a.inputParser(question); err != nil {
				return nil, msgs, errors.WithMessage(err, "failed to parse input")
			}
		}
		state.add(a.observe(cfg, llms.RoleHuman, "question", question))
		msgs = append(msgs, llms.MessageFromTextParts(llms.RoleHuman, question))
	}
	msgs = append(msgs, input.Messages...)

	var extra []Option
	if len(a.llmToolDefs) > 0 {
		if !a.LLM.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return nil, msgs, errors.Newf("assistant %s: the LLM does not support function calling", name)
		}
		extra = append(extra, WithTools(a.llmToolDefs))
	}
	callOpts := cfg.GetCallOptions(extra...)
	lim := newLimits(cfg)

	var resp *llms.ContentResponse
	toolCalls, retries := 0, 0
	for {
		if resp, err = a.generate(ctx, cfg, lim, msgs, callOpts); err != nil {
			return nil, msgs, err
		}

		if len(resp.Choices) == 0 {
			retries++
			metricskey.StatsAssistantCallsRetried.IncrCounter(1, name)
			if retries >= DefaultMaxRetries {
				logger.ContextKV(ctx, xlog.ERROR,
					"assistant", name,
					"status", "max_retries_exceeded",
					"input", slices.StringUpto(question, 64),
					"retry_count", retries,
				)
				return nil, msgs, errors.Newf("assistant %s: LLM returned empty response after %d retries", name, retries)
			}
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", name,
				"status", "retrying_empty_response",
				"retry_count", retries,
			)
			continue
		}

		var executed, notFound int
		executed, notFound, msgs, err = a.executeToolCalls(ctx, cfg, state, msgs, resp)
		if err != nil {
			return nil, msgs, err
		}
		if executed == 0 {
			break
		}
		if notFound > MaxNotFoundTools {
			return nil, msgs, errors.Newf("assistant %s: the number of not found tools is exceeded", name)
		}
		if toolCalls += executed; toolCalls >= lim.toolCalls {
			return nil, msgs, errors.Newf("assistant %s: the tool calls limit is exceeded", name)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", name,
		"status", "response_analysis",
		"choices_count", len(resp.Choices),
		"tool_calls", toolCalls,
	)

	result := joinChoices(resp.Choices)
	if optionalOutputType != nil && a.OutputParser != nil {
		parsed, err := a.OutputParser.Parse(result)
		if err != nil {
			metricskey.StatsAssistantLLMParseErrors.IncrCounter(1, name)
			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", name,
				"status", "failed_to_parse_llm_response",
				"err", err.Error(),
				"output_parser", a.OutputParser.Type(),
				"result", slices.StringUpto(result, 256),
			)
			if cfg.CallbackHandler != nil {
				cfg.CallbackHandler.OnAssistantLLMParseError(ctx, a, input.Input, result, err)
			}
			return nil, msgs, err
		}
		*optionalOutputType = *parsed
		result = (*parsed).GetContent()
	}

	msgs = append(msgs, llms.MessageFromTextParts(llms.RoleAI, result))
	state.add(a.observe(cfg, llms.RoleAI, "observation", result))

	if cfg.Store != nil && !cfg.SkipMessageHistory && len(state.messages) > 0 {
		if err := cfg.Store.Add(ctx, state.messages...); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"assistant", name,
				"chat_id", chatID,
				"status", "failed_to_add_message_history",
				"err", err.Error(),
			)
		} else {
			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", name,
				"chat_id", chatID,
				"status", "added_message_history",
				"message_history", len(state.messages),
				"human", slices.StringUpto(question, 64),
				"ai", slices.StringUpto(result, 64),
			)
		}
	}

	return resp, msgs, nil
}

type toolCallResult struct {
	toolCall llms.ToolCall
	response string
	err      error
}

// executeToolCalls runs the requested tools in parallel and appends the
// calls and the responses, in the requested order, to the history.
func (a *Assistant[O]) executeToolCalls(ctx context.Context, cfg *Config, state *runState, messageHistory []llms.Message, resp *llms.ContentResponse) (int, int, []llms.Message, error) {
	keepHistory := !cfg.SkipMessageHistory && !cfg.SkipToolHistory

	var toolCalls []llms.ToolCall
	for _, choice := range resp.Choices {
		var choiceToolCalls []llms.ToolCall
		for i, toolCall := range choice.ToolCalls {
			if toolCall.FunctionCall == nil {
				continue
			}
			if toolCall.ID == "" {
				toolCall.ID = fmt.Sprintf("%s_%d", toolCall.FunctionCall.Name, i)
			}
			toolCall.Type = values.StringsCoalesce(toolCall.Type, "function")
			choiceToolCalls = append(choiceToolCalls, toolCall)

			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", a.name,
				"status", "tool_call_found",
				"tool_call_id", toolCall.ID,
				"tool_call_name", toolCall.FunctionCall.Name,
			)
		}
		if len(choiceToolCalls) == 0 {
			continue
		}

		toolCalls = append(toolCalls, choiceToolCalls...)
		callsMessage := llms.MessageFromToolCalls(llms.RoleAI, choiceToolCalls...)
		messageHistory = append(messageHistory, callsMessage)
		if keepHistory {
			state.add(callsMessage)
		}
	}

	if len(toolCalls) == 0 {
		return 0, 0, messageHistory, nil
	}

	var notFound atomic.Int32
	results := make([]toolCallResult, len(toolCalls))

	var wg sync.WaitGroup
	for i, toolCall := range toolCalls {
		wg.Add(1)
		go func(index int, tc llms.ToolCall) {
			defer wg.Done()
			results[index] = a.callTool(ctx, cfg, tc, &notFound)
		}(i, toolCall)
	}
	wg.Wait()

	for _, result := range results {
		if errors.Is(result.err, tools.ErrFatal) {
			logger.ContextKV(ctx, xlog.ERROR,
				"assistant", a.name,
				"status", "tool_call_fatal",
				"tool", result.toolCall.FunctionCall.Name,
				"err", result.err.Error(),
			)
			return len(toolCalls), int(notFound.Load()), messageHistory, result.err
		}
	}

	for _, result := range results {
		content := result.response
		if result.err != nil {
			content = fmt.Sprintf("Tool call failed: %s", result.err.Error())
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", a.name,
				"status", "tool_call_failed",
				"tool", result.toolCall.FunctionCall.Name,
				"err", result.err.Error(),
			)
		}

		toolCallResponse := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: result.toolCall.ID,
			Name:       result.toolCall.FunctionCall.Name,
			Content:    content,
		})

		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"status", "tool_call_response",
			"tool_call_id", result.toolCall.ID,
			"tool_name", result.toolCall.FunctionCall.Name,
			"content_length", len(content),
		)

		messageHistory = append(messageHistory, toolCallResponse)
		if keepHistory {
			state.add(toolCallResponse)
		}
	}

	return len(toolCalls), int(notFound.Load()), messageHistory, nil
}

func (a *Assistant[O]) callTool(ctx context.Context, cfg *Config, tc llms.ToolCall, notFound *atomic.Int32) toolCallResult {
	toolName := tc.FunctionCall.Name
	toolArgs := tc.FunctionCall.Arguments

	tool := a.toolsByName[strings.ToLower(toolName)]
	if tool == nil {
		notFound.Add(1)
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolNotFound(ctx, a, toolName)
		}

		availableTools := strings.Join(a.toolsNames, ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_not_found",
			"tool_name", toolName,
			"available_tools", availableTools,
		)
		return toolCallResult{
			toolCall: tc,
			response: fmt.Sprintf("Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s", toolName, availableTools),
		}
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolStart(ctx, tool, a.Name(), toolArgs)
	}

	started := time.Now()
	res, err := tool.Call(ctx, toolArgs)
	metricskey.PerfToolCall.MeasureSince(started, toolName)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolError(ctx, tool, a.Name(), toolArgs, err)
		}
		if !errors.Is(err, chatmodel.ErrFailedUnmarshalInput) {
			return toolCallResult{
				toolCall: tc,
				err:      errors.WithMessagef(err, "failed to call tool %s", toolName),
			}
		}
		res = llmutils.AddComment("assistant", a.Name(), "error", "Failed to unmarshal input, check the JSON schema and try again.")
		return toolCallResult{toolCall: tc, response: res}
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)
	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolEnd(ctx, tool, a.Name(), toolArgs, res)
	}
	return toolCallResult{toolCall: tc, response: res}
}
