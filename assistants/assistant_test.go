package assistants_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/assistants"
	"github.com/effective-security/devagency/callbacks"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/encoding"
	"github.com/effective-security/devagency/mocks/mockllms"
	"github.com/effective-security/devagency/mocks/mocktools"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/prompts"
	"github.com/effective-security/devagency/store"
	"github.com/effective-security/devagency/tools"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testPrompt = "You are helpful and friendly AI assistant."

func newChatCtx(t *testing.T) context.Context {
	t.Helper()
	chatCtx := chatmodel.NewChatContext(chatmodel.NewChatID(), "chat1/user->CEO", nil)
	return chatmodel.WithChatContext(context.Background(), chatCtx)
}

func newMockLLM(ctrl *gomock.Controller, provider llms.ProviderType) *mockllms.MockModel {
	m := mockllms.NewMockModel(ctrl)
	m.EXPECT().GetProviderType().Return(provider).AnyTimes()
	m.EXPECT().GetName().Return("test-model").AnyTimes()
	return m
}

func newMockTool(ctrl *gomock.Controller, name string) *mocktools.MockTool[any, any] {
	tool := mocktools.NewMockTool[any, any](ctrl)
	tool.EXPECT().Name().Return(name).AnyTimes()
	tool.EXPECT().Description().Return("desc").AnyTimes()
	tool.EXPECT().Parameters().Return(&jsonschema.Schema{Type: "object"}).AnyTimes()
	return tool
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

func toolCallResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{ToolCalls: calls}}}
}

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{ID: id, Type: "function", FunctionCall: &llms.FunctionCall{Name: name, Arguments: args}}
}

func Test_Assistant_BuilderMethods(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mockLLM := newMockLLM(ctrl, llms.ProviderOpenAI)
	systemPrompt := prompts.NewPromptTemplate(testPrompt, []string{})

	assistant := assistants.NewAssistant[chatmodel.OutputResult](mockLLM, systemPrompt)
	assert.Equal(t, "Generic Assistant", assistant.Name())
	assert.NotNil(t, assistant.OutputParser)
	assert.Nil(t, assistant.GetCallback())
	// OpenAI enforces the schema, so it is not added to the prompt
	assert.NotNil(t, assistant.GetCallConfig().ResponseFormat)

	outputParser, err := encoding.NewTypedOutputParser(chatmodel.OutputResult{}, encoding.ModeJSON)
	require.NoError(t, err)
	assistant = assistant.WithOutputParser(outputParser).
		WithInputParser(func(input string) (string, error) { return "parsed: " + input, nil }).
		WithName("CTO").
		WithDescription("Technology lead")
	assert.Equal(t, "CTO", assistant.Name())
	assert.Equal(t, "Technology lead", assistant.Description())
	assert.Empty(t, assistant.GetTools())
	assert.Empty(t, assistant.GetPromptInputVariables())

	assistant = assistant.WithTools(newMockTool(ctrl, "test_tool"), newMockTool(ctrl, "Test_Tool"))
	require.Len(t, assistant.GetTools(), 1)
	assert.Equal(t, "test_tool", assistant.GetTools()[0].Name())

	assert.Equal(t, "- `CTO`: Technology lead\n", assistants.GetDescriptions(assistant))
}

func Test_Assistant_GetSystemPrompt(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// Anthropic does not enforce the schema, so it is sent in the prompt
	mockLLM := newMockLLM(ctrl, llms.ProviderAnthropic)
	systemPrompt := prompts.NewPromptTemplate("You are {{.role}}.", []string{"role"})
	assistant := assistants.NewAssistant[chatmodel.OutputResult](mockLLM, systemPrompt,
		assistants.WithPromptInput(map[string]any{"role": "CEO"}))

	sp, err := assistant.GetSystemPrompt(context.Background(), "input", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sp, "You are CEO.\n\n# OUTPUT SCHEMA\n"))
	assert.Contains(t, sp, `"content"`)

	assistant.WithPromptInputProvider(func(_ context.Context, _ string) (map[string]any, error) {
		return map[string]any{"role": "CTO"}, nil
	})
	sp, err = assistant.GetSystemPrompt(context.Background(), "input", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sp, "You are CTO."))

	assistant.WithPromptInputProvider(func(_ context.Context, _ string) (map[string]any, error) {
		return nil, assert.AnError
	})
	_, err = assistant.GetSystemPrompt(context.Background(), "input", nil)
	assert.ErrorIs(t, err, assert.AnError)

	// plain text has no schema
	assistant2 := assistants.NewAssistant[chatmodel.String](mockLLM, prompts.NewPromptTemplate(testPrompt, nil),
		assistants.WithMode(encoding.ModePlainText))
	sp, err = assistant2.GetSystemPrompt(context.Background(), "input", nil)
	require.NoError(t, err)
	assert.Equal(t, testPrompt, sp)
}

func Test_Assistant_Run_NoChatContext(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockLLM := newMockLLM(ctrl, llms.ProviderOpenAI)
	assistant := assistants.NewAssistant[chatmodel.OutputResult](mockLLM, prompts.NewPromptTemplate(testPrompt, nil))

	_, err := assistant.Run(context.Background(), &assistants.CallInput{Input: "input"}, nil)
	assert.ErrorIs(t, err, chatmodel.ErrInvalidChatContext)
}

func Test_Assistant_Ask_PlainText_Store(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	ctx := newChatCtx(t)

	st := store.NewMemoryStore()
	mockLLM := newMockLLM(ctrl, llms.ProviderOpenAI)
	var buf bytes.Buffer
	assistant := assistants.NewAssistant[chatmodel.String](mockLLM, prompts.NewPromptTemplate(testPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
		assistants.WithStore(st),
		assistants.WithCallback(callbacks.NewPrinter(&buf, callbacks.ModeDefault)),
	).WithName("CEO")

	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 2)
			assert.Equal(t, llms.RoleSystem, msgs[0].Role)
			assert.Equal(t, "Build a todo app\n", msgs[1].GetContent())
			return textResponse("Plan is ready"), nil
		}).Times(1)

	res, err := assistants.Ask(ctx, assistant, &assistants.CallInput{Input: "Build a todo app"})
	require.NoError(t, err)
	assert.Equal(t, "Plan is ready", res)

	history := st.Messages(ctx)
	require.Len(t, history, 2)
	assert.Equal(t, llms.RoleHuman, history[0].Role)
	assert.Equal(t, "Build a todo app\n", history[0].GetContent())
	assert.Equal(t, llms.RoleAI, history[1].Role)
	assert.Equal(t, "Plan is ready\n", history[1].GetContent())

	assert.Contains(t, buf.String(), "Assistant Start: CEO")
	assert.Contains(t, buf.String(), "Assistant End: CEO")

	// the history is sent with the next request
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 4)
			assert.Equal(t, "Plan is ready\n", msgs[2].GetContent())
			return textResponse("Done"), nil
		}).Times(1)
	res, err = assistants.Ask(ctx, assistant, &assistants.CallInput{Input: "Status?"})
	require.NoError(t, err)
	assert.Equal(t, "Done", res)
	assert.Len(t, st.Messages(ctx), 4)
}

func Test_Assistant_Run_JSON(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	ctx := newChatCtx(t)

	mockLLM := newMockLLM(ctrl, llms.ProviderOpenAI)
	assistant := assistants.NewAssistant[chatmodel.OutputResult](mockLLM, prompts.NewPromptTemplate(testPrompt, nil))

	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse("```json\n{\"content\": \"hello\"}\n```"), nil).Times(1)

	var out chatmodel.OutputResult
	resp, err := assistant.Run(ctx, &assistants.CallInput{Input: "hi"}, &out)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "hello", out.Content)

	// parse error
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse("bad json"), nil).Times(1)
	_, err = assistant.Run(ctx, &assistants.CallInput{Input: "hi"}, &out)
	assert.Error(t, err)
}

func Test_Assistant_Run_EmptyChoices(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	ctx := newChatCtx(t)

	mockLLM := newMockLLM(ctrl, llms.ProviderOpenAI)
	assistant := assistants.NewAssistant[chatmodel.OutputResult](mockLLM, prompts.NewPromptTemplate(testPrompt, nil))

	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&llms.ContentResponse{}, nil).Times(assistants.DefaultMaxRetries)
	_, err := assistant.Run(ctx, &assistants.CallInput{Input: "input"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM returned empty response after 3 retries")

	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, assert.AnError).Times(1)
	_, err = assistant.Run(ctx, &assistants.CallInput{Input: "input"}, nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func Test_Assistant_Run_Tools(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	ctx := newChatCtx(t)

	st := store.NewMemoryStore()
	mockLLM := newMockLLM(ctrl, llms.ProviderOpenAI)
	okTool := newMockTool(ctrl, "ok_tool")
	errTool := newMockTool(ctrl, "err_tool")
	badInputTool := newMockTool(ctrl, "bad_input_tool")

	assistant := assistants.NewAssistant[chatmodel.String](mockLLM, prompts.NewPromptTemplate(testPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
		assistants.WithStore(st),
	).WithName("CTO").WithTools(okTool, errTool, badInputTool)

	okTool.EXPECT().Call(gomock.Any(), `{"q":1}`).Return("tool result", nil).Times(1)
	errTool.EXPECT().Call(gomock.Any(), gomock.Any()).Return("", assert.AnError).Times(1)
	badInputTool.EXPECT().Call(gomock.Any(), gomock.Any()).Return("", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)).Times(1)

	gomock.InOrder(
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
				opts := llms.NewCallOptions(options...)
				assert.Len(t, opts.Tools, 3)
				return toolCallResponse(
					toolCall("1", "ok_tool", `{"q":1}`),
					toolCall("2", "err_tool", `{}`),
					toolCall("3", "bad_input_tool", `{}`),
					toolCall("4", "missing_tool", `{}`),
				), nil
			}),
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				// system, human, tool calls, 4 responses
				require.Len(t, msgs, 7)
				require.Len(t, msgs[2].Parts, 4)

				responses := map[string]string{}
				for _, m := range msgs[3:] {
					assert.Equal(t, llms.RoleTool, m.Role)
					r := m.Parts[0].(llms.ToolCallResponse)
					responses[r.ToolCallID] = r.Content
				}
				assert.Equal(t, "tool result", responses["1"])
				assert.True(t, strings.HasPrefix(responses["2"], "Tool call failed: failed to call tool err_tool"))
				assert.Contains(t, responses["3"], "Failed to unmarshal input")
				assert.Contains(t, responses["4"], "Tool `missing_tool` not found")
				assert.Contains(t, responses["4"], "Available tools: ok_tool, err_tool, bad_input_tool")
				return textResponse("All done"), nil
			}),
	)

	res, err := assistants.Ask(ctx, assistant, &assistants.CallInput{Input: "use tools"})
	require.NoError(t, err)
	assert.Equal(t, "All done", res)

	// human, tool calls, 4 tool responses, ai
	assert.Len(t, st.Messages(ctx), 7)
}

func Test_Assistant_Run_FatalToolError(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	ctx := newChatCtx(t)

	mockLLM := newMockLLM(ctrl, llms.ProviderOpenAI)
	okTool := newMockTool(ctrl, "ok_tool")
	fatalTool := newMockTool(ctrl, "send_message")

	assistant := assistants.NewAssistant[chatmodel.String](mockLLM, prompts.NewPromptTemplate(testPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
	).WithName("CEO").WithTools(okTool, fatalTool)

	okTool.EXPECT().Call(gomock.Any(), gomock.Any()).Return("tool result", nil).Times(1)
	fatalTool.EXPECT().Call(gomock.Any(), gomock.Any()).
		Return("", tools.Fatal(errors.New("provider 503"))).Times(1)

	// the model is not called again after the fatal error
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(
			toolCall("1", "ok_tool", `{}`),
			toolCall("2", "send_message", `{"recipient":"CTO","message":"design"}`),
		), nil).Times(1)

	res, err := assistants.Ask(ctx, assistant, &assistants.CallInput{Input: "delegate"})
	require.Error(t, err)
	assert.Empty(t, res)
	assert.ErrorContains(t, err, "failed to call tool send_message: provider 503")
	assert.True(t, errors.Is(err, tools.ErrFatal))
}

func Test_Assistant_Run_SkipToolHistory(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	ctx := newChatCtx(t)

	st := store.NewMemoryStore()
	mockLLM := newMockLLM(ctrl, llms.ProviderOpenAI)
	okTool := newMockTool(ctrl, "ok_tool")
	okTool.EXPECT().Call(gomock.Any(), gomock.Any()).Return("tool result", nil).Times(1)

	assistant := assistants.NewAssistant[chatmodel.String](mockLLM, prompts.NewPromptTemplate(testPrompt, nil),
		assistants.WithMode(encoding.ModePlainText),
		assistants.WithStore(st),
		assistants.WithSkipToolHistory(true),
	).WithTools(okTool)

	gomock.InOrder(
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(toolCall("1", "ok_tool", `{}`)), nil),
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(textResponse("answer"), nil),
	)

	_, err := assistants.Ask(ctx, assistant, &assistants.CallInput{Input: "question"})
	require.NoError(t, err)

	history := st.Messages(ctx)
	require.Len(t, history, 2)
	assert.Equal(t, llms.RoleHuman, history[0].Role)
	assert.Equal(t, llms.RoleAI, history[1].Role)
}

func Test_Assistant_Run_Limits(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	ctx := newChatCtx(t)

	mockLLM := newMockLLM(ctrl, llms.ProviderOpenAI)

	t.Run("not_found", func(t *testing.T) {
		assistant := assistants.NewAssistant[chatmodel.String](mockLLM, prompts.NewPromptTemplate(testPrompt, nil),
			assistants.WithMode(encoding.ModePlainText),
		).WithTools(newMockTool(ctrl, "ok_tool"))

		var calls []llms.ToolCall
		for i := 0; i <= assistants.MaxNotFoundTools; i++ {
			calls = append(calls, toolCall(fmt.Sprintf("%d", i), fmt.Sprintf("unknown_%d", i), `{}`))
		}
		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(calls...), nil).Times(1)
		_, err := assistant.Run(ctx, &assistants.CallInput{Input: "input"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "the number of not found tools is exceeded")
	})

	t.Run("tool_calls", func(t *testing.T) {
		okTool := newMockTool(ctrl, "ok_tool")
		okTool.EXPECT().Call(gomock.Any(), gomock.Any()).Return("ok", nil).Times(2)
		assistant := assistants.NewAssistant[chatmodel.String](mockLLM, prompts.NewPromptTemplate(testPrompt, nil),
			assistants.WithMode(encoding.ModePlainText),
			assistants.WithMaxToolCalls(2),
		).WithTools(okTool)

		mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(toolCall("1", "ok_tool", `{}`)), nil).Times(2)
		_, err := assistant.Run(ctx, &assistants.CallInput{Input: "input"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "the tool calls limit is exceeded")
	})

	t.Run("messages", func(t *testing.T) {
		assistant := assistants.NewAssistant[chatmodel.String](mockLLM, prompts.NewPromptTemplate(testPrompt, nil),
			assistants.WithMode(encoding.ModePlainText),
			assistants.WithMaxMessages(2),
		)
		_, err := assistant.Run(ctx, &assistants.CallInput{Input: "input"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "the messages count exceeded limit")
	})

	t.Run("content_size", func(t *testing.T) {
		assistant := assistants.NewAssistant[chatmodel.String](mockLLM, prompts.NewPromptTemplate(testPrompt, nil),
			assistants.WithMode(encoding.ModePlainText),
			assistants.WithMaxLength(10),
		)
		_, err := assistant.Run(ctx, &assistants.CallInput{Input: "input"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "the content size exceeded limit")
	})

	t.Run("function_calling", func(t *testing.T) {
		noTools := newMockLLM(ctrl, llms.ProviderAzureAD)
		assistant := assistants.NewAssistant[chatmodel.String](noTools, prompts.NewPromptTemplate(testPrompt, nil),
			assistants.WithMode(encoding.ModePlainText),
		).WithTools(newMockTool(ctrl, "ok_tool"))
		_, err := assistant.Run(ctx, &assistants.CallInput{Input: "input"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not support function calling")
	})
}
