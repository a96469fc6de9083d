package agency_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/agency"
	"github.com/effective-security/devagency/callbacks"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/mocks/mockllms"
	"github.com/effective-security/devagency/personas"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/store"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/devagency/tools/artifact"
	"github.com/effective-security/devagency/tools/tavily"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// models returns the same model for every agent.
type models struct {
	llm       llms.Model
	lock      sync.Mutex
	requested map[string][]string
}

func (m *models) AssistantModel(name string, preferred ...string) (llms.Model, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.requested == nil {
		m.requested = map[string][]string{}
	}
	m.requested[name] = preferred
	return m.llm, nil
}

// recorder keeps the routing events.
type recorder struct {
	callbacks.Noop
	lock   sync.Mutex
	routed []string
	denied []error
}

func (r *recorder) OnMessageRouted(_ context.Context, sender, recipient, _ string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.routed = append(r.routed, sender+"->"+recipient)
}

func (r *recorder) OnMessageDenied(_ context.Context, _, _ string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.denied = append(r.denied, err)
}

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	list, err := artifact.Tools()
	require.NoError(t, err)
	return tools.NewRegistry(list...)
}

func newMockLLM(ctrl *gomock.Controller) *mockllms.MockModel {
	m := mockllms.NewMockModel(ctrl)
	m.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	m.EXPECT().GetName().Return("test-model").AnyTimes()
	return m
}

func newChatCtx(chatID string) context.Context {
	return chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("tenant1", chatID, nil))
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

func sendMessageCall(id, recipient, message string) *llms.ContentResponse {
	args := `{"recipient":"` + recipient + `","message":"` + message + `"}`
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: agency.SendMessageToolName, Arguments: args},
		}},
	}}}
}

// whoAmI returns the agent name from the system prompt.
func whoAmI(messages []llms.Message) string {
	sys := messages[0].GetContent()
	for _, name := range personas.Names() {
		if strings.Contains(sys, "You are "+name+".") {
			return name
		}
	}
	// agents without recipients
	if strings.Contains(sys, "# Data Engineer") {
		return personas.DataEngineer
	}
	return ""
}

// lastToolResponse returns the content of the last tool response, if the
// last message is a tool response.
func lastToolResponse(messages []llms.Message) (string, bool) {
	last := messages[len(messages)-1]
	if last.Role != llms.RoleTool {
		return "", false
	}
	for _, p := range last.Parts {
		if r, ok := p.(llms.ToolCallResponse); ok {
			return r.Content, true
		}
	}
	return "", false
}

func TestNew(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	m, err := agency.DefaultManifest()
	require.NoError(t, err)

	provider := &models{llm: newMockLLM(ctrl)}
	a, err := agency.New(m, provider, newRegistry(t))
	require.NoError(t, err)

	assert.Equal(t, agency.DefaultName, a.Name())
	assert.Equal(t, personas.CEO, a.Entry())
	assert.Equal(t, agency.DefaultMaxDepth, a.MaxDepth())
	assert.Len(t, a.Flows(), 36)
	if diff := cmp.Diff(m.CommunicationFlows(), a.Flows()); diff != "" {
		t.Errorf("flows mismatch (-manifest +agency):\n%s", diff)
	}
	assert.Len(t, provider.requested, 9)
	assert.Empty(t, provider.requested[personas.CEO])

	agents := a.Agents()
	require.Len(t, agents, 9)
	for i, info := range agents {
		// agents may message the ones declared after them
		assert.Len(t, info.Recipients, 8-i, info.Name)
		assert.Equal(t, "test-model", info.Model)
		assert.Equal(t, 25000, info.MaxPromptTokens)
	}
	assert.True(t, agents[0].Entry)
	assert.False(t, agents[1].Entry)

	ceo, err := a.Agent(personas.CEO)
	require.NoError(t, err)
	assert.Equal(t, []string{artifact.ProjectAnalyzerName, artifact.TeamCoordinatorName, agency.SendMessageToolName}, ceo.Tools)
	assert.Equal(t, 0.5, ceo.Temperature)

	de, err := a.Agent(personas.DataEngineer)
	require.NoError(t, err)
	assert.Equal(t, []string{artifact.DataArchitectName, artifact.DataPipelineManagerName}, de.Tools)
	assert.Empty(t, de.Recipients)
	assert.Equal(t, 0.3, de.Temperature)

	_, err = a.Agent("CFO")
	assert.ErrorIs(t, err, agency.ErrAgentNotFound)

	assert.True(t, a.CanSend(personas.CEO, personas.DataEngineer))
	assert.True(t, a.CanSend(personas.QAEngineer, personas.DevOpsEngineer))
	assert.False(t, a.CanSend(personas.DevOpsEngineer, personas.QAEngineer))
	assert.False(t, a.CanSend(personas.CTO, personas.CEO))
	assert.Equal(t, []string{personas.DataEngineer}, a.Recipients(personas.DevOpsEngineer))

	// the recipient enum of send_message lists the allowed recipients
	as, err := a.Assistant(personas.UIUXDesigner)
	require.NoError(t, err)
	var found bool
	for _, tool := range as.GetTools() {
		if tool.Name() != agency.SendMessageToolName {
			continue
		}
		found = true
		prop, ok := tool.Parameters().Properties.Get("recipient")
		require.True(t, ok)
		assert.Equal(t, []any{personas.QAEngineer, personas.DevOpsEngineer, personas.DataEngineer}, prop.Enum)
		assert.Contains(t, tool.Parameters().Required, "message")
	}
	assert.True(t, found)

	prompt, err := as.FormatPrompt(nil)
	require.NoError(t, err)
	assert.Contains(t, prompt.String(), "# "+agency.DefaultName+" Manifesto")
	assert.Contains(t, prompt.String(), "# UI/UX Designer")
	assert.Contains(t, prompt.String(), "- `QAEngineer`: QA Engineer responsible")

	chart := a.Chart()
	assert.Contains(t, chart, "user               --> CEO\n")
	assert.Contains(t, chart, "DevOpsEngineer     --> DataEngineer\n")
	assert.Contains(t, chart, "DataEngineer        (no outgoing flows)\n")
}

func TestNew_WebSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	m, err := agency.DefaultManifest()
	require.NoError(t, err)

	t.Setenv(tavily.EnvAPIKey, "testkey")
	search, err := tavily.New()
	require.NoError(t, err)

	reg := newRegistry(t)
	require.NoError(t, reg.Register(search))

	a, err := agency.New(m, &models{llm: newMockLLM(ctrl)}, reg)
	require.NoError(t, err)

	cto, err := a.Agent(personas.CTO)
	require.NoError(t, err)
	assert.Contains(t, cto.Tools, tavily.ToolName)

	qa, err := a.Agent(personas.QAEngineer)
	require.NoError(t, err)
	assert.NotContains(t, qa.Tools, tavily.ToolName)
}

func TestNew_UnknownTool(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	m, err := agency.ParseManifest([]byte("entry: CEO\nagents: [{name: CEO, tools: [crystal_ball]}]"), "")
	require.NoError(t, err)

	_, err = agency.New(m, &models{llm: newMockLLM(ctrl)}, newRegistry(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, agency.ErrInvalidManifest)
	assert.ErrorIs(t, err, tools.ErrToolNotFound)
}

func TestAsk(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	llm := newMockLLM(ctrl)
	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			switch whoAmI(messages) {
			case personas.CEO:
				if reply, ok := lastToolResponse(messages); ok {
					return textResponse("Plan approved. CTO says: " + reply), nil
				}
				return sendMessageCall("call_1", personas.CTO, "Design the CRM architecture"), nil
			case personas.CTO:
				if reply, ok := lastToolResponse(messages); ok {
					return textResponse("Microservices on Kubernetes, " + reply), nil
				}
				return sendMessageCall("call_2", personas.DevOpsEngineer, "Estimate the hosting"), nil
			case personas.DevOpsEngineer:
				return textResponse("3 nodes in production"), nil
			}
			return nil, errors.New("unexpected agent")
		}).Times(5)

	st := store.NewMemoryStore()
	rec := &recorder{}
	m, err := agency.DefaultManifest()
	require.NoError(t, err)
	a, err := agency.New(m, &models{llm: llm}, newRegistry(t),
		agency.WithStore(st),
		agency.WithCallback(rec),
	)
	require.NoError(t, err)

	ctx := newChatCtx("chat1")
	reply, err := a.Ask(ctx, "Build a CRM for a small business")
	require.NoError(t, err)
	assert.Equal(t, "Plan approved. CTO says: Microservices on Kubernetes, 3 nodes in production", reply)
	assert.Equal(t, []string{"CEO->CTO", "CTO->DevOpsEngineer"}, rec.routed)
	assert.Empty(t, rec.denied)

	chats, err := st.ListChats(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"chat1/user->CEO",
		"chat1/CEO->CTO",
		"chat1/CTO->DevOpsEngineer",
	}, chats)

	// tool calls are not kept in the threads
	info, err := st.GetChatInfo(ctx, agency.ThreadID("chat1", agency.UserSender, personas.CEO))
	require.NoError(t, err)
	require.Len(t, info.Messages, 2)
	assert.Equal(t, "Build a CRM for a small business", info.Messages[0].GetContent())
	assert.Equal(t, reply, info.Messages[1].GetContent())
	assert.Equal(t, "user -> CEO", info.Title)

	info, err = st.GetChatInfo(ctx, agency.ThreadID("chat1", personas.CTO, personas.DevOpsEngineer))
	require.NoError(t, err)
	require.Len(t, info.Messages, 2)
	assert.Equal(t, "Estimate the hosting", info.Messages[0].GetContent())
	assert.Equal(t, "3 nodes in production", info.Messages[1].GetContent())
	assert.Equal(t, "chat1", info.Metadata["root_chat"])
}

func TestAsk_RecipientFails(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	llm := newMockLLM(ctrl)
	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			switch whoAmI(messages) {
			case personas.CEO:
				if _, ok := lastToolResponse(messages); ok {
					return textResponse("done anyway"), nil
				}
				return sendMessageCall("call_1", personas.CTO, "Design the architecture"), nil
			case personas.CTO:
				return nil, errors.New("provider 503")
			}
			return nil, errors.New("unexpected agent")
		}).Times(2)

	rec := &recorder{}
	m, err := agency.DefaultManifest()
	require.NoError(t, err)
	a, err := agency.New(m, &models{llm: llm}, newRegistry(t), agency.WithCallback(rec))
	require.NoError(t, err)

	reply, err := a.Ask(newChatCtx("chat1"), "Build a CRM")
	require.Error(t, err)
	assert.Empty(t, reply)
	assert.ErrorContains(t, err, "provider 503")
	assert.True(t, errors.Is(err, tools.ErrFatal))
	assert.Equal(t, []string{"CEO->CTO"}, rec.routed)
}

func TestAsk_NoChatContext(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	m, err := agency.DefaultManifest()
	require.NoError(t, err)
	a, err := agency.New(m, &models{llm: newMockLLM(ctrl)}, newRegistry(t))
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, chatmodel.ErrInvalidChatContext)

	_, err = a.AskAgent(newChatCtx("chat1"), "CFO", "hi")
	assert.ErrorIs(t, err, agency.ErrAgentNotFound)
}

func TestAskAgent(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	llm := newMockLLM(ctrl)
	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			assert.Equal(t, personas.QAEngineer, whoAmI(messages))
			return textResponse("Use pytest and cypress"), nil
		})

	st := store.NewMemoryStore()
	m, err := agency.DefaultManifest()
	require.NoError(t, err)
	a, err := agency.New(m, &models{llm: llm}, newRegistry(t), agency.WithStore(st))
	require.NoError(t, err)

	ctx := newChatCtx("chat2")
	reply, err := a.AskAgent(ctx, personas.QAEngineer, "Which test frameworks?")
	require.NoError(t, err)
	assert.Equal(t, "Use pytest and cypress", reply)

	chats, err := st.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat2/user->QAEngineer"}, chats)
}

func TestSend_Denied(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	llm := newMockLLM(ctrl)
	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			if reply, ok := lastToolResponse(messages); ok {
				return textResponse(reply), nil
			}
			// CTO tries to message the CEO
			return sendMessageCall("call_1", personas.CEO, "Approve the budget"), nil
		}).Times(2)

	rec := &recorder{}
	m, err := agency.DefaultManifest()
	require.NoError(t, err)
	a, err := agency.New(m, &models{llm: llm}, newRegistry(t), agency.WithCallback(rec))
	require.NoError(t, err)

	ctx := newChatCtx("chat3")
	_, err = a.Send(ctx, personas.CTO, personas.CEO, "hi")
	assert.ErrorIs(t, err, agency.ErrFlowNotAllowed)
	_, err = a.Send(ctx, personas.CEO, "CFO", "hi")
	assert.ErrorIs(t, err, agency.ErrAgentNotFound)

	// the model gets the error as the tool result
	reply, err := a.AskAgent(ctx, personas.CTO, "Talk to the CEO")
	require.NoError(t, err)
	assert.Equal(t, "Message not delivered: CTO can not message CEO: communication flow is not allowed", reply)

	assert.Empty(t, rec.routed)
	require.Len(t, rec.denied, 3)
	assert.ErrorIs(t, rec.denied[0], agency.ErrFlowNotAllowed)
	assert.ErrorIs(t, rec.denied[1], agency.ErrAgentNotFound)
	assert.ErrorIs(t, rec.denied[2], agency.ErrFlowNotAllowed)
}

func TestSend_MaxDepth(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// every agent delegates to the next one in the roster
	llm := newMockLLM(ctrl)
	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			if reply, ok := lastToolResponse(messages); ok {
				return textResponse(reply), nil
			}
			names := personas.Names()
			me := whoAmI(messages)
			for i, n := range names {
				if n == me && i+1 < len(names) {
					return sendMessageCall("call", names[i+1], "pass it on"), nil
				}
			}
			return textResponse("done"), nil
		}).AnyTimes()

	rec := &recorder{}
	m, err := agency.DefaultManifest()
	require.NoError(t, err)
	a, err := agency.New(m, &models{llm: llm}, newRegistry(t),
		agency.WithCallback(rec),
		agency.WithMaxDepth(2),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, a.MaxDepth())

	reply, err := a.Ask(newChatCtx("chat4"), "start")
	require.NoError(t, err)
	assert.Equal(t, "Message not delivered: depth 2: maximum delegation depth is reached", reply)
	assert.Equal(t, []string{"CEO->CTO", "CTO->AIEngineer"}, rec.routed)
	require.Len(t, rec.denied, 1)
	assert.ErrorIs(t, rec.denied[0], agency.ErrMaxDepth)
	assert.Equal(t, 0, agency.Depth(context.Background()))
}
