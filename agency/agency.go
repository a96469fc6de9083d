// Package agency runs a team of agents that talk to each other through
// directed communication flows.
//
// The user talks to the entry agent. An agent delegates work with the
// `send_message` tool, which is limited to the recipients allowed by the
// flows. Every (sender, recipient) pair has its own conversation thread in
// the message store.
package agency

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/assistants"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/encoding"
	"github.com/effective-security/devagency/personas"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/metricskey"
	"github.com/effective-security/devagency/pkg/prompts"
	"github.com/effective-security/devagency/store"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency", "agency")

// UserSender is the sender name of the user messages.
const UserSender = "user"

// Errors
var (
	// ErrAgentNotFound is returned for an unknown agent name.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrFlowNotAllowed is returned when the sender can not message the recipient.
	ErrFlowNotAllowed = errors.New("communication flow is not allowed")
	// ErrMaxDepth is returned when the delegation chain is too long.
	ErrMaxDepth = errors.New("maximum delegation depth is reached")
)

// ModelProvider returns the LLM of an agent.
// llmfactory.Factory implements it.
type ModelProvider interface {
	AssistantModel(assistantName string, preferredModels ...string) (llms.Model, error)
}

// Flow is a directed communication channel.
type Flow struct {
	Sender    string `json:"sender" yaml:"sender"`
	Recipient string `json:"recipient" yaml:"recipient"`
}

func (f Flow) String() string {
	return f.Sender + "->" + f.Recipient
}

// AgentInfo describes a running agent.
type AgentInfo struct {
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description" yaml:"description"`
	Tools           []string `json:"tools" yaml:"tools"`
	Recipients      []string `json:"recipients,omitempty" yaml:"recipients,omitempty"`
	Temperature     float64  `json:"temperature" yaml:"temperature"`
	MaxPromptTokens int      `json:"max_prompt_tokens" yaml:"max_prompt_tokens"`
	Model           string   `json:"model" yaml:"model"`
	Entry           bool     `json:"entry,omitempty" yaml:"entry,omitempty"`
}

type askFunc func(ctx context.Context, input string) (string, error)

type agent struct {
	info      AgentInfo
	assistant assistants.IAssistant
	ask       askFunc
}

// Option configures the Agency.
type Option func(*Agency)

// WithStore sets the store of the conversation threads.
func WithStore(st store.MessageStore) Option {
	return func(a *Agency) {
		a.store = st
	}
}

// WithCallback sets the handler of the agent and routing events.
func WithCallback(cb Callback) Option {
	return func(a *Agency) {
		a.callback = cb
	}
}

// WithMaxDepth overrides the maximum delegation depth of the manifest.
func WithMaxDepth(depth int) Option {
	return func(a *Agency) {
		if depth > 0 {
			a.maxDepth = depth
		}
	}
}

// Agency is a team of agents.
type Agency struct {
	name      string
	entry     string
	maxDepth  int
	mode      encoding.Mode
	manifesto string

	order      []string
	agents     map[string]*agent
	flows      []Flow
	recipients map[string][]string
	// descriptions by agent name
	descriptions map[string]string

	store    store.MessageStore
	callback Callback
}

// New returns the agency described by the manifest. The tools of the agents
// must be registered, optional tools are attached when registered.
func New(m *Manifest, models ModelProvider, registry *tools.Registry, opts ...Option) (*Agency, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	a := &Agency{
		name:         m.Name,
		entry:        m.Entry,
		maxDepth:     m.MaxDepth,
		mode:         m.Defaults.Mode,
		order:        m.AgentNames(),
		agents:       make(map[string]*agent, len(m.Agents)),
		recipients:   make(map[string][]string, len(m.Agents)),
		descriptions: make(map[string]string, len(m.Agents)),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxDepth <= 0 {
		a.maxDepth = DefaultMaxDepth
	}

	a.flows = m.CommunicationFlows()
	for _, f := range a.flows {
		a.recipients[f.Sender] = append(a.recipients[f.Sender], f.Recipient)
	}

	team := make([]personas.Member, len(m.Agents))
	for i, am := range m.Agents {
		team[i] = personas.Member{Name: am.Name, Description: am.Description}
		a.descriptions[am.Name] = am.Description
	}
	manifesto, err := personas.Manifesto(a.name, team)
	if err != nil {
		return nil, err
	}
	a.manifesto = manifesto

	for _, am := range m.Agents {
		ag, err := a.newAgent(m, am, models, registry)
		if err != nil {
			return nil, err
		}
		a.agents[am.Name] = ag
	}

	logger.KV(xlog.DEBUG,
		"status", "created",
		"agency", a.name,
		"agents", len(a.order),
		"flows", len(a.flows),
	)
	return a, nil
}

func (a *Agency) newAgent(m *Manifest, am *AgentManifest, models ModelProvider, registry *tools.Registry) (*agent, error) {
	list, err := registry.Lookup(am.Tools...)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidManifest, "agent %q: %s", am.Name, err.Error())
	}
	for _, name := range am.OptionalTools {
		if t, ok := registry.Get(name); ok {
			list = append(list, t)
		} else {
			logger.KV(xlog.DEBUG,
				"status", "optional_tool_not_registered",
				"agent", am.Name,
				"tool", name,
			)
		}
	}

	recipients := a.recipients[am.Name]
	if len(recipients) > 0 {
		sm, err := newSendMessage(a, am.Name, recipients)
		if err != nil {
			return nil, err
		}
		list = append(list, sm)
	}

	var preferred []string
	if am.Model != "" {
		preferred = append(preferred, am.Model)
	}
	llm, err := models.AssistantModel(am.Name, preferred...)
	if err != nil {
		return nil, errors.WithMessagef(err, "agent %q: unable to create LLM", am.Name)
	}

	toolNames := make([]string, len(list))
	for i, t := range list {
		toolNames[i] = t.Name()
	}

	info := AgentInfo{
		Name:            am.Name,
		Description:     am.Description,
		Tools:           toolNames,
		Recipients:      slices.Clone(recipients),
		Temperature:     m.Defaults.GetTemperature(),
		MaxPromptTokens: am.MaxPromptTokens,
		Model:           llm.GetName(),
		Entry:           am.Name == m.Entry,
	}

	if am.Temperature != nil {
		info.Temperature = *am.Temperature
	}

	opts := []assistants.Option{
		assistants.WithMode(a.mode),
		assistants.WithTemperature(info.Temperature),
		assistants.WithMaxLength(info.MaxPromptTokens * BytesPerToken),
		// the recipients keep their own threads, the replies are enough
		assistants.WithSkipToolHistory(true),
	}
	if a.store != nil {
		opts = append(opts, assistants.WithStore(a.store))
	}
	if a.callback != nil {
		opts = append(opts, assistants.WithCallback(a.callback))
	}

	sysprompt := prompts.StaticPrompt(a.systemPrompt(am))

	ag := &agent{info: info}
	if a.mode == encoding.ModePlainText {
		ag.assistant, ag.ask = newRunner[chatmodel.String](llm, sysprompt, info, list, opts)
	} else {
		ag.assistant, ag.ask = newRunner[chatmodel.OutputResult](llm, sysprompt, info, list, opts)
	}
	return ag, nil
}

func newRunner[O chatmodel.ContentProvider](llm llms.Model, sysprompt prompts.FormatPrompter, info AgentInfo, list []tools.ITool, opts []assistants.Option) (assistants.IAssistant, askFunc) {
	as := assistants.NewAssistant[O](llm, sysprompt, opts...).
		WithName(info.Name).
		WithDescription(info.Description).
		WithTools(list...)
	return as, func(ctx context.Context, input string) (string, error) {
		return assistants.Ask[O](ctx, as, &assistants.CallInput{Input: input})
	}
}

// systemPrompt is the manifesto, the agent instructions and the list of
// the agents it can message.
func (a *Agency) systemPrompt(am *AgentManifest) string {
	var sb strings.Builder
	sb.WriteString(a.manifesto)
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(am.instructions))
	sb.WriteString("\n\n# COMMUNICATION\n")

	recipients := a.recipients[am.Name]
	if len(recipients) == 0 {
		sb.WriteString("You can not message other agents, answer the sender directly.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "You are %s. You can send messages with the `%s` tool to:\n", am.Name, SendMessageToolName)
	for _, r := range recipients {
		fmt.Fprintf(&sb, "- `%s`: %s\n", r, a.descriptions[r])
	}
	return sb.String()
}

type contextKey int

const (
	keyDepth contextKey = iota
	keyRootChat
)

// Depth returns the number of delegations that led to the current run,
// zero for a user request.
func Depth(ctx context.Context) int {
	d, _ := ctx.Value(keyDepth).(int)
	return d
}

// rootChatID returns the chat of the user request.
func rootChatID(ctx context.Context) (string, error) {
	if id, ok := ctx.Value(keyRootChat).(string); ok && id != "" {
		return id, nil
	}
	_, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return chatID, nil
}

// ThreadID returns the chat ID of the conversation between sender and
// recipient, started by the user request in chatID.
func ThreadID(chatID, sender, recipient string) string {
	return chatID + "/" + sender + "->" + recipient
}

// Name returns the name of the agency.
func (a *Agency) Name() string {
	return a.name
}

// Entry returns the name of the agent that receives the user messages.
func (a *Agency) Entry() string {
	return a.entry
}

// MaxDepth returns the maximum delegation depth.
func (a *Agency) MaxDepth() int {
	return a.maxDepth
}

// Agents returns the agents in manifest order.
func (a *Agency) Agents() []AgentInfo {
	res := make([]AgentInfo, 0, len(a.order))
	for _, name := range a.order {
		res = append(res, a.agents[name].info.clone())
	}
	return res
}

// Agent returns the agent by name.
func (a *Agency) Agent(name string) (AgentInfo, error) {
	ag, ok := a.agents[name]
	if !ok {
		return AgentInfo{}, errors.Wrapf(ErrAgentNotFound, "%q", name)
	}
	return ag.info.clone(), nil
}

// Assistant returns the assistant running the agent.
func (a *Agency) Assistant(name string) (assistants.IAssistant, error) {
	ag, ok := a.agents[name]
	if !ok {
		return nil, errors.Wrapf(ErrAgentNotFound, "%q", name)
	}
	return ag.assistant, nil
}

func (i AgentInfo) clone() AgentInfo {
	i.Tools = slices.Clone(i.Tools)
	i.Recipients = slices.Clone(i.Recipients)
	return i
}

// Flows returns the communication flows in manifest order.
func (a *Agency) Flows() []Flow {
	return slices.Clone(a.flows)
}

// Recipients returns the agents the sender can message.
func (a *Agency) Recipients(sender string) []string {
	return slices.Clone(a.recipients[sender])
}

// CanSend returns true when a flow allows the sender to message the recipient.
func (a *Agency) CanSend(sender, recipient string) bool {
	return slices.Contains(a.recipients[sender], recipient)
}

// Ask sends the user message to the entry agent and returns its reply.
// The context must have a chat context, see chatmodel.WithChatContext.
func (a *Agency) Ask(ctx context.Context, message string) (string, error) {
	return a.AskAgent(ctx, a.entry, message)
}

// AskAgent sends the user message to the agent and returns its reply.
func (a *Agency) AskAgent(ctx context.Context, name, message string) (string, error) {
	ag, ok := a.agents[name]
	if !ok {
		return "", errors.Wrapf(ErrAgentNotFound, "%q", name)
	}
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return "", errors.WithStack(err)
	}

	started := time.Now()
	defer metricskey.PerfAgencyAsk.MeasureSince(started, tenantID)

	threadCtx, err := a.threadContext(ctx, chatID, UserSender, name, 0)
	if err != nil {
		return "", err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "ask",
		"agent", name,
		"chat_id", chatID,
	)
	return ag.ask(threadCtx, message)
}

// Send delivers the message from sender to recipient and returns the reply.
// The recipient runs on the thread of the pair, one level deeper than the
// sender.
func (a *Agency) Send(ctx context.Context, sender, recipient, message string) (string, error) {
	ag, ok := a.agents[recipient]
	if !ok {
		return "", a.denied(ctx, sender, recipient, errors.Wrapf(ErrAgentNotFound, "%q", recipient))
	}
	if !a.CanSend(sender, recipient) {
		return "", a.denied(ctx, sender, recipient, errors.Wrapf(ErrFlowNotAllowed, "%s can not message %s", sender, recipient))
	}
	depth := Depth(ctx) + 1
	if depth > a.maxDepth {
		return "", a.denied(ctx, sender, recipient, errors.Wrapf(ErrMaxDepth, "depth %d", a.maxDepth))
	}

	rootID, err := rootChatID(ctx)
	if err != nil {
		return "", err
	}
	threadCtx, err := a.threadContext(ctx, rootID, sender, recipient, depth)
	if err != nil {
		return "", err
	}

	metricskey.StatsAgencyMessagesRouted.IncrCounter(1, sender, recipient)
	if a.callback != nil {
		a.callback.OnMessageRouted(ctx, sender, recipient, message)
	}
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "message_routed",
		"sender", sender,
		"recipient", recipient,
		"depth", depth,
	)

	started := time.Now()
	defer metricskey.PerfAgencyMessage.MeasureSince(started, sender, recipient)

	return ag.ask(threadCtx, message)
}

func (a *Agency) denied(ctx context.Context, sender, recipient string, err error) error {
	metricskey.StatsAgencyMessagesDenied.IncrCounter(1, sender, recipient)
	if a.callback != nil {
		a.callback.OnMessageDenied(ctx, sender, recipient, err)
	}
	logger.ContextKV(ctx, xlog.WARNING,
		"status", "message_denied",
		"sender", sender,
		"recipient", recipient,
		"err", err.Error(),
	)
	return err
}

// threadContext returns the context of the (sender, recipient) thread.
func (a *Agency) threadContext(ctx context.Context, rootID, sender, recipient string, depth int) (context.Context, error) {
	threadCtx, err := chatmodel.WithChatID(ctx, ThreadID(rootID, sender, recipient))
	if err != nil {
		return nil, err
	}
	threadCtx = context.WithValue(threadCtx, keyRootChat, rootID)
	threadCtx = context.WithValue(threadCtx, keyDepth, depth)

	if a.store != nil {
		err = a.store.UpdateChat(threadCtx, sender+" -> "+recipient, map[string]any{
			"agency":    a.name,
			"root_chat": rootID,
			"sender":    sender,
			"recipient": recipient,
		})
		if err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"status", "failed_to_update_chat",
				"sender", sender,
				"recipient", recipient,
				"err", err.Error(),
			)
		}
	}
	return threadCtx, nil
}

// Chart returns a text rendering of the communication flows.
func (a *Agency) Chart() string {
	return chart(a.name, a.entry, a.order, a.recipients)
}

func chart(name, entry string, order []string, recipients map[string][]string) string {
	width := len(UserSender)
	for _, n := range order {
		width = max(width, len(n))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", name)
	fmt.Fprintf(&sb, "%-*s --> %s\n", width, UserSender, entry)
	for _, n := range order {
		list := recipients[n]
		if len(list) == 0 {
			fmt.Fprintf(&sb, "%-*s  (no outgoing flows)\n", width, n)
			continue
		}
		fmt.Fprintf(&sb, "%-*s --> %s\n", width, n, strings.Join(list, ", "))
	}
	return sb.String()
}
