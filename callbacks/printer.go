package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/devagency/assistants"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/x/slices"
	"github.com/fatih/color"
)

// Printer writes the events to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	agent func(a ...any) string
	tool  func(a ...any) string
	warn  func(a ...any) string
	lock  sync.Mutex
}

// NewPrinter returns Printer without colors.
func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{
		Out:   out,
		Mode:  mode,
		agent: fmt.Sprint,
		tool:  fmt.Sprint,
		warn:  fmt.Sprint,
	}
}

// WithColor enables colored agent and tool names.
func (l *Printer) WithColor(enabled bool) *Printer {
	if enabled && !color.NoColor {
		l.agent = color.New(color.FgCyan, color.Bold).SprintFunc()
		l.tool = color.New(color.FgYellow).SprintFunc()
		l.warn = color.New(color.FgRed).SprintFunc()
	} else {
		l.agent, l.tool, l.warn = fmt.Sprint, fmt.Sprint, fmt.Sprint
	}
	return l
}

func (l *Printer) printf(format string, args ...any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, format, args...)
}

func (l *Printer) OnAssistantStart(_ context.Context, agent assistants.IAssistant, input string) {
	l.printf("Assistant Start: %s\nInput: %s\n", l.agent(agent.Name()), input)
}

func (l *Printer) OnAssistantEnd(_ context.Context, agent assistants.IAssistant, _ string, resp *llms.ContentResponse, _ []llms.Message) {
	l.printf("Assistant End: %s\n", l.agent(agent.Name()))
	if l.Mode == ModeVerbose && resp != nil {
		for _, choice := range resp.Choices {
			if choice.Content != "" {
				l.printf("%s\n", choice.Content)
			}
		}
	}
}

func (l *Printer) OnAssistantError(_ context.Context, agent assistants.IAssistant, _ string, err error, _ []llms.Message) {
	l.printf("Assistant Error: %s: %s\n", l.agent(agent.Name()), l.warn(err.Error()))
}

func (l *Printer) OnAssistantLLMParseError(_ context.Context, agent assistants.IAssistant, _ string, response string, err error) {
	l.printf("Assistant LLM Parse Error: %s: %s\nResponse: %s\n", l.agent(agent.Name()), l.warn(err.Error()), response)
}

func (l *Printer) OnAssistantLLMCallStart(_ context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	if l.Mode == ModeVerbose {
		l.printf("Assistant LLM Call: %s: %s model, %d messages\n", l.agent(agent.Name()), llm.GetName(), len(payload))
	}
}

func (l *Printer) OnAssistantLLMCallEnd(_ context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	if l.Mode == ModeVerbose {
		l.printf("Assistant LLM Call End: %s: %s model, %d choices\n", l.agent(agent.Name()), llm.GetName(), len(resp.Choices))
	}
}

func (l *Printer) OnToolStart(_ context.Context, tool tools.ITool, assistantName, input string) {
	l.printf("Tool Start: %s (%s)\n", l.tool(tool.Name()), l.agent(assistantName))
	if l.Mode == ModeVerbose {
		l.printf("Input: %s\n", input)
	}
}

func (l *Printer) OnToolEnd(_ context.Context, tool tools.ITool, assistantName, _ string, output string) {
	l.printf("Tool End: %s (%s)\n", l.tool(tool.Name()), l.agent(assistantName))
	if l.Mode == ModeVerbose {
		l.printf("Output: %s\n", output)
	}
}

func (l *Printer) OnToolError(_ context.Context, tool tools.ITool, assistantName, _ string, err error) {
	l.printf("Tool Error: %s (%s): %s\n", l.tool(tool.Name()), l.agent(assistantName), l.warn(err.Error()))
}

func (l *Printer) OnToolNotFound(_ context.Context, agent assistants.IAssistant, tool string) {
	l.printf("Tool Not Found: %s (%s)\n", l.warn(tool), l.agent(agent.Name()))
}

func (l *Printer) OnMessageRouted(_ context.Context, sender, recipient, message string) {
	l.printf("Message: %s -> %s: %s\n", l.agent(sender), l.agent(recipient), slices.StringUpto(message, 120))
}

func (l *Printer) OnMessageDenied(_ context.Context, sender, recipient string, err error) {
	l.printf("Message Denied: %s -> %s: %s\n", l.agent(sender), l.agent(recipient), l.warn(err.Error()))
}
