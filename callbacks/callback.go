// Package callbacks provides the event handlers of the agency runs:
// terminal printer, structured logger, fan-out and per-chat transcript.
package callbacks

import (
	"context"

	"github.com/effective-security/devagency/agency"
	"github.com/effective-security/devagency/assistants"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/tools"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ agency.Callback = (*Noop)(nil)
	_ agency.Callback = (*Printer)(nil)
	_ agency.Callback = (*PackageLogger)(nil)
	_ agency.Callback = (*Fanout)(nil)
	_ agency.Callback = (*Transcript)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault prints the events
	ModeDefault Mode = iota
	// ModeVerbose prints the events with the content
	ModeVerbose
)

// Fanout forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []agency.Callback
}

// NewFanout returns Fanout.
func NewFanout(callbacks ...agency.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

// Add appends a callback.
func (l *Fanout) Add(callback agency.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnAssistantStart(ctx context.Context, agent assistants.IAssistant, input string) {
	for _, callback := range l.callbacks {
		callback.OnAssistantStart(ctx, agent, input)
	}
}

func (l *Fanout) OnAssistantEnd(ctx context.Context, agent assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnAssistantEnd(ctx, agent, input, resp, messages)
	}
}

func (l *Fanout) OnAssistantError(ctx context.Context, agent assistants.IAssistant, input string, err error, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnAssistantError(ctx, agent, input, err, messages)
	}
}

func (l *Fanout) OnAssistantLLMParseError(ctx context.Context, agent assistants.IAssistant, input string, response string, err error) {
	for _, callback := range l.callbacks {
		callback.OnAssistantLLMParseError(ctx, agent, input, response, err)
	}
}

func (l *Fanout) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnAssistantLLMCallStart(ctx, agent, llm, payload)
	}
}

func (l *Fanout) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnAssistantLLMCallEnd(ctx, agent, llm, resp)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, assistantName, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, assistantName, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, assistantName, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, agent, tool)
	}
}

func (l *Fanout) OnMessageRouted(ctx context.Context, sender, recipient, message string) {
	for _, callback := range l.callbacks {
		callback.OnMessageRouted(ctx, sender, recipient, message)
	}
}

func (l *Fanout) OnMessageDenied(ctx context.Context, sender, recipient string, err error) {
	for _, callback := range l.callbacks {
		callback.OnMessageDenied(ctx, sender, recipient, err)
	}
}

// Noop does nothing.
type Noop struct{}

// NewNoop returns Noop.
func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnAssistantStart(context.Context, assistants.IAssistant, string) {}
func (l *Noop) OnAssistantEnd(context.Context, assistants.IAssistant, string, *llms.ContentResponse, []llms.Message) {
}
func (l *Noop) OnAssistantError(context.Context, assistants.IAssistant, string, error, []llms.Message) {
}
func (l *Noop) OnAssistantLLMParseError(context.Context, assistants.IAssistant, string, string, error) {
}
func (l *Noop) OnAssistantLLMCallStart(context.Context, assistants.IAssistant, llms.Model, []llms.Message) {
}
func (l *Noop) OnAssistantLLMCallEnd(context.Context, assistants.IAssistant, llms.Model, *llms.ContentResponse) {
}
func (l *Noop) OnToolStart(context.Context, tools.ITool, string, string)        {}
func (l *Noop) OnToolEnd(context.Context, tools.ITool, string, string, string)  {}
func (l *Noop) OnToolError(context.Context, tools.ITool, string, string, error) {}
func (l *Noop) OnToolNotFound(context.Context, assistants.IAssistant, string)   {}
func (l *Noop) OnMessageRouted(context.Context, string, string, string)         {}
func (l *Noop) OnMessageDenied(context.Context, string, string, error)          {}
