package callbacks

import (
	"context"

	"github.com/effective-security/devagency/assistants"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// PackageLogger writes the events to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

// NewPackageLogger returns PackageLogger.
func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnAssistantStart(ctx context.Context, agent assistants.IAssistant, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_start",
		"assistant", agent.Name(),
		"input", slices.StringUpto(input, 256),
	)
}

func (l *PackageLogger) OnAssistantEnd(ctx context.Context, agent assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_end",
		"assistant", agent.Name(),
		"messages", len(messages),
	)
	if resp == nil {
		return
	}
	for _, choice := range resp.Choices {
		if choice.Content != "" {
			l.logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", agent.Name(),
				"result", slices.StringUpto(choice.Content, 256),
			)
		}
	}
}

func (l *PackageLogger) OnAssistantError(ctx context.Context, agent assistants.IAssistant, _ string, err error, _ []llms.Message) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "assistant_error",
		"assistant", agent.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnAssistantLLMParseError(ctx context.Context, agent assistants.IAssistant, _ string, response string, err error) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "assistant_llm_parse_error",
		"assistant", agent.Name(),
		"err", err.Error(),
		"response", slices.StringUpto(response, 256),
	)
}

func (l *PackageLogger) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_llm_call_start",
		"assistant", agent.Name(),
		"model", llm.GetName(),
		"messages", len(payload),
	)
}

func (l *PackageLogger) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_llm_call_end",
		"assistant", agent.Name(),
		"model", llm.GetName(),
		"choices", len(resp.Choices),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"assistant", assistantName,
		"tool", tool.Name(),
		"input", slices.StringUpto(input, 256),
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, _ string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"assistant", assistantName,
		"tool", tool.Name(),
		"output", slices.StringUpto(output, 256),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, assistantName, _ string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"assistant", assistantName,
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "tool_not_found",
		"assistant", agent.Name(),
		"tool", tool,
	)
}

func (l *PackageLogger) OnMessageRouted(ctx context.Context, sender, recipient, message string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "message_routed",
		"sender", sender,
		"recipient", recipient,
		"message", slices.StringUpto(message, 256),
	)
}

func (l *PackageLogger) OnMessageDenied(ctx context.Context, sender, recipient string, err error) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "message_denied",
		"sender", sender,
		"recipient", recipient,
		"err", err.Error(),
	)
}
