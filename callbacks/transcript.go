package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/devagency/assistants"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/llmutils"
	"github.com/effective-security/devagency/tools"
)

// TimeNowFn is used for the transcript timestamps.
var TimeNowFn = time.Now

// metadata key for the run ID, shared by all threads of the chat
const metadataRunKey = "transcript_run"

// RunStats is the summary of one agency run.
type RunStats struct {
	ChatID string
	RunID  string

	Duration                time.Duration
	TotalMessages           uint32
	LLMBytesOut             uint64
	LLMBytesIn              uint64
	LLMInputTokens          uint64
	LLMOutputTokens         uint64
	LLMTotalTokens          uint64
	AssistantCalls          uint32
	AssistantCallsSucceeded uint32
	AssistantCallsFailed    uint32
	AssistantLLMCalls       uint32
	ToolsCalls              uint32
	ToolsCallsSucceeded     uint32
	ToolsCallsFailed        uint32
	ToolNotFound            uint32
	MessagesRouted          uint32
	MessagesDenied          uint32
}

// Transcript records the events of a run, including the events of the
// agent threads started from it.
type Transcript struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

// NewTranscript returns Transcript.
func NewTranscript(mode Mode) *Transcript {
	return &Transcript{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// StartRun starts recording the events for the chat in the context.
func (l *Transcript) StartRun(ctx context.Context) {
	chatCtx := chatmodel.GetChatContext(ctx)
	if chatCtx == nil {
		return
	}

	r := &run{
		stats: RunStats{
			ChatID: chatCtx.GetChatID(),
			RunID:  chatCtx.RunID(),
		},
		started: TimeNowFn(),
	}
	chatCtx.SetMetadata(metadataRunKey, r.stats.RunID)

	l.lock.Lock()
	l.runs[r.stats.RunID] = r
	l.lock.Unlock()

	r.print(chatCtx, "*** Run Started ***")
}

// EndRun stops recording and returns the stats and the transcript,
// or nil if the run was not started.
func (l *Transcript) EndRun(ctx context.Context) (*RunStats, []byte) {
	r := l.getRun(ctx)
	if r == nil {
		return nil, nil
	}
	chatCtx := chatmodel.GetChatContext(ctx)

	stats := r.snapshot()
	stats.Duration = TimeNowFn().Sub(r.started)

	r.print(chatCtx, fmt.Sprintf("Assistant calls: %d, Failed: %d",
		stats.AssistantCalls,
		stats.AssistantCallsFailed,
	))
	r.print(chatCtx, fmt.Sprintf("Tool calls: %d, Failed: %d, Not Found: %d",
		stats.ToolsCalls,
		stats.ToolsCallsFailed,
		stats.ToolNotFound,
	))
	r.print(chatCtx, fmt.Sprintf("Messages routed: %d, Denied: %d",
		stats.MessagesRouted,
		stats.MessagesDenied,
	))
	r.print(chatCtx, fmt.Sprintf("LLM calls: %d, Messages: %d, Bytes Out: %d, Bytes In: %d, Input Tokens: %d, Output Tokens: %d, Total Tokens: %d",
		stats.AssistantLLMCalls,
		stats.TotalMessages,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
		stats.LLMInputTokens,
		stats.LLMOutputTokens,
		stats.LLMTotalTokens,
	))
	r.print(chatCtx, fmt.Sprintf("*** Run Ended. Duration: %s ***", stats.Duration))

	l.lock.Lock()
	delete(l.runs, stats.RunID)
	l.lock.Unlock()

	return &stats, r.bytes()
}

func (l *Transcript) getRun(ctx context.Context) *run {
	chatCtx := chatmodel.GetChatContext(ctx)
	if chatCtx == nil {
		return nil
	}
	v, ok := chatCtx.GetMetadata(metadataRunKey)
	if !ok {
		return nil
	}
	runID, _ := v.(string)

	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[runID]
}

func (l *Transcript) OnAssistantStart(ctx context.Context, agent assistants.IAssistant, input string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.AssistantCalls, 1)
	r.print(chatmodel.GetChatContext(ctx), agent.Name(), "*** Assistant Start ***")
	r.print(chatmodel.GetChatContext(ctx), agent.Name(), "Input:", input)
}

func (l *Transcript) OnAssistantEnd(ctx context.Context, agent assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	chatCtx := chatmodel.GetChatContext(ctx)
	atomic.AddUint32(&r.stats.AssistantCallsSucceeded, 1)
	atomic.AddUint64(&r.stats.LLMBytesIn, llmutils.CountResponseContentSize(resp))

	if l.mode == ModeVerbose {
		if resp != nil {
			r.print(chatCtx, agent.Name(), "Output:")
			for _, choice := range resp.Choices {
				if choice.Content != "" {
					r.print(chatCtx, choice.Content)
				}
			}
		}
		r.print(chatCtx, agent.Name(), printMessages(messages))
	}
	r.print(chatCtx, agent.Name(), "*** Assistant End ***")
}

func (l *Transcript) OnAssistantError(ctx context.Context, agent assistants.IAssistant, _ string, err error, messages []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	chatCtx := chatmodel.GetChatContext(ctx)
	atomic.AddUint32(&r.stats.AssistantCallsFailed, 1)
	r.print(chatCtx, agent.Name(), "*** Error ***", err.Error())
	r.print(chatCtx, agent.Name(), printMessages(messages))
}

func (l *Transcript) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	chatCtx := chatmodel.GetChatContext(ctx)
	count := uint32(len(payload))
	atomic.AddUint64(&r.stats.LLMBytesOut, llmutils.CountMessagesContentSize(payload))
	atomic.AddUint32(&r.stats.AssistantLLMCalls, 1)
	atomic.AddUint32(&r.stats.TotalMessages, count)

	r.print(chatCtx, agent.Name(), "*** LLM Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), count))
	if l.mode == ModeVerbose {
		r.print(chatCtx, agent.Name(), printMessages(payload))
	}
}

func (l *Transcript) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	atomic.AddUint64(&r.stats.LLMInputTokens, uint64(tokensIn))
	atomic.AddUint64(&r.stats.LLMOutputTokens, uint64(tokensOut))
	atomic.AddUint64(&r.stats.LLMTotalTokens, uint64(tokensTotal))

	r.print(chatmodel.GetChatContext(ctx), agent.Name(), "*** LLM Call End ***",
		fmt.Sprintf("%s model, %d input tokens, %d output tokens, %d total tokens", llm.GetName(), tokensIn, tokensOut, tokensTotal))
}

func (l *Transcript) OnAssistantLLMParseError(ctx context.Context, agent assistants.IAssistant, _ string, response string, err error) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	chatCtx := chatmodel.GetChatContext(ctx)
	atomic.AddUint32(&r.stats.AssistantCallsFailed, 1)
	r.print(chatCtx, agent.Name(), "*** LLM Parse Error ***", err.Error())
	r.print(chatCtx, "Response:", response)
}

func (l *Transcript) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	chatCtx := chatmodel.GetChatContext(ctx)
	atomic.AddUint32(&r.stats.ToolsCalls, 1)
	r.print(chatCtx, assistantName, tool.Name(), "*** Tool Start ***")
	r.print(chatCtx, assistantName, tool.Name(), "Input:", input)
}

func (l *Transcript) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, _ string, output string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	chatCtx := chatmodel.GetChatContext(ctx)
	atomic.AddUint32(&r.stats.ToolsCallsSucceeded, 1)
	if l.mode == ModeVerbose {
		r.print(chatCtx, assistantName, tool.Name(), "Output:", output)
	}
	r.print(chatCtx, assistantName, tool.Name(), "*** Tool End ***")
}

func (l *Transcript) OnToolError(ctx context.Context, tool tools.ITool, assistantName, _ string, err error) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolsCallsFailed, 1)
	r.print(chatmodel.GetChatContext(ctx), assistantName, tool.Name(), "*** Tool Error ***", err.Error())
}

func (l *Transcript) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolNotFound, 1)
	r.print(chatmodel.GetChatContext(ctx), agent.Name(), "*** Tool Not Found ***", tool)
}

func (l *Transcript) OnMessageRouted(ctx context.Context, sender, recipient, message string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.MessagesRouted, 1)
	r.print(chatmodel.GetChatContext(ctx), sender, "->", recipient, "*** Message ***")
	if l.mode == ModeVerbose {
		r.print(chatmodel.GetChatContext(ctx), message)
	}
}

func (l *Transcript) OnMessageDenied(ctx context.Context, sender, recipient string, err error) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.MessagesDenied, 1)
	r.print(chatmodel.GetChatContext(ctx), sender, "->", recipient, "*** Message Denied ***", err.Error())
}

func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		textParts := 0
		toolParts := 0
		toolResponseParts := 0
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				textParts++
			case llms.ToolCall:
				toolParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			case llms.ToolCallResponse:
				toolResponseParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			}
		}
		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", textParts, toolParts, toolResponseParts)
	}
	return buf.String()
}

type run struct {
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   RunStats
}

func (r *run) snapshot() RunStats {
	r.lock.Lock()
	defer r.lock.Unlock()
	s := r.stats
	return s
}

func (r *run) bytes() []byte {
	r.lock.Lock()
	defer r.lock.Unlock()
	return bytes.Clone(r.w.Bytes())
}

// print writes one line: "<timestamp> <chatID>.<runID> entry entry"
func (r *run) print(chatCtx chatmodel.ChatContext, entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ts := TimeNowFn().Format("2006-01-02 15:04:05")

	_, _ = r.w.WriteString(ts)
	_, _ = r.w.WriteString(" ")
	if chatCtx != nil {
		_, _ = r.w.WriteString(chatCtx.GetChatID())
		_, _ = r.w.WriteString(".")
		_, _ = r.w.WriteString(chatCtx.RunID())
		_, _ = r.w.WriteString(" ")
	}
	_, _ = r.w.WriteString(strings.Join(entries, " "))
	_, _ = r.w.WriteString("\n")
}
