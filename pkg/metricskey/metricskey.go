package metricskey

import "github.com/effective-security/metrics"

func counter(name, help string, tags ...string) metrics.Describe {
	return metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         name,
		Help:         name + " " + help,
		RequiredTags: tags,
	}
}

func sample(name, help string, tags ...string) metrics.Describe {
	return metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         name,
		Help:         name + " " + help,
		RequiredTags: tags,
	}
}

// LLM traffic, tagged by agent and model
var (
	StatsLLMMessagesSent  = counter("stats_llm_messages_sent", "counts messages sent to LLM", "agent", "model")
	StatsLLMBytesSent     = counter("stats_llm_bytes_sent", "counts bytes sent to LLM", "agent", "model")
	StatsLLMBytesReceived = counter("stats_llm_bytes_received", "counts bytes received from LLM", "agent", "model")
	StatsLLMBytesTotal    = counter("stats_llm_bytes_total", "counts bytes sent to and received from LLM", "agent", "model")
	StatsLLMInputTokens   = counter("stats_llm_input_tokens", "counts input tokens reported by LLM", "agent", "model")
	StatsLLMOutputTokens  = counter("stats_llm_output_tokens", "counts output tokens reported by LLM", "agent", "model")
	StatsLLMTotalTokens   = counter("stats_llm_total_tokens", "counts total tokens reported by LLM", "agent", "model")
)

// Assistant runs
var (
	StatsAssistantCallsSucceeded = counter("stats_assistant_calls_succeeded", "counts succeeded assistant runs", "agent")
	StatsAssistantCallsFailed    = counter("stats_assistant_calls_failed", "counts failed assistant runs", "agent")
	StatsAssistantCallsRetried   = counter("stats_assistant_calls_retried", "counts LLM calls retried on empty response", "agent")
	StatsAssistantLLMParseErrors = counter("stats_assistant_llm_parse_errors", "counts LLM responses that failed to parse", "agent")

	PerfAssistantCall = sample("perf_assistant_call", "provides duration of assistant run", "agent")
)

// Tools
var (
	StatsToolCallsSucceeded = counter("stats_tool_calls_succeeded", "counts succeeded tool calls", "tool")
	StatsToolCallsFailed    = counter("stats_tool_calls_failed", "counts failed tool calls", "tool")
	StatsToolCallsNotFound  = counter("stats_tool_calls_not_found", "counts calls of unknown tools", "tool")

	StatsArtifactInvalidSelector = counter("stats_artifact_invalid_selector", "counts artifact tool calls with unknown selector", "tool")

	PerfToolCall = sample("perf_tool_call", "provides duration of tool call", "tool")
)

// Agency routing
var (
	StatsAgencyMessagesRouted = counter("stats_agency_messages_routed", "counts messages delivered between agents", "sender", "recipient")
	StatsAgencyMessagesDenied = counter("stats_agency_messages_denied", "counts messages rejected by communication flows", "sender", "recipient")

	PerfAgencyMessage = sample("perf_agency_message", "provides duration of a message exchange between agents", "sender", "recipient")
	PerfAgencyAsk     = sample("perf_agency_ask", "provides duration of a user request to the agency", "tenant")
)

// Metrics returns slice of metrics from this repo,
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfAgencyAsk,
	&PerfAgencyMessage,
	&PerfAssistantCall,
	&PerfToolCall,
	&StatsAgencyMessagesDenied,
	&StatsAgencyMessagesRouted,
	&StatsArtifactInvalidSelector,
	&StatsAssistantCallsFailed,
	&StatsAssistantCallsRetried,
	&StatsAssistantCallsSucceeded,
	&StatsAssistantLLMParseErrors,
	&StatsLLMBytesReceived,
	&StatsLLMBytesSent,
	&StatsLLMBytesTotal,
	&StatsLLMInputTokens,
	&StatsLLMMessagesSent,
	&StatsLLMOutputTokens,
	&StatsLLMTotalTokens,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
