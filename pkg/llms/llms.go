package llms

import (
	"context"
)

// ProviderType identifies the backend serving a Model.
type ProviderType string

// Supported providers
const (
	ProviderAnthropic  ProviderType = "ANTHROPIC"
	ProviderAzure      ProviderType = "AZURE"
	ProviderAzureAD    ProviderType = "AZURE_AD"
	ProviderBedrock    ProviderType = "BEDROCK"
	ProviderGoogleAI   ProviderType = "GOOGLEAI"
	ProviderOpenAI     ProviderType = "OPENAI"
	ProviderPerplexity ProviderType = "PERPLEXITY"
)

// Model is implemented by every chat model backend.
type Model interface {
	// GetName returns the model name used for the calls.
	GetName() string
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GenerateContent asks the model to generate content from a sequence of messages.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
}

// Capability is a bitmask of features supported by a provider.
type Capability uint64

// Capabilities
const (
	CapabilityText Capability = 1 << iota
	CapabilityJSONResponse
	CapabilityJSONSchema
	CapabilityJSONSchemaStrict
	CapabilityFunctionCalling
	CapabilityMultiToolCalling
	CapabilityVision
	CapabilitySystemPrompt
)

const capabilityToolsAndPrompt = CapabilityText |
	CapabilityJSONResponse |
	CapabilityFunctionCalling |
	CapabilityMultiToolCalling |
	CapabilitySystemPrompt

var providerCapabilities = map[ProviderType]Capability{
	ProviderOpenAI: capabilityToolsAndPrompt |
		CapabilityJSONSchema |
		CapabilityJSONSchemaStrict |
		CapabilityVision,
	ProviderAzure: capabilityToolsAndPrompt |
		CapabilityJSONSchema |
		CapabilityJSONSchemaStrict,
	ProviderAnthropic: capabilityToolsAndPrompt,
	// Bedrock is used with Anthropic models only
	ProviderBedrock:  capabilityToolsAndPrompt,
	ProviderGoogleAI: capabilityToolsAndPrompt | CapabilityVision,
	ProviderPerplexity: CapabilityText |
		CapabilitySystemPrompt |
		CapabilityJSONResponse |
		CapabilityJSONSchema,
	ProviderAzureAD: CapabilityText,
}

// ProviderCapabilities returns the capabilities of the provider.
func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

// Supports returns true if the provider supports all bits in c.
func (p ProviderType) Supports(c Capability) bool {
	return c != 0 && ProviderCapabilities(p)&c == c
}
