package bedrock

import (
	"github.com/effective-security/devagency/pkg/llms/bedrock/internal/bedrockclient"
)

// Anthropic models served by Bedrock. The "us." prefix is a cross-region
// inference profile.
const (
	ModelAnthropicClaudeV3Haiku     = "anthropic.claude-3-haiku-20240307-v1:0"
	ModelAnthropicClaudeV35Sonnet   = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	ModelAnthropicClaudeV35SonnetV2 = "us.anthropic.claude-3-5-sonnet-20241022-v2:0"
	ModelAnthropicClaudeV37Sonnet   = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"
	ModelAnthropicClaudeV4Sonnet    = "us.anthropic.claude-sonnet-4-20250514-v1:0"
)

// ModelEnvVarName overrides the default model.
const ModelEnvVarName = "BEDROCK_MODEL_ID"

// Option is an option for the Bedrock LLM.
type Option func(*options)

type options struct {
	modelID string
	region  string
	profile string
	client  bedrockclient.InvokeModelAPI
}

// WithModel sets the model ID.
func WithModel(modelID string) Option {
	return func(o *options) {
		if modelID != "" {
			o.modelID = modelID
		}
	}
}

// WithRegion sets the AWS region, otherwise it comes from the AWS environment.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithProfile selects a shared config profile.
func WithProfile(profile string) Option {
	return func(o *options) {
		o.profile = profile
	}
}

// WithClient sets the Bedrock runtime client used instead of one
// loaded from the AWS config.
func WithClient(client bedrockclient.InvokeModelAPI) Option {
	return func(o *options) {
		o.client = client
	}
}
