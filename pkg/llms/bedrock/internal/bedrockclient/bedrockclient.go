package bedrockclient

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
)

// InvokeModelAPI is the subset of the Bedrock runtime client used to call models.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client is a Bedrock client.
type Client struct {
	client InvokeModelAPI
}

// NewClient creates a new Bedrock client.
func NewClient(client InvokeModelAPI) *Client {
	return &Client{
		client: client,
	}
}

// getProvider returns the model vendor of a model ID or an inference profile,
// e.g. "anthropic" for "us.anthropic.claude-3-5-sonnet-20241022-v2:0".
func getProvider(modelID string) string {
	parts := strings.Split(modelID, ".")
	if len(parts) >= 2 && len(parts[0]) == 2 && strings.ToLower(parts[0]) == parts[0] {
		return parts[1]
	}
	return parts[0]
}

// CreateCompletion sends the messages to the model.
// Only Anthropic models are supported.
func (c *Client) CreateCompletion(ctx context.Context,
	modelID string,
	messages []llms.Message,
	options llms.CallOptions,
) (*llms.ContentResponse, error) {
	provider := getProvider(modelID)
	switch provider {
	case "anthropic":
		return createAnthropicCompletion(ctx, c.client, modelID, messages, options)
	default:
		return nil, errors.Newf("bedrock: unsupported provider: %q", provider)
	}
}
