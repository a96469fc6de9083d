package bedrock

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/llms/bedrock/internal/bedrockclient"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency/pkg/llms", "bedrock")

// LLM runs Anthropic models on AWS Bedrock.
type LLM struct {
	modelID string
	client  *bedrockclient.Client
}

var _ llms.Model = (*LLM)(nil)

// New returns the Bedrock model. Unless WithClient is given, the runtime
// client is built from the AWS default config chain.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		modelID: values.StringsCoalesce(os.Getenv(ModelEnvVarName), ModelAnthropicClaudeV4Sonnet),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		rt, err := loadRuntime(context.Background(), o)
		if err != nil {
			return nil, err
		}
		o.client = rt
	}

	return &LLM{
		modelID: o.modelID,
		client:  bedrockclient.NewClient(o.client),
	}, nil
}

func loadRuntime(ctx context.Context, o *options) (*bedrockruntime.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to load AWS config")
	}
	logger.KV(xlog.DEBUG, "region", cfg.Region, "model", o.modelID)
	return bedrockruntime.NewFromConfig(cfg), nil
}

// GetName implements the Model interface.
func (l *LLM) GetName() string {
	return l.modelID
}

// GetProviderType implements the Model interface.
func (l *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderBedrock
}

// GenerateContent implements llms.Model.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	opts.Model = values.StringsCoalesce(opts.Model, l.modelID)
	return l.client.CreateCompletion(ctx, opts.Model, messages, opts)
}
