// Package googleai implements the Gemini provider, on the Gemini API or Vertex AI.
// See https://ai.google.dev/ for more details.
package googleai

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	"google.golang.org/genai"
)

// GoogleAI is a Gemini API model.
type GoogleAI struct {
	client *genai.Client
	opts   Options
}

var _ llms.Model = (*GoogleAI)(nil)

// New creates a new GoogleAI model.
func New(ctx context.Context, opts ...Option) (*GoogleAI, error) {
	clientOptions := DefaultOptions()
	for _, opt := range opts {
		opt(&clientOptions)
	}
	clientOptions.resolveEnv()

	cfg := &genai.ClientConfig{
		APIKey:      clientOptions.APIKey,
		Project:     clientOptions.CloudProject,
		Location:    clientOptions.CloudLocation,
		Credentials: clientOptions.Credentials,
		HTTPClient:  clientOptions.HTTPClient,
		Backend:     clientOptions.backend(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: clientOptions.BaseURL,
		},
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to create client")
	}
	return &GoogleAI{
		client: client,
		opts:   clientOptions,
	}, nil
}
