package bedrockclient

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	anthropicllm "github.com/effective-security/devagency/pkg/llms/anthropic"
)

// Ref: https://docs.aws.amazon.com/bedrock/latest/userguide/model-parameters-anthropic-claude-messages.html

// AnthropicLatestVersion is the API version required by Bedrock.
const AnthropicLatestVersion = "bedrock-2023-05-31"

// stop reasons accepted as a complete generation
var anthropicCompletionReasons = map[string]bool{
	"end_turn":      true,
	"stop_sequence": true,
	"tool_use":      true,
}

func createAnthropicCompletion(ctx context.Context,
	client InvokeModelAPI,
	modelID string,
	messages []llms.Message,
	options llms.CallOptions,
) (*llms.ContentResponse, error) {
	body, err := anthropicRequestBody(messages, &options)
	if err != nil {
		return nil, err
	}

	resp, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Accept:      aws.String("*/*"),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to invoke model")
	}

	var output anthropic.Message
	if err = json.Unmarshal(resp.Body, &output); err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to decode response")
	}
	if len(output.Content) > 0 && !anthropicCompletionReasons[string(output.StopReason)] {
		return nil, errors.Newf("bedrock: completed due to %s, maybe try increasing max tokens", output.StopReason)
	}
	return anthropicllm.ToContentResponse(&output)
}

// anthropicRequestBody returns the Messages API body in the Bedrock flavor:
// the model is in the URL and anthropic_version is in the body.
func anthropicRequestBody(messages []llms.Message, options *llms.CallOptions) ([]byte, error) {
	params, err := anthropicllm.NewMessageParams(messages, options)
	if err != nil {
		return nil, err
	}

	js, err := json.Marshal(params)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var body map[string]any
	if err = json.Unmarshal(js, &body); err != nil {
		return nil, errors.WithStack(err)
	}
	delete(body, "model")
	body["anthropic_version"] = AnthropicLatestVersion

	js, err = json.Marshal(body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return js, nil
}
