package googleai

import (
	"context"
	"encoding/json"
	"mime"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/llms/googleai/internal/genaiutils"
	"google.golang.org/genai"
)

var (
	ErrNoContentInResponse   = errors.New("googleai: no content in generation response")
	ErrUnknownPartInResponse = errors.New("googleai: unknown part type in generation response")
)

const (
	CITATIONS = "citations"
	SAFETY    = "safety"

	RoleModel = "model"
	RoleUser  = "user"

	ResponseMIMETypeJSON = "application/json"
)

// GetName implements the Model interface.
func (g *GoogleAI) GetName() string {
	return g.opts.DefaultModel
}

// GetProviderType implements the Model interface.
func (g *GoogleAI) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// GenerateContent implements the [llms.Model] interface.
func (g *GoogleAI) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model:       g.opts.DefaultModel,
		MaxTokens:   g.opts.DefaultMaxTokens,
		Temperature: g.opts.DefaultTemperature,
		TopP:        g.opts.DefaultTopP,
		TopK:        g.opts.DefaultTopK,
	}
	for _, opt := range options {
		opt(&opts)
	}

	callCfg := &genai.GenerateContentConfig{
		StopSequences:   opts.StopWords,
		CandidateCount:  int32(g.opts.DefaultCandidateCount),
		MaxOutputTokens: int32(opts.MaxTokens),
		Temperature:     genaiutils.Float32Ptr(float32(opts.Temperature)),
		TopP:            genaiutils.Float32Ptr(float32(opts.TopP)),
		TopK:            genaiutils.Float32Ptr(float32(opts.TopK)),
		Seed:            genaiutils.Int32Ptr(int32(opts.Seed)),
	}

	threshold := g.opts.HarmThreshold
	for _, category := range []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
	} {
		callCfg.SafetySettings = append(callCfg.SafetySettings, &genai.SafetySetting{
			Category:  category,
			Threshold: threshold,
		})
	}

	var err error
	if callCfg.Tools, err = genaiutils.ConvertTools(opts.Tools); err != nil {
		return nil, err
	}
	if len(callCfg.Tools) > 0 {
		callCfg.ToolConfig = toToolConfig(opts.ToolChoice)
	}

	// Gemini does not allow a response schema together with function calling
	if len(callCfg.Tools) == 0 && opts.ResponseFormat != nil {
		switch opts.ResponseFormat.Type {
		case "json_object", "json_schema":
			callCfg.ResponseMIMEType = ResponseMIMETypeJSON
			callCfg.ResponseSchema, err = genaiutils.ConvertResponseFormatJSONSchema(opts.ResponseFormat.JSONSchema)
			if err != nil {
				return nil, err
			}
		}
	}

	return g.generateFromMessages(ctx, opts.Model, messages, callCfg)
}

func toToolConfig(choice any) *genai.ToolConfig {
	cfg := &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto}
	switch c := choice.(type) {
	case string:
		switch c {
		case "none":
			cfg.Mode = genai.FunctionCallingConfigModeNone
		case "required", "any":
			cfg.Mode = genai.FunctionCallingConfigModeAny
		}
	case llms.ToolChoice:
		if c.Function != nil {
			cfg.Mode = genai.FunctionCallingConfigModeAny
			cfg.AllowedFunctionNames = []string{c.Function.Name}
		}
	}
	return &genai.ToolConfig{FunctionCallingConfig: cfg}
}

func (g *GoogleAI) generateFromMessages(ctx context.Context, model string, messages []llms.Message, config *genai.GenerateContentConfig) (*llms.ContentResponse, error) {
	history := make([]*genai.Content, 0, len(messages))
	var system []*genai.Part
	for _, mc := range messages {
		content, err := convertContent(mc)
		if err != nil {
			return nil, err
		}
		if mc.Role == llms.RoleSystem {
			system = append(system, content.Parts...)
			continue
		}
		history = append(history, content)
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{Parts: system}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, history, config)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to generate content")
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrNoContentInResponse
	}
	return convertCandidates(resp.Candidates, resp.UsageMetadata)
}

// convertCandidates converts the candidates to choices, one per candidate.
func convertCandidates(candidates []*genai.Candidate, usage *genai.GenerateContentResponseUsageMetadata) (*llms.ContentResponse, error) {
	var contentResponse llms.ContentResponse

	for _, candidate := range candidates {
		var buf strings.Builder
		var toolCalls []llms.ToolCall

		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				switch {
				case part.Thought:
					// reasoning is not returned
				case part.Text != "":
					buf.WriteString(part.Text)
				case part.FunctionCall != nil:
					b, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						return nil, errors.WithStack(err)
					}
					id := part.FunctionCall.ID
					if id == "" {
						id = part.FunctionCall.Name
					}
					toolCalls = append(toolCalls, llms.ToolCall{
						ID:   id,
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      part.FunctionCall.Name,
							Arguments: string(b),
						},
					})
				default:
					return nil, errors.Wrapf(ErrUnknownPartInResponse, "not text or tool")
				}
			}
		}

		metadata := map[string]any{
			CITATIONS: candidate.CitationMetadata,
			SAFETY:    candidate.SafetyRatings,
		}
		if usage != nil {
			metadata["InputTokens"] = int64(usage.PromptTokenCount)
			metadata["CacheReadTokens"] = int64(usage.CachedContentTokenCount)
			metadata["OutputTokens"] = int64(usage.CandidatesTokenCount + usage.ToolUsePromptTokenCount + usage.ThoughtsTokenCount)
			metadata["TotalTokens"] = int64(usage.TotalTokenCount)
		}

		choice := &llms.ContentChoice{
			Content:        buf.String(),
			StopReason:     string(candidate.FinishReason),
			GenerationInfo: metadata,
			ToolCalls:      toolCalls,
		}
		if len(toolCalls) > 0 {
			choice.FuncCall = toolCalls[0].FunctionCall
		}
		contentResponse.Choices = append(contentResponse.Choices, choice)
	}
	return &contentResponse, nil
}

func convertParts(parts []llms.ContentPart) ([]*genai.Part, error) {
	convertedParts := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		out := new(genai.Part)

		switch p := part.(type) {
		case llms.TextContent:
			out.Text = p.Text
		case llms.BinaryContent:
			out.InlineData = &genai.Blob{MIMEType: p.MIMEType, Data: p.Data}
		case llms.ImageURLContent:
			out.FileData = &genai.FileData{
				FileURI:  p.URL,
				MIMEType: mime.TypeByExtension(path.Ext(p.URL)),
			}
		case llms.ToolCall:
			if p.FunctionCall == nil {
				return nil, errors.Errorf("googleai: tool call %s has no function", p.ID)
			}
			var args map[string]any
			if p.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(p.FunctionCall.Arguments), &args); err != nil {
					return nil, errors.Wrap(err, "googleai: failed to unmarshal tool call arguments")
				}
			}
			out.FunctionCall = &genai.FunctionCall{
				ID:   p.ID,
				Name: p.FunctionCall.Name,
				Args: args,
			}
		case llms.ToolCallResponse:
			out.FunctionResponse = &genai.FunctionResponse{
				ID:   p.ToolCallID,
				Name: p.Name,
				Response: map[string]any{
					"response": p.Content,
				},
			}
		default:
			return nil, errors.Errorf("googleai: unsupported part type: %T", part)
		}

		convertedParts = append(convertedParts, out)
	}
	return convertedParts, nil
}

func convertContent(content llms.Message) (*genai.Content, error) {
	parts, err := convertParts(content.Parts)
	if err != nil {
		return nil, err
	}

	c := &genai.Content{
		Parts: parts,
	}

	switch content.Role {
	case llms.RoleSystem:
		// passed as the system instruction
	case llms.RoleAI:
		c.Role = RoleModel
	case llms.RoleHuman, llms.RoleGeneric, llms.RoleTool:
		c.Role = RoleUser
	default:
		return nil, errors.Wrapf(llms.ErrUnexpectedRole, "googleai: role %q", content.Role)
	}
	return c, nil
}
