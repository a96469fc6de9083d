package llmfactory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/llms/anthropic"
	"github.com/effective-security/devagency/pkg/llms/bedrock"
	"github.com/effective-security/devagency/pkg/llms/googleai"
	"github.com/effective-security/devagency/pkg/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// Factory creates and caches LLM models.
type Factory interface {
	// DefaultModel returns the default LLM model.
	DefaultModel() (llms.Model, error)
	// ModelByType returns an LLM model by its provider type, e.g.
	// OPENAI, AZURE, AZURE_AD, ANTHROPIC, GOOGLEAI, BEDROCK, PERPLEXITY
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns the first available of the preferred models,
	// or the default model.
	ModelByName(preferredModels ...string) (llms.Model, error)
	// AssistantModel returns the model configured for the assistant.
	AssistantModel(assistantName string, preferredModels ...string) (llms.Model, error)
}

// Load returns the factory for the config file
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg *Config

	defaultProvider *ProviderConfig
	assistantModels map[string][]string
	byType          map[string]llms.Model
	byName          map[string]llms.Model
	lock            sync.Mutex
}

// New creates a new LLM factory
func New(cfg *Config) Factory {
	f := &factory{
		cfg:             cfg,
		byType:          make(map[string]llms.Model),
		byName:          make(map[string]llms.Model),
		assistantModels: make(map[string][]string),
	}

	for k, v := range cfg.AssistantModels {
		f.assistantModels[k] = slices.Clone(v)
	}

	if cfg.DefaultProvider != "" {
		for _, provider := range cfg.Providers {
			if provider.Name == cfg.DefaultProvider {
				f.defaultProvider = provider
				break
			}
		}
	}
	if f.defaultProvider == nil && len(f.cfg.Providers) > 0 {
		f.defaultProvider = f.cfg.Providers[0]
	}
	return f
}

// CreateLLM creates the model of the provider,
// the first available of preferredModels or the provider's default model.
func CreateLLM(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	provType := llms.ProviderType(strings.ToUpper(cfg.OpenAI.APIType))
	if provType == "OPEN_AI" {
		provType = llms.ProviderOpenAI
	}
	model := cfg.FindModel(preferredModels...)

	switch provType {
	case llms.ProviderOpenAI, llms.ProviderPerplexity, llms.ProviderAzure, llms.ProviderAzureAD:
		return newOpenAI(provType, cfg, model)
	case llms.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithModel(model)}
		if cfg.Token != "" {
			opts = append(opts, anthropic.WithToken(cfg.Token))
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		return anthropic.New(opts...)
	case llms.ProviderGoogleAI:
		opts := []googleai.Option{googleai.WithDefaultModel(model)}
		if cfg.Token != "" {
			opts = append(opts, googleai.WithAPIKey(cfg.Token))
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, googleai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		return googleai.New(context.Background(), opts...)
	case llms.ProviderBedrock:
		return bedrock.New(bedrock.WithModel(model), bedrock.WithRegion(cfg.Region))
	}
	return nil, errors.Errorf("unsupported provider type: %s", provType)
}

func newOpenAI(provType llms.ProviderType, cfg *ProviderConfig, model string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithProvider(provType),
		openai.WithModel(model),
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.OpenAI.APIVersion != "" {
		opts = append(opts, openai.WithAPIVersion(cfg.OpenAI.APIVersion))
	}
	if cfg.OpenAI.OrgID != "" {
		opts = append(opts, openai.WithOrganization(cfg.OpenAI.OrgID))
	}
	return openai.New(opts...)
}

// DefaultModel returns the default model of the default provider
func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}
	return NewLLM(f.defaultProvider, f.defaultProvider.DefaultModel)
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byType[providerType]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if strings.EqualFold(cfg.OpenAI.APIType, providerType) {
			model, err := NewLLM(cfg)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"type", cfg.OpenAI.APIType,
				"version", cfg.OpenAI.APIVersion,
				"name", cfg.Name)

			f.byType[providerType] = model
			return model, nil
		}
	}
	return nil, errors.Errorf("provider not found for type: %s", providerType)
}

func (f *factory) ModelByName(modelNames ...string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, modelName := range modelNames {
		if client, ok := f.byName[modelName]; ok {
			return client, nil
		}

		for _, cfg := range f.cfg.Providers {
			if !slices.Contains(cfg.AvailableModels, modelName) {
				continue
			}
			model, err := NewLLM(cfg, modelName)
			if err != nil {
				logger.KV(xlog.ERROR,
					"reason", "create_llm",
					"type", cfg.OpenAI.APIType,
					"model", modelName,
					"err", err.Error())
				continue
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"type", cfg.OpenAI.APIType,
				"model", modelName,
				"name", cfg.Name)

			f.byName[modelName] = model
			return model, nil
		}
	}
	return f.DefaultModel()
}

// AssistantModel returns the model mapped to the assistant,
// the "default" mapping, or the first available of preferredModels.
func (f *factory) AssistantModel(assistantName string, preferredModels ...string) (llms.Model, error) {
	if modelNames, ok := f.assistantModels[assistantName]; ok {
		return f.ModelByName(modelNames...)
	}
	if modelNames, ok := f.assistantModels["default"]; ok {
		return f.ModelByName(modelNames...)
	}
	return f.ModelByName(preferredModels...)
}
