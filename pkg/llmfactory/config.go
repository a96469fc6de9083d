package llmfactory

import (
	"os"
	"slices"

	"github.com/effective-security/x/configloader"
)

// Config of the LLM providers
type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
	// AssistantModels maps the agent name to the preferred models.
	// Use `default: <model_name>` as the default model for assistants.
	AssistantModels map[string][]string `json:"assistant_models" yaml:"assistant_models"`
}

// ProviderConfig of a single provider
type ProviderConfig struct {
	Name            string   `json:"name" yaml:"name"`
	Token           string   `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string   `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	// Region is the AWS region of the BEDROCK provider.
	Region string       `json:"region,omitempty" yaml:"region,omitempty"`
	OpenAI OpenAIConfig `json:"open_ai" yaml:"open_ai"`
}

// OpenAIConfig holds the endpoint options, used by all providers
type OpenAIConfig struct {
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	// APIType specifies the provider:
	// OPENAI|AZURE|AZURE_AD|ANTHROPIC|GOOGLEAI|BEDROCK|PERPLEXITY
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	// OrgID specifies which organization's quota and billing should be used when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
}

// FindModel returns the first available of the models, or the default model.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// env providers in order of preference
var envProviders = []struct {
	env     string
	name    string
	apiType string
	model   string
}{
	{env: "OPENAI_API_KEY", name: "openai", apiType: "OPENAI", model: "gpt-4o"},
	{env: "ANTHROPIC_API_KEY", name: "anthropic", apiType: "ANTHROPIC", model: "claude-3-7-sonnet-latest"},
	{env: "GOOGLE_API_KEY", name: "googleai", apiType: "GOOGLEAI", model: "gemini-2.5-flash"},
}

// ConfigFromEnv returns the config with a provider for every API key found
// in the environment, the first one is the default.
func ConfigFromEnv() *Config {
	cfg := new(Config)
	for _, p := range envProviders {
		token := os.Getenv(p.env)
		if token == "" {
			continue
		}
		cfg.Providers = append(cfg.Providers, &ProviderConfig{
			Name:            p.name,
			Token:           token,
			DefaultModel:    p.model,
			AvailableModels: []string{p.model},
			OpenAI:          OpenAIConfig{APIType: p.apiType},
		})
	}
	if len(cfg.Providers) > 0 {
		cfg.DefaultProvider = cfg.Providers[0].Name
	}
	return cfg
}
