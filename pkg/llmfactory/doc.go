// Package llmfactory creates LLM models from a YAML configuration of providers
// and maps agents to their preferred models.
package llmfactory
