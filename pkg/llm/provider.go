package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Model is a selectable model with a human label.
type Model struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// Models is the catalog offered by the model selector.
var Models = []Model{
	{Label: "GPT-4o", ID: "gpt-4o"},
	{Label: "GPT-4o mini", ID: "gpt-4o-mini"},
	{Label: "GPT-o3 mini", ID: "o3-mini"},
	{Label: "GPT-4.1", ID: "gpt-4.1"},
	{Label: "GPT-4.1 Mini", ID: "gpt-4.1-mini"},
	{Label: "GPT-4.1 Nano", ID: "gpt-4.1-nano"},
	{Label: "Mistral (Ollama)", ID: "mistral"},
	{Label: "Llama 3.1 (Ollama)", ID: "llama3.1"},
}

// MetricLabel returns the model id for metric labels. Ids outside the
// catalog come from free-form input and are folded into "other".
func MetricLabel(model string) string {
	for _, m := range Models {
		if m.ID == model {
			return model
		}
	}
	return "other"
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	if provider == ProviderOllama {
		return "mistral"
	}
	return "gpt-4o-mini"
}

func newModel(config ComposerConfig) (llms.Model, error) {
	switch config.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	case ProviderOllama:
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(baseURL))
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
