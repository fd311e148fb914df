package llm

import (
	"fmt"
	"log/slog"
)

// ModelConfig is the adapter construction record, assembled from a run's
// target parameters.
type ModelConfig struct {
	ModelID     string
	Modality    string
	SubType     string
	Source      string
	APIKey      string
	EndpointURL string
	Settings    map[string]any
}

// ConfigFromTargetParameters lifts the loosely typed target-parameter map a
// run carries into a ModelConfig. Missing fields stay zero; the per-backend
// constructors apply their own env-var fallbacks.
func ConfigFromTargetParameters(targetID string, params map[string]any) ModelConfig {
	cfg := ModelConfig{ModelID: targetID, Settings: params}
	if cfg.ModelID == "" {
		cfg.ModelID, _ = params["model_id"].(string)
	}
	cfg.Modality, _ = params["modality"].(string)
	cfg.SubType, _ = params["sub_type"].(string)
	cfg.Source, _ = params["source"].(string)
	cfg.APIKey, _ = params["api_key"].(string)
	cfg.EndpointURL, _ = params["endpoint_url"].(string)
	if cfg.Modality == "" {
		cfg.Modality = "NLP"
	}
	if cfg.SubType == "" {
		cfg.SubType = "Text Generation"
	}
	return cfg
}

// NewModelClient constructs the backend client for the configured source.
// Unknown sources are an error; the caller decides whether to fall back.
func NewModelClient(cfg ModelConfig) (ModelClient, error) {
	switch cfg.Source {
	case "openai":
		return NewOpenAIClient(cfg)
	case "claude", "anthropic":
		return NewAnthropicClient(cfg)
	case "ollama":
		return NewOllamaClient(cfg)
	case "":
		slog.Warn("model source not set, defaulting to ollama", "model_id", cfg.ModelID)
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported model source: %s", cfg.Source)
	}
}
