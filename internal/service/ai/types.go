package ai

import "context"

// ModelPreset represents the model usage preset
type ModelPreset string

const (
	PresetAnalysis ModelPreset = "analysis" // personality matching
	PresetPrecise  ModelPreset = "precise"
	PresetBalanced ModelPreset = "balanced"
)

// ModelConfig holds model configuration
type ModelConfig struct {
	Temperature      float32
	TopP             float32
	TopK             int
	MaxOutputTokens  int
	ResponseMimeType string // "application/json" or "text/plain"
}

// OpenAIConfig holds settings for OpenAI compatible chat APIs (OpenAI, Groq)
type OpenAIConfig struct {
	Temperature float32
	MaxTokens   int
	TopP        float32
}

// GenerateOptions holds options for a single completion
type GenerateOptions struct {
	Model     string
	JSONMode  bool
	Schema    map[string]any // structured output schema, honoured when the provider supports it
	Overrides *ModelConfig
}

// Completion is the raw text a provider returned plus where it came from.
type Completion struct {
	Text         string
	Provider     string
	Model        string
	UsedFallback bool
}

// Completer sends a prompt to a language model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (*Completion, error)
}

// GetPresetConfig returns the configuration for a preset
func GetPresetConfig(preset ModelPreset) ModelConfig {
	switch preset {
	case PresetAnalysis:
		return ModelConfig{
			Temperature:     0.7,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 2000,
		}
	case PresetPrecise:
		return ModelConfig{
			Temperature:     0.1,
			TopP:            0.9,
			TopK:            20,
			MaxOutputTokens: 1024,
		}
	case PresetBalanced:
		return ModelConfig{
			Temperature:     0.4,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 2048,
		}
	default:
		return GetPresetConfig(PresetBalanced)
	}
}

// GetOpenAIPresetConfig returns OpenAI configuration for a preset
func GetOpenAIPresetConfig(preset ModelPreset) OpenAIConfig {
	switch preset {
	case PresetAnalysis:
		return OpenAIConfig{
			Temperature: 0.7,
			MaxTokens:   2000,
			TopP:        0.95,
		}
	case PresetPrecise:
		return OpenAIConfig{
			Temperature: 0.1,
			MaxTokens:   1024,
			TopP:        0.9,
		}
	case PresetBalanced:
		return OpenAIConfig{
			Temperature: 0.4,
			MaxTokens:   2048,
			TopP:        0.95,
		}
	default:
		return GetOpenAIPresetConfig(PresetBalanced)
	}
}
