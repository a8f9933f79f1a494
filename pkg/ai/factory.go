package ai

import (
	"context"
	"fmt"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	GeminiAPIKey string
	GeminiModel  string

	// Ollama settings are read through getters so runtime changes apply
	OllamaBaseURL func() string
	OllamaModel   func() string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// NewSuggestionGenerator builds the generator chain for cfg.Provider.
// Every chain ends with the heuristic generator.
func NewSuggestionGenerator(ctx context.Context, cfg Config) (SuggestionGenerator, error) {
	switch cfg.Provider {
	case ProviderHeuristic:
		return NewHeuristicService(), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		g, err := NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return NewFallbackService(g), nil

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for OpenAI provider")
		}
		return NewFallbackService(NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)), nil

	case ProviderOllama:
		return NewFallbackService(newOllama(cfg)), nil

	case ProviderAuto, "":
		var chain []SuggestionGenerator
		if cfg.GeminiAPIKey != "" {
			g, err := NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return nil, fmt.Errorf("failed to create gemini client: %w", err)
			}
			chain = append(chain, g)
		}
		if cfg.OpenAIAPIKey != "" {
			chain = append(chain, NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel))
		}
		if cfg.OllamaBaseURL != nil {
			chain = append(chain, newOllama(cfg))
		}
		return NewFallbackService(chain...), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func newOllama(cfg Config) *OllamaService {
	if cfg.OllamaBaseURL == nil || cfg.OllamaModel == nil {
		return NewOllamaService("", "")
	}
	return NewOllamaServiceWithGetters(cfg.OllamaBaseURL, cfg.OllamaModel)
}
