package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIService implements SuggestionGenerator on any OpenAI-compatible
// chat completions endpoint
type OpenAIService struct {
	client *openai.Client
	model  string
}

// NewOpenAIService creates a client; an empty baseURL targets api.openai.com
func NewOpenAIService(apiKey, baseURL, model string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIService{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (o *OpenAIService) Name() string { return "openai:" + o.model }

// GenerateDecisionAssist implements SuggestionGenerator
func (o *OpenAIService) GenerateDecisionAssist(ctx context.Context, req DecisionAssistRequest) (json.RawMessage, error) {
	return o.generateJSON(ctx, buildDecisionAssistPrompt(req))
}

// GeneratePlan implements SuggestionGenerator
func (o *OpenAIService) GeneratePlan(ctx context.Context, req PlanRequest) (json.RawMessage, error) {
	return o.generateJSON(ctx, buildPlanPrompt(req))
}

func (o *OpenAIService) generateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You reply with a single JSON object and nothing else."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}
	return extractJSONObject(resp.Choices[0].Message.Content)
}
