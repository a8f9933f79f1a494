package ai

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/genai"
)

var errEmptyCandidate = errors.New("gemini returned no candidates")

// GeminiService implements SuggestionGenerator using the official genai client
type GeminiService struct {
	cli   *genai.Client
	model string
}

// NewGeminiService creates a Gemini API client for model
func NewGeminiService(ctx context.Context, apiKey, model string) (*GeminiService, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiService{cli: cli, model: model}, nil
}

func (g *GeminiService) Name() string { return "gemini:" + g.model }

// GenerateDecisionAssist implements SuggestionGenerator
func (g *GeminiService) GenerateDecisionAssist(ctx context.Context, req DecisionAssistRequest) (json.RawMessage, error) {
	return g.generateJSON(ctx, buildDecisionAssistPrompt(req))
}

// GeneratePlan implements SuggestionGenerator
func (g *GeminiService) GeneratePlan(ctx context.Context, req PlanRequest) (json.RawMessage, error) {
	return g.generateJSON(ctx, buildPlanPrompt(req))
}

// generateJSON requests application/json output, retrying transient failures
// with exponential backoff. Quota errors are returned immediately.
func (g *GeminiService) generateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		switch {
		case err != nil:
			lastErr = err
			if isQuotaError(err) {
				return nil, err
			}
		case len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0:
			lastErr = errEmptyCandidate
		default:
			return extractJSONObject(resp.Candidates[0].Content.Parts[0].Text)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return nil, lastErr
}
