package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
)

// FallbackService tries each provider in order and ends with the heuristic
// generator, so a suggestion request never fails just because a model is down.
type FallbackService struct {
	providers []SuggestionGenerator
	heuristic *HeuristicService
}

// NewFallbackService chains providers; nil entries are skipped
func NewFallbackService(providers ...SuggestionGenerator) *FallbackService {
	f := &FallbackService{heuristic: NewHeuristicService()}
	for _, p := range providers {
		if p != nil {
			f.providers = append(f.providers, p)
		}
	}
	return f
}

func (f *FallbackService) Name() string {
	names := make([]string, 0, len(f.providers)+1)
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	names = append(names, f.heuristic.Name())
	return strings.Join(names, ">")
}

// GenerateDecisionAssist implements SuggestionGenerator
func (f *FallbackService) GenerateDecisionAssist(ctx context.Context, req DecisionAssistRequest) (json.RawMessage, error) {
	return f.run(ctx, "decision assist", func(g SuggestionGenerator) (json.RawMessage, error) {
		return g.GenerateDecisionAssist(ctx, req)
	})
}

// GeneratePlan implements SuggestionGenerator
func (f *FallbackService) GeneratePlan(ctx context.Context, req PlanRequest) (json.RawMessage, error) {
	return f.run(ctx, "plan", func(g SuggestionGenerator) (json.RawMessage, error) {
		return g.GeneratePlan(ctx, req)
	})
}

func (f *FallbackService) run(ctx context.Context, what string, call func(SuggestionGenerator) (json.RawMessage, error)) (json.RawMessage, error) {
	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Printf("[AI] Trying %s for %s...", p.Name(), what)
		out, err := call(p)
		if err == nil {
			log.Printf("[AI] %s %s successful", p.Name(), what)
			return out, nil
		}
		switch {
		case isQuotaError(err):
			log.Printf("[AI] %s quota exhausted: %v, falling back", p.Name(), err)
		case isConnectionError(err):
			log.Printf("[AI] %s connection failed: %v, falling back", p.Name(), err)
		default:
			log.Printf("[AI] %s error: %v, falling back", p.Name(), err)
		}
	}
	out, err := call(f.heuristic)
	if err != nil {
		return nil, fmt.Errorf("heuristic %s failed: %w", what, err)
	}
	return out, nil
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
