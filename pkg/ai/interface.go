package ai

import (
	"context"
	"encoding/json"
	"time"
)

// TodoContext is the view of a todo a generator is allowed to see
type TodoContext struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Notes        string     `json:"notes,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	Priority     string     `json:"priority"`
	Category     string     `json:"category,omitempty"`
	SubtaskCount int        `json:"subtask_count"`
}

// DecisionAssistRequest asks for a suggestion envelope on one surface.
// Todo is set for on_create and task_drawer, Todos and TopN for today_plan.
type DecisionAssistRequest struct {
	RequestID           string        `json:"requestId"`
	Surface             string        `json:"surface"`
	Todo                *TodoContext  `json:"todo,omitempty"`
	Todos               []TodoContext `json:"todos,omitempty"`
	TopN                int           `json:"topN,omitempty"`
	Projects            []string      `json:"projects,omitempty"`
	LastRejectionReason string        `json:"lastRejectionReason,omitempty"`
	Now                 time.Time     `json:"now"`
}

// PlanRequest asks for a multi-task plan reaching Goal
type PlanRequest struct {
	Goal                string    `json:"goal"`
	LastRejectionReason string    `json:"lastRejectionReason,omitempty"`
	Now                 time.Time `json:"now"`
}

// SuggestionGenerator produces untrusted suggestion JSON. Callers must run the
// output through the contract validator before acting on it.
// Implement this interface to add new AI providers.
type SuggestionGenerator interface {
	Name() string
	GenerateDecisionAssist(ctx context.Context, req DecisionAssistRequest) (json.RawMessage, error)
	GeneratePlan(ctx context.Context, req PlanRequest) (json.RawMessage, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderHeuristic ProviderType = "heuristic"
	ProviderGemini    ProviderType = "gemini"
	ProviderOllama    ProviderType = "ollama"
	ProviderOpenAI    ProviderType = "openai"
	ProviderAuto      ProviderType = "auto"
)
