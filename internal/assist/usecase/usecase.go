package usecase

import (
	"context"
	"fmt"

	"todo-assist-backend/internal/assist/domain"
	"todo-assist-backend/internal/assist/repository"
	tododomain "todo-assist-backend/internal/todo/domain"
	"todo-assist-backend/pkg/telemetry"
)

// AssistUsecase defines the decision-assist business logic
type AssistUsecase interface {
	// GenerateTodoBound generates on_create or task_drawer suggestions for one todo
	GenerateTodoBound(ctx context.Context, userID, todoID string, surface domain.Surface) (*GenerateResult, error)

	// GenerateTodayPlan ranks the user's open todos and suggests edits for the top N
	GenerateTodayPlan(ctx context.Context, userID string, topN int) (*GenerateResult, error)

	// GeneratePlanFromGoal breaks a goal into a plan of new todos
	GeneratePlanFromGoal(ctx context.Context, userID, goal string) (*PlanGenerateResult, error)

	ListSuggestions(userID string, limit int) ([]*domain.SuggestionRecord, error)
	GetSuggestion(userID, id string) (*domain.SuggestionRecord, error)

	// UpdateStatus records an accept or reject without applying anything
	UpdateStatus(ctx context.Context, userID, id string, req StatusRequest) (*domain.SuggestionRecord, error)

	// Apply executes the selected suggestions of a record at most once
	Apply(ctx context.Context, userID, id string, req ApplyRequest) (*ApplyResponse, error)

	// Undo restores the todos an apply changed and rejects the record
	Undo(ctx context.Context, userID, id string) (*domain.SuggestionRecord, error)

	Usage(userID string) (*domain.Usage, error)
	Insights(userID string) (*Insights, error)

	// RecordEvent forwards a client-side telemetry event
	RecordEvent(ctx context.Context, userID string, e telemetry.Event) error
}

// GenerateResult is returned by the envelope-producing generators. Suggestion
// is nil when generation was throttled.
type GenerateResult struct {
	Suggestion *domain.SuggestionRecord `json:"suggestion,omitempty"`
	Envelope   *domain.Envelope         `json:"envelope"`
	Throttle   domain.ThrottleDecision  `json:"throttle"`
	Usage      *domain.Usage            `json:"usage,omitempty"`
}

// PlanGenerateResult is returned by GeneratePlanFromGoal
type PlanGenerateResult struct {
	Suggestion *domain.SuggestionRecord `json:"suggestion"`
	Plan       *domain.GoalPlan         `json:"plan"`
	Usage      *domain.Usage            `json:"usage,omitempty"`
}

// StatusRequest is the body of a status update
type StatusRequest struct {
	Status domain.RecordStatus `json:"status"`
	Reason string              `json:"reason,omitempty"`
}

// ApplyRequest selects what to apply. SuggestionID is required for
// todo-bound records; SuggestionIDs defaults to every suggestion of a
// today_plan record.
type ApplyRequest struct {
	SuggestionID  string   `json:"suggestionId,omitempty"`
	SuggestionIDs []string `json:"suggestionIds,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Confirmed     bool     `json:"confirmed,omitempty"`
}

// ApplyResponse is the outcome of a successful or idempotent apply
type ApplyResponse struct {
	OK             bool                     `json:"ok"`
	CreatedCount   int                      `json:"createdCount"`
	Todos          []*tododomain.Todo       `json:"todos"`
	UpdatedTodoIDs []string                 `json:"updatedTodoIds"`
	Suggestion     *domain.SuggestionRecord `json:"suggestion"`
	Idempotent     bool                     `json:"idempotent,omitempty"`
}

func planResponse(res *repository.PlanApplyResult) *ApplyResponse {
	ids := []string{}
	if res.Suggestion != nil && res.Suggestion.AppliedTodoIDs != nil {
		ids = res.Suggestion.AppliedTodoIDs
	}
	return &ApplyResponse{
		OK:             true,
		CreatedCount:   res.CreatedCount,
		Todos:          res.Todos,
		UpdatedTodoIDs: ids,
		Suggestion:     res.Suggestion,
		Idempotent:     res.Idempotent,
	}
}

// ApplyError carries an expected apply failure to the transport layer
type ApplyError struct {
	Status  int
	Code    string
	Message string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Insights summarizes the last seven days of suggestion activity
type Insights struct {
	Usage               *domain.Usage `json:"usage"`
	WindowDays          int           `json:"windowDays"`
	GeneratedCount      int           `json:"generatedCount"`
	AcceptedCount       int           `json:"acceptedCount"`
	RejectedCount       int           `json:"rejectedCount"`
	TopRejectionReasons []ReasonCount `json:"topRejectionReasons"`
	Recommendation      string        `json:"recommendation"`
}
