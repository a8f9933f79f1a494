package domain

// Surface is the product context a suggestion envelope was requested for
type Surface string

const (
	SurfaceOnCreate   Surface = "on_create"
	SurfaceTaskDrawer Surface = "task_drawer"
	SurfaceTodayPlan  Surface = "today_plan"
)

// Valid reports whether s is one of the known surfaces
func (s Surface) Valid() bool {
	switch s {
	case SurfaceOnCreate, SurfaceTaskDrawer, SurfaceTodayPlan:
		return true
	}
	return false
}

// TodoBound reports whether suggestions on this surface target a single todo
func (s Surface) TodoBound() bool {
	return s == SurfaceOnCreate || s == SurfaceTaskDrawer
}

// SuggestionType is the closed set of mutations a suggestion may describe
type SuggestionType string

const (
	TypeSetDueDate        SuggestionType = "set_due_date"
	TypeSetPriority       SuggestionType = "set_priority"
	TypeSetProject        SuggestionType = "set_project"
	TypeSetCategory       SuggestionType = "set_category"
	TypeRewriteTitle      SuggestionType = "rewrite_title"
	TypeProposeNextAction SuggestionType = "propose_next_action"
	TypeSplitSubtasks     SuggestionType = "split_subtasks"
	TypeAskClarification  SuggestionType = "ask_clarification"
	TypeDeferTask         SuggestionType = "defer_task"
)

// SuggestionTypes lists every type accepted by the contract, in declaration order
var SuggestionTypes = []SuggestionType{
	TypeSetDueDate,
	TypeSetPriority,
	TypeSetProject,
	TypeSetCategory,
	TypeRewriteTitle,
	TypeProposeNextAction,
	TypeSplitSubtasks,
	TypeAskClarification,
	TypeDeferTask,
}

// Priority values accepted by set_priority
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Defer strategies accepted by defer_task
const (
	DeferSomeday   = "someday"
	DeferNextWeek  = "next_week"
	DeferNextMonth = "next_month"
)

// Envelope is the validated unit produced by generation.
// After normalization every suggestion carries a SuggestionID.
type Envelope struct {
	RequestID   string       `json:"requestId"`
	Surface     Surface      `json:"surface"`
	MustAbstain bool         `json:"must_abstain"`
	ModelInfo   *ModelInfo   `json:"modelInfo,omitempty"`
	Suggestions []Suggestion `json:"suggestions"`
	PlanPreview *PlanPreview `json:"planPreview,omitempty"`
}

// ModelInfo describes which generator produced an envelope
type ModelInfo struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Suggestion is one proposed mutation. Payload is always one of the
// concrete *XxxPayload types matching Type.
type Suggestion struct {
	Type                 SuggestionType `json:"type"`
	Confidence           float64        `json:"confidence"`
	Rationale            string         `json:"rationale"`
	Payload              Payload        `json:"payload"`
	SuggestionID         string         `json:"suggestionId,omitempty"`
	RequiresConfirmation bool           `json:"requiresConfirmation,omitempty"`
}

// TargetTodoID returns the todo the suggestion's payload is bound to
func (s Suggestion) TargetTodoID() string {
	if s.Payload == nil {
		return ""
	}
	return s.Payload.TargetTodoID()
}

// PlanPreview is the ranked shortlist shown on the today_plan surface
type PlanPreview struct {
	TopN  int               `json:"topN"`
	Items []PlanPreviewItem `json:"items"`
}

// PlanPreviewItem is one ranked entry of a plan preview
type PlanPreviewItem struct {
	TodoID          string   `json:"todoId,omitempty"`
	Rank            int      `json:"rank"`
	TimeEstimateMin *float64 `json:"timeEstimateMin,omitempty"`
	Rationale       string   `json:"rationale"`
}

// FindSuggestion returns the suggestion with the given id
func (e *Envelope) FindSuggestion(id string) (Suggestion, bool) {
	for _, s := range e.Suggestions {
		if s.SuggestionID == id {
			return s, true
		}
	}
	return Suggestion{}, false
}

// AbstainEnvelope builds the envelope returned instead of generating when
// the caller is throttled
func AbstainEnvelope(requestID string, surface Surface) *Envelope {
	env := &Envelope{
		RequestID:   requestID,
		Surface:     surface,
		MustAbstain: true,
		Suggestions: []Suggestion{},
	}
	if surface == SurfaceTodayPlan {
		env.PlanPreview = &PlanPreview{TopN: 0, Items: []PlanPreviewItem{}}
	}
	return env
}
