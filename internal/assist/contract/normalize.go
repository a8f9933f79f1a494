package contract

import (
	"fmt"
	"strings"
	"time"

	"todo-assist-backend/internal/assist/domain"
)

var (
	onCreateTypes = typeSet(
		domain.TypeSetDueDate,
		domain.TypeSetPriority,
		domain.TypeSetProject,
		domain.TypeSetCategory,
		domain.TypeRewriteTitle,
		domain.TypeAskClarification,
		domain.TypeDeferTask,
	)
	taskDrawerTypes = typeSet(domain.SuggestionTypes...)
	todayPlanTypes  = typeSet(
		domain.TypeSetDueDate,
		domain.TypeSetPriority,
		domain.TypeSplitSubtasks,
		domain.TypeProposeNextAction,
	)
)

func typeSet(types ...domain.SuggestionType) map[domain.SuggestionType]bool {
	set := make(map[domain.SuggestionType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// AllowedTypes returns the suggestion types that may surface on s
func AllowedTypes(s domain.Surface) map[domain.SuggestionType]bool {
	switch s {
	case domain.SurfaceOnCreate:
		return onCreateTypes
	case domain.SurfaceTaskDrawer:
		return taskDrawerTypes
	case domain.SurfaceTodayPlan:
		return todayPlanTypes
	}
	return nil
}

// Normalizer binds validated envelopes to the surface they were requested for
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// NormalizeTodoBound validates raw, checks it was produced for surface and
// binds every kept suggestion to todoID unless it already names a todo.
func (n *Normalizer) NormalizeTodoBound(raw any, todoID string, surface domain.Surface) (*domain.Envelope, error) {
	if !surface.TodoBound() {
		return nil, fmt.Errorf("%w: %s is not a todo-bound surface", domain.ErrSurfaceMismatch, surface)
	}
	todoID = strings.TrimSpace(todoID)
	if todoID == "" {
		return nil, fail("todoId", "is required for todo-bound surfaces")
	}

	env, err := Validate(raw)
	if err != nil {
		return nil, err
	}
	if env.Surface != surface {
		return nil, fmt.Errorf("%w: requested %s, envelope declares %s", domain.ErrSurfaceMismatch, surface, env.Surface)
	}

	out := n.shell(env)
	if env.MustAbstain {
		return out, nil
	}
	allowed := AllowedTypes(surface)
	used := map[string]bool{}
	for i, s := range env.Suggestions {
		if !allowed[s.Type] {
			continue
		}
		if s.Payload.TargetTodoID() == "" {
			s.Payload.BindTodo(todoID)
		}
		out.Suggestions = append(out.Suggestions, n.finish(s, surface, i, used))
	}
	return out, nil
}

// NormalizeTodayPlan validates raw and keeps only suggestions that target a
// todo displayed in the plan preview. Dropping is silent.
func (n *Normalizer) NormalizeTodayPlan(raw any) (*domain.Envelope, error) {
	env, err := Validate(raw)
	if err != nil {
		return nil, err
	}
	if env.Surface != domain.SurfaceTodayPlan {
		return nil, fmt.Errorf("%w: requested %s, envelope declares %s", domain.ErrSurfaceMismatch, domain.SurfaceTodayPlan, env.Surface)
	}

	out := n.shell(env)
	out.PlanPreview = env.PlanPreview
	if env.MustAbstain {
		return out, nil
	}

	previewed := PreviewTodoIDs(env.PlanPreview)
	used := map[string]bool{}
	for i, s := range env.Suggestions {
		if !todayPlanTypes[s.Type] {
			continue
		}
		todoID := s.TargetTodoID()
		if todoID == "" || !previewed[todoID] {
			continue
		}
		out.Suggestions = append(out.Suggestions, n.finish(s, domain.SurfaceTodayPlan, i, used))
	}
	return out, nil
}

// PreviewTodoIDs returns the set of todo ids displayed in a plan preview
func PreviewTodoIDs(preview *domain.PlanPreview) map[string]bool {
	ids := map[string]bool{}
	if preview == nil {
		return ids
	}
	for _, item := range preview.Items {
		if item.TodoID != "" {
			ids[item.TodoID] = true
		}
	}
	return ids
}

// RequiresConfirmation reports whether applying s is a risky mutation
func (n *Normalizer) RequiresConfirmation(s domain.Suggestion) bool {
	if s.RequiresConfirmation {
		return true
	}
	switch p := s.Payload.(type) {
	case *domain.SetPriorityPayload:
		return p.Priority == domain.PriorityHigh
	case *domain.SetDueDatePayload:
		due, err := p.DueDate()
		return err == nil && due.Before(n.now())
	}
	return false
}

func (n *Normalizer) shell(env *domain.Envelope) *domain.Envelope {
	return &domain.Envelope{
		RequestID:   env.RequestID,
		Surface:     env.Surface,
		MustAbstain: env.MustAbstain,
		ModelInfo:   env.ModelInfo,
		Suggestions: []domain.Suggestion{},
	}
}

func (n *Normalizer) finish(s domain.Suggestion, surface domain.Surface, index int, used map[string]bool) domain.Suggestion {
	id := s.SuggestionID
	if id == "" || used[id] {
		id = fmt.Sprintf("%s-%d", surface, index+1)
	}
	used[id] = true
	s.SuggestionID = id
	s.RequiresConfirmation = n.RequiresConfirmation(s)
	return s
}
