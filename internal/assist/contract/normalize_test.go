package contract

import (
	"errors"
	"testing"
	"time"

	"todo-assist-backend/internal/assist/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(func() time.Time { return fixedNow })
}

func TestNormalizeTodoBound_OnCreateFiltersAndBinds(t *testing.T) {
	raw := decode(t, envelopeJSON("on_create",
		suggestionJSON("set_priority", `{"priority":"low"}`),
		suggestionJSON("split_subtasks", `{"subtasks":[{"title":"a","order":1}]}`),
		suggestionJSON("propose_next_action", `{"text":"start"}`),
		`{"type":"set_category","confidence":0.6,"rationale":"r","payload":{"category":"work","todoId":"other"},"suggestionId":"keep-me"}`,
	))

	env, err := newTestNormalizer().NormalizeTodoBound(raw, "T1", domain.SurfaceOnCreate)
	require.NoError(t, err)
	require.Len(t, env.Suggestions, 2)

	assert.Equal(t, domain.TypeSetPriority, env.Suggestions[0].Type)
	assert.Equal(t, "on_create-1", env.Suggestions[0].SuggestionID)
	assert.Equal(t, "T1", env.Suggestions[0].TargetTodoID())

	assert.Equal(t, domain.TypeSetCategory, env.Suggestions[1].Type)
	assert.Equal(t, "keep-me", env.Suggestions[1].SuggestionID)
	assert.Equal(t, "other", env.Suggestions[1].TargetTodoID(), "an explicit todoId is kept")
}

func TestNormalizeTodoBound_TaskDrawerKeepsAllTypes(t *testing.T) {
	raw := decode(t, envelopeJSON("task_drawer",
		suggestionJSON("split_subtasks", `{"subtasks":[{"title":"a","order":1}]}`),
		suggestionJSON("propose_next_action", `{"text":"start"}`),
		suggestionJSON("defer_task", `{"strategy":"someday"}`),
	))

	env, err := newTestNormalizer().NormalizeTodoBound(raw, "T1", domain.SurfaceTaskDrawer)
	require.NoError(t, err)
	require.Len(t, env.Suggestions, 3)
	for i, s := range env.Suggestions {
		assert.Equal(t, "T1", s.TargetTodoID())
		assert.Equal(t, []string{"task_drawer-1", "task_drawer-2", "task_drawer-3"}[i], s.SuggestionID)
	}
}

func TestNormalizeTodoBound_SurfaceMismatch(t *testing.T) {
	raw := decode(t, envelopeJSON("task_drawer", suggestionJSON("set_priority", `{"priority":"low"}`)))

	_, err := newTestNormalizer().NormalizeTodoBound(raw, "T1", domain.SurfaceOnCreate)
	assert.True(t, errors.Is(err, domain.ErrSurfaceMismatch))

	_, err = newTestNormalizer().NormalizeTodoBound(raw, "T1", domain.SurfaceTodayPlan)
	assert.True(t, errors.Is(err, domain.ErrSurfaceMismatch))
}

func TestNormalizeTodoBound_ContractViolationPropagates(t *testing.T) {
	raw := decode(t, envelopeJSON("on_create", suggestionJSON("delete_todo", `{}`)))

	_, err := newTestNormalizer().NormalizeTodoBound(raw, "T1", domain.SurfaceOnCreate)
	assert.True(t, domain.IsValidationError(err))
}

func TestNormalizeTodoBound_Abstain(t *testing.T) {
	raw := decode(t, `{"requestId":"r","surface":"on_create","must_abstain":true,
		"suggestions":[{"type":"set_priority","confidence":0.1,"rationale":"r","payload":{"priority":"low"}}]}`)

	env, err := newTestNormalizer().NormalizeTodoBound(raw, "T1", domain.SurfaceOnCreate)
	require.NoError(t, err)
	assert.True(t, env.MustAbstain)
	assert.NotNil(t, env.Suggestions)
	assert.Empty(t, env.Suggestions)
}

func TestNormalizeTodoBound_RequiresConfirmation(t *testing.T) {
	raw := decode(t, envelopeJSON("task_drawer",
		suggestionJSON("set_priority", `{"priority":"high"}`),
		suggestionJSON("set_priority", `{"priority":"medium"}`),
		suggestionJSON("set_due_date", `{"dueDateISO":"2026-10-01"}`),
		suggestionJSON("set_due_date", `{"dueDateISO":"2026-12-01"}`),
		`{"type":"set_category","confidence":0.6,"rationale":"r","payload":{"category":"work"},"requiresConfirmation":true}`,
	))

	env, err := newTestNormalizer().NormalizeTodoBound(raw, "T1", domain.SurfaceTaskDrawer)
	require.NoError(t, err)

	got := make([]bool, 0, len(env.Suggestions))
	for _, s := range env.Suggestions {
		got = append(got, s.RequiresConfirmation)
	}
	assert.Equal(t, []bool{true, false, true, false, true}, got)
}

func TestNormalizeTodoBound_DuplicateCallerIDsAreReplaced(t *testing.T) {
	raw := decode(t, envelopeJSON("task_drawer",
		`{"type":"set_category","confidence":0.6,"rationale":"r","payload":{"category":"a"},"suggestionId":"dup"}`,
		`{"type":"set_category","confidence":0.6,"rationale":"r","payload":{"category":"b"},"suggestionId":"dup"}`,
	))

	env, err := newTestNormalizer().NormalizeTodoBound(raw, "T1", domain.SurfaceTaskDrawer)
	require.NoError(t, err)
	assert.Equal(t, "dup", env.Suggestions[0].SuggestionID)
	assert.Equal(t, "task_drawer-2", env.Suggestions[1].SuggestionID)
}

const todayPlanJSON = `{
	"requestId":"plan-1","surface":"today_plan","must_abstain":false,
	"suggestions":[
		{"type":"set_priority","confidence":0.7,"rationale":"r","payload":{"priority":"high","todoId":"t1"}},
		{"type":"set_due_date","confidence":0.7,"rationale":"r","payload":{"dueDateISO":"2026-12-01","todoId":"ghost"}},
		{"type":"rewrite_title","confidence":0.7,"rationale":"r","payload":{"title":"x","todoId":"t2"}},
		{"type":"propose_next_action","confidence":0.7,"rationale":"r","payload":{"text":"open the doc"}},
		{"type":"split_subtasks","confidence":0.7,"rationale":"r","payload":{"todoId":"t3","subtasks":[{"title":"a","order":1}]}}
	],
	"planPreview":{"topN":3,"items":[
		{"todoId":"t1","rank":1,"rationale":"overdue"},
		{"todoId":"t2","rank":2,"rationale":"quick"},
		{"todoId":"t3","rank":3,"rationale":"big"}
	]}
}`

func TestNormalizeTodayPlan_DropsOutOfPreviewAndDisallowedTypes(t *testing.T) {
	env, err := newTestNormalizer().NormalizeTodayPlan(decode(t, todayPlanJSON))
	require.NoError(t, err)

	require.Len(t, env.Suggestions, 2)
	assert.Equal(t, "t1", env.Suggestions[0].TargetTodoID())
	assert.Equal(t, "today_plan-1", env.Suggestions[0].SuggestionID)
	assert.True(t, env.Suggestions[0].RequiresConfirmation)
	assert.Equal(t, "t3", env.Suggestions[1].TargetTodoID())
	assert.Equal(t, "today_plan-5", env.Suggestions[1].SuggestionID)
	assert.False(t, env.Suggestions[1].RequiresConfirmation)

	require.NotNil(t, env.PlanPreview)
	assert.Len(t, env.PlanPreview.Items, 3)
}

func TestNormalizeTodayPlan_NoPreviewDropsEverything(t *testing.T) {
	raw := decode(t, envelopeJSON("today_plan", suggestionJSON("set_priority", `{"priority":"low","todoId":"t1"}`)))

	env, err := newTestNormalizer().NormalizeTodayPlan(raw)
	require.NoError(t, err)
	assert.Empty(t, env.Suggestions)
}

func TestNormalizeTodayPlan_SurfaceMismatch(t *testing.T) {
	raw := decode(t, envelopeJSON("task_drawer"))

	_, err := newTestNormalizer().NormalizeTodayPlan(raw)
	assert.True(t, errors.Is(err, domain.ErrSurfaceMismatch))
}

func TestNormalizedOutputRevalidates(t *testing.T) {
	env, err := newTestNormalizer().NormalizeTodayPlan(decode(t, todayPlanJSON))
	require.NoError(t, err)

	raw, err := ToRaw(env)
	require.NoError(t, err)
	again, err := newTestNormalizer().NormalizeTodayPlan(raw)
	require.NoError(t, err)
	assert.Equal(t, env, again)
}
