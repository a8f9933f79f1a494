package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"todo-assist-backend/internal/assist/domain"
	tododomain "todo-assist-backend/internal/todo/domain"
	"todo-assist-backend/pkg/ai"
	"todo-assist-backend/pkg/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findType(t *testing.T, env *domain.Envelope, typ domain.SuggestionType) domain.Suggestion {
	t.Helper()
	for _, s := range env.Suggestions {
		if s.Type == typ {
			return s
		}
	}
	t.Fatalf("no %s suggestion in %+v", typ, env.Suggestions)
	return domain.Suggestion{}
}

func TestGenerate_RejectionAsGenericMakesNextOutputSpecific(t *testing.T) {
	f := newFixture(t)
	uc := f.usecase(ai.NewHeuristicService())
	ctx := context.Background()
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "Prepare quarterly report"})

	first, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceTaskDrawer)
	require.NoError(t, err)
	require.NotNil(t, first.Suggestion)
	assert.False(t, first.Throttle.Throttled)
	assert.Equal(t, 0.8, findType(t, first.Envelope, domain.TypeProposeNextAction).Confidence)
	for _, s := range first.Envelope.Suggestions {
		assert.Equal(t, todo.ID, s.TargetTodoID())
		assert.NotEmpty(t, s.SuggestionID)
	}
	out, err := json.Marshal(first.Envelope)
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(string(out)), "owner")

	_, err = uc.UpdateStatus(ctx, "u1", first.Suggestion.ID, StatusRequest{Status: domain.StatusRejected, Reason: "too generic"})
	require.NoError(t, err)

	second, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceTaskDrawer)
	require.NoError(t, err)
	out, err = json.Marshal(second.Envelope)
	require.NoError(t, err)
	lower := strings.ToLower(string(out))
	assert.Contains(t, lower, "owner")
	assert.Contains(t, lower, "metric")
	assert.Contains(t, lower, "deadline")

	assert.Equal(t, []string{telemetry.EventGenerate, telemetry.EventDismiss, telemetry.EventGenerate}, f.sink.names())
	assert.Equal(t, int64(2), f.recordCount(t, "u1"))
}

func TestGenerate_SurfaceAndOwnership(t *testing.T) {
	f := newFixture(t)
	uc := f.usecase(ai.NewHeuristicService())
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "Call the plumber"})

	_, err := uc.GenerateTodoBound(context.Background(), "u1", todo.ID, domain.SurfaceTodayPlan)
	assert.ErrorIs(t, err, domain.ErrSurfaceMismatch)

	_, err = uc.GenerateTodoBound(context.Background(), "u2", todo.ID, domain.SurfaceOnCreate)
	assert.ErrorIs(t, err, tododomain.ErrTodoNotFound)

	_, err = uc.GenerateTodayPlan(context.Background(), "u1", 4)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Zero(t, f.recordCount(t, "u1"))
}

func TestGenerate_ContractViolationFallsBackToHeuristic(t *testing.T) {
	f := newFixture(t)
	bad := &stubGenerator{envelope: func(req ai.DecisionAssistRequest) any {
		return map[string]any{
			"requestId":    req.RequestID,
			"surface":      req.Surface,
			"must_abstain": false,
			"suggestions": []any{map[string]any{
				"type": "delete_todo", "confidence": 0.9, "rationale": "cleanup", "payload": map[string]any{},
			}},
		}
	}}
	uc := f.usecase(bad)
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "Pay invoice"})

	res, err := uc.GenerateTodoBound(context.Background(), "u1", todo.ID, domain.SurfaceOnCreate)
	require.NoError(t, err)
	require.NotNil(t, res.Envelope.ModelInfo)
	assert.Equal(t, "heuristic", res.Envelope.ModelInfo.Provider)
	for _, s := range res.Envelope.Suggestions {
		assert.NotEqual(t, domain.SuggestionType("delete_todo"), s.Type)
	}
	assert.Equal(t, "finance", findType(t, res.Envelope, domain.TypeSetCategory).Payload.(*domain.SetCategoryPayload).Category)
}

func todayPlanStub(preview []string, extra string) *stubGenerator {
	return &stubGenerator{envelope: func(req ai.DecisionAssistRequest) any {
		items := make([]any, 0, len(preview))
		for i, id := range preview {
			items = append(items, map[string]any{"todoId": id, "rank": i + 1, "timeEstimateMin": 30, "rationale": "ranked"})
		}
		return map[string]any{
			"requestId":    req.RequestID,
			"surface":      "today_plan",
			"must_abstain": false,
			"suggestions": []any{
				map[string]any{
					"type": "set_priority", "confidence": 0.7, "rationale": "due soon",
					"payload": map[string]any{"todoId": preview[1], "priority": "high"}, "suggestionId": "s-high",
				},
				map[string]any{
					"type": "propose_next_action", "confidence": 0.6, "rationale": "not shown",
					"payload": map[string]any{"todoId": extra, "text": "start"}, "suggestionId": "s-hidden",
				},
			},
			"planPreview": map[string]any{"topN": 3, "items": items},
		}
	}}
}

func TestTodayPlan_ConfirmationThenIdempotentApply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "A"})
	b := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "B"})
	c := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "C"})
	d := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "D"})
	uc := f.usecase(todayPlanStub([]string{a.ID, b.ID, c.ID}, d.ID))

	gen, err := uc.GenerateTodayPlan(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, gen.Envelope.Suggestions, 1)
	assert.Equal(t, "s-high", gen.Envelope.Suggestions[0].SuggestionID)
	require.NotNil(t, gen.Envelope.PlanPreview)
	assert.Len(t, gen.Envelope.PlanPreview.Items, 3)

	_, err = uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{SuggestionIDs: []string{"s-high"}})
	var applyErr *ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, http.StatusBadRequest, applyErr.Status)
	assert.Equal(t, CodeConfirmationRequired, applyErr.Code)
	for _, todo := range []*tododomain.Todo{a, b, c, d} {
		assert.Equal(t, tododomain.PriorityMedium, f.reload(t, "u1", todo.ID).Priority)
	}

	applied, err := uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{SuggestionIDs: []string{"s-high"}, Confirmed: true})
	require.NoError(t, err)
	assert.True(t, applied.OK)
	assert.False(t, applied.Idempotent)
	assert.Equal(t, []string{b.ID}, applied.UpdatedTodoIDs)
	assert.Equal(t, tododomain.PriorityHigh, f.reload(t, "u1", b.ID).Priority)
	assert.Equal(t, domain.StatusAccepted, applied.Suggestion.Status)

	again, err := uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{SuggestionIDs: []string{"s-high"}, Confirmed: true})
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, []string{b.ID}, again.UpdatedTodoIDs)

	assert.Equal(t, []string{telemetry.EventGenerate, telemetry.EventApply}, f.sink.names())
}

func TestTodayPlan_UnknownSelection(t *testing.T) {
	f := newFixture(t)
	a := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "A"})
	b := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "B"})
	uc := f.usecase(todayPlanStub([]string{a.ID, b.ID}, "ghost"))

	gen, err := uc.GenerateTodayPlan(context.Background(), "u1", 0)
	require.NoError(t, err)
	_, err = uc.Apply(context.Background(), "u1", gen.Suggestion.ID, ApplyRequest{SuggestionIDs: []string{"s-hidden"}})
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)
}

func TestApply_UndoRestoresAndRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := f.usecase(ai.NewHeuristicService())
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "Taxes"})

	gen, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceTaskDrawer)
	require.NoError(t, err)
	rewrite := findType(t, gen.Envelope, domain.TypeRewriteTitle)

	_, err = uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{})
	assert.ErrorIs(t, err, domain.ErrSelectionRequired)

	_, err = uc.Undo(ctx, "u1", gen.Suggestion.ID)
	assert.ErrorIs(t, err, domain.ErrApplyConflict)

	res, err := uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{SuggestionID: rewrite.SuggestionID})
	require.NoError(t, err)
	assert.Equal(t, []string{todo.ID}, res.UpdatedTodoIDs)
	assert.Equal(t, "Finish: Taxes", f.reload(t, "u1", todo.ID).Title)

	undone, err := uc.Undo(ctx, "u1", gen.Suggestion.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, undone.Status)
	assert.Equal(t, "undo", undone.RejectionReason())
	assert.Equal(t, "Taxes", f.reload(t, "u1", todo.ID).Title)

	_, err = uc.Undo(ctx, "u1", gen.Suggestion.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyHandled)
	_, err = uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{SuggestionID: rewrite.SuggestionID})
	assert.ErrorIs(t, err, domain.ErrAlreadyHandled)

	assert.Equal(t, []string{telemetry.EventGenerate, telemetry.EventApply, telemetry.EventUndo}, f.sink.names())
}

func TestApply_NotSupportedSurfacesAsApplyError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := f.usecase(ai.NewHeuristicService())
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "Taxes"})

	gen, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceOnCreate)
	require.NoError(t, err)
	ask := findType(t, gen.Envelope, domain.TypeAskClarification)

	_, err = uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{SuggestionID: ask.SuggestionID})
	var applyErr *ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, CodeNotSupported, applyErr.Code)

	record, err := uc.GetSuggestion("u1", gen.Suggestion.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, record.Status)
	assert.False(t, record.Applied())
}

func TestGenerate_RejectBurstAbstainsWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := f.usecase(ai.NewHeuristicService())
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "Clean the garage"})

	for i := 0; i < 3; i++ {
		res, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceOnCreate)
		require.NoError(t, err)
		require.False(t, res.Throttle.Throttled)
		_, err = uc.UpdateStatus(ctx, "u1", res.Suggestion.ID, StatusRequest{Status: domain.StatusRejected, Reason: "not useful"})
		require.NoError(t, err)
	}

	res, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceOnCreate)
	require.NoError(t, err)
	assert.True(t, res.Throttle.Throttled)
	require.NotNil(t, res.Throttle.Reason)
	assert.Equal(t, domain.ThrottleRejectBurst, *res.Throttle.Reason)
	assert.Nil(t, res.Suggestion)
	assert.True(t, res.Envelope.MustAbstain)
	assert.Empty(t, res.Envelope.Suggestions)
	assert.Equal(t, int64(3), f.recordCount(t, "u1"))

	// other surfaces are unaffected
	drawer, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceTaskDrawer)
	require.NoError(t, err)
	assert.False(t, drawer.Throttle.Throttled)
}

func TestGenerate_QuotaExceeded(t *testing.T) {
	f := newFixture(t)
	quota := NewQuotaService(f.suggestions, nil, PlanLimits{domain.PlanFree: 2})
	uc := NewAssistUsecase(f.suggestions, f.todos, f.projects, ai.NewHeuristicService(), quota, f.applier, f.normalizer, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := uc.GeneratePlanFromGoal(ctx, "u1", "Run a half marathon")
		require.NoError(t, err)
		require.NotNil(t, res.Usage)
		assert.Equal(t, i+1, res.Usage.Used)
	}

	_, err := uc.GeneratePlanFromGoal(ctx, "u1", "Run a half marathon")
	var quotaErr *domain.QuotaExceededError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, 2, quotaErr.Usage.Used)
	assert.Zero(t, quotaErr.Usage.Remaining)
	assert.Equal(t, int64(2), f.recordCount(t, "u1"))

	usage, err := uc.Usage("u2")
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Remaining)
}

func TestPlanFromGoal_ApplyCreatesTodosOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := f.usecase(ai.NewHeuristicService())

	_, err := uc.GeneratePlanFromGoal(ctx, "u1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	gen, err := uc.GeneratePlanFromGoal(ctx, "u1", "Launch the newsletter")
	require.NoError(t, err)
	require.Len(t, gen.Plan.Tasks, 4)
	assert.Equal(t, domain.RecordPlanFromGoal, gen.Suggestion.Type)

	res, err := uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.CreatedCount)
	assert.False(t, res.Idempotent)
	assert.Len(t, res.UpdatedTodoIDs, 4)

	again, err := uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{})
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Zero(t, again.CreatedCount)

	_, total, err := f.todos.FindByUserID("u1", nil, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	_, err = uc.Undo(ctx, "u1", gen.Suggestion.ID)
	assert.ErrorIs(t, err, domain.ErrWrongRecordType)
}

func TestInsights_CountsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := f.usecase(ai.NewHeuristicService())
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "Write the blog post"})

	var ids []string
	for i := 0; i < 3; i++ {
		res, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceTaskDrawer)
		require.NoError(t, err)
		ids = append(ids, res.Suggestion.ID)
	}
	_, err := uc.UpdateStatus(ctx, "u1", ids[0], StatusRequest{Status: domain.StatusRejected, Reason: "Too vague"})
	require.NoError(t, err)
	_, err = uc.UpdateStatus(ctx, "u1", ids[1], StatusRequest{Status: domain.StatusAccepted})
	require.NoError(t, err)

	in, err := uc.Insights("u1")
	require.NoError(t, err)
	assert.Equal(t, 7, in.WindowDays)
	assert.Equal(t, 3, in.GeneratedCount)
	assert.Equal(t, 1, in.AcceptedCount)
	assert.Equal(t, 1, in.RejectedCount)
	require.Len(t, in.TopRejectionReasons, 1)
	assert.Equal(t, "too vague", in.TopRejectionReasons[0].Reason)
	assert.Contains(t, in.Recommendation, "owner")
}

func TestRecordEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uc := f.usecase(ai.NewHeuristicService())
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "Buy milk"})
	gen, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceOnCreate)
	require.NoError(t, err)

	err = uc.RecordEvent(ctx, "u1", telemetry.Event{EventName: telemetry.EventApply})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	err = uc.RecordEvent(ctx, "u2", telemetry.Event{EventName: telemetry.EventView, SuggestionID: gen.Suggestion.ID})
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)

	require.NoError(t, uc.RecordEvent(ctx, "u1", telemetry.Event{EventName: telemetry.EventView, Surface: "on_create", SuggestionID: gen.Suggestion.ID}))
	assert.Equal(t, []string{telemetry.EventGenerate, telemetry.EventView}, f.sink.names())
}
