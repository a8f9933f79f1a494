package usecase

import (
	"context"
	"sync"
	"testing"

	"todo-assist-backend/internal/assist/domain"
	tododomain "todo-assist-backend/internal/todo/domain"
	"todo-assist-backend/pkg/ai"
	"todo-assist-backend/pkg/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitStub(todoID string) *stubGenerator {
	return &stubGenerator{envelope: func(req ai.DecisionAssistRequest) any {
		return map[string]any{
			"requestId":    req.RequestID,
			"surface":      req.Surface,
			"must_abstain": false,
			"suggestions": []any{map[string]any{
				"type": "split_subtasks", "confidence": 0.8, "rationale": "too big", "suggestionId": "s-split",
				"payload": map[string]any{"todoId": todoID, "subtasks": []any{
					map[string]any{"title": "Gather receipts", "order": 1},
					map[string]any{"title": "Fill the form", "order": 2},
				}},
			}},
		}
	}}
}

func TestApply_ConcurrentCallersApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "File taxes"})
	uc := f.usecase(splitStub(todo.ID))

	gen, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceTaskDrawer)
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		responses = make([]*ApplyResponse, callers)
		errs      = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			responses[i], errs[i] = uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{SuggestionID: "s-split"})
		}(i)
	}
	close(start)
	wg.Wait()

	fresh := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.True(t, responses[i].OK)
		if !responses[i].Idempotent {
			fresh++
		}
		assert.Equal(t, []string{todo.ID}, responses[i].UpdatedTodoIDs)
	}
	assert.Equal(t, 1, fresh)
	assert.Len(t, f.reload(t, "u1", todo.ID).Subtasks, 2)

	record, err := uc.GetSuggestion("u1", gen.Suggestion.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, record.Status)
	assert.Equal(t, []string{todo.ID}, record.AppliedTodoIDs)

	applies := 0
	for _, name := range f.sink.names() {
		if name == telemetry.EventApply {
			applies++
		}
	}
	assert.Equal(t, 1, applies)
}

func TestApply_FailedApplyLeavesRecordClaimable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	todo := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "File taxes"})
	uc := f.usecase(splitStub(todo.ID))

	gen, err := uc.GenerateTodoBound(ctx, "u1", todo.ID, domain.SurfaceTaskDrawer)
	require.NoError(t, err)

	// The todo disappears between generation and apply
	require.NoError(t, f.db.Delete(&tododomain.Todo{}, "id = ?", todo.ID).Error)
	_, err = uc.Apply(ctx, "u1", gen.Suggestion.ID, ApplyRequest{SuggestionID: "s-split"})
	require.Error(t, err)

	record, err := uc.GetSuggestion("u1", gen.Suggestion.ID)
	require.NoError(t, err)
	assert.False(t, record.Applied())
	assert.Equal(t, domain.StatusPending, record.Status)
}

func TestApplyTodayPlan_UnboundSuggestionNeverGatesConfirmation(t *testing.T) {
	f := newFixture(t)
	a := f.todo(t, "u1", tododomain.CreateTodoInput{Title: "A"})

	res, err := f.applier.ApplyTodayPlan("u1", []domain.Suggestion{
		sug("1", &domain.SetPriorityPayload{Priority: "high"}),
		sug("2", &domain.NextActionPayload{Binding: bound(a.ID), Text: "go"}),
	}, false, nil)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, []string{a.ID}, res.UpdatedTodoIDs)
	assert.Equal(t, "Next action: go", f.reload(t, "u1", a.ID).Notes)
}
