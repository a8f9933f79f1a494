package repository_test

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"todo-assist-backend/internal/assist/domain"
	"todo-assist-backend/internal/assist/repository"
	tododomain "todo-assist-backend/internal/todo/domain"
	todorepo "todo-assist-backend/internal/todo/repository"
	"todo-assist-backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	repo     repository.SuggestionRepository
	todos    todorepo.TodoRepository
	projects todorepo.ProjectRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "assist.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tododomain.Project{}, &tododomain.Todo{}, &tododomain.Subtask{}, &domain.SuggestionRecord{}))

	todos := todorepo.NewGormTodoRepository(db)
	projects := todorepo.NewCachedProjectRepository(todorepo.NewGormProjectRepository(db), time.Minute)
	return &fixture{
		db:       db,
		repo:     repository.NewSuggestionRepository(db, todos, projects),
		todos:    todos,
		projects: projects,
	}
}

func (f *fixture) record(t *testing.T, userID string, recordType domain.RecordType) *domain.SuggestionRecord {
	t.Helper()
	rec := &domain.SuggestionRecord{
		UserID: userID,
		Type:   recordType,
		Input:  datatypes.JSON(`{}`),
		Output: datatypes.JSON(`{}`),
	}
	require.NoError(t, f.repo.Create(rec))
	return rec
}

func (f *fixture) todoCount(t *testing.T, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&tododomain.Todo{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func samplePlan() *domain.GoalPlan {
	return &domain.GoalPlan{
		Goal: "Move house",
		Tasks: []domain.PlanTask{
			{Title: "Book movers", Priority: "high", ProjectName: "Move", Subtasks: []domain.SubtaskDraft{
				{Title: "Get quotes", Order: 2},
				{Title: "Shortlist companies", Order: 1},
			}},
			{Title: "Pack kitchen", ProjectName: "move", DueDateISO: "2026-11-20"},
			{Title: "Change address"},
		},
	}
}

func TestCreateAndFind_OwnerScoped(t *testing.T) {
	f := newFixture(t)
	rec := f.record(t, "u1", domain.RecordTaskCritic)
	assert.Equal(t, domain.StatusPending, rec.Status)

	_, err := f.repo.FindByID("u2", rec.ID)
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)

	found, err := f.repo.FindByID("u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordTaskCritic, found.Type)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	f := newFixture(t)

	accepted := f.record(t, "u1", domain.RecordTaskCritic)
	rec, err := f.repo.UpdateStatus("u1", accepted.ID, domain.StatusAccepted, "nice")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, rec.Status)
	require.NotNil(t, rec.Feedback)
	assert.Equal(t, "nice", rec.Feedback.Reason)

	again, err := f.repo.UpdateStatus("u1", accepted.ID, domain.StatusAccepted, "")
	require.NoError(t, err)
	assert.Equal(t, "nice", again.Feedback.Reason, "accepted to accepted is a no-op")

	rejected := f.record(t, "u1", domain.RecordTaskCritic)
	rec, err = f.repo.UpdateStatus("u1", rejected.ID, domain.StatusRejected, "too generic")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rec.Status)
	assert.Equal(t, "too generic", rec.RejectionReason())

	for _, status := range []domain.RecordStatus{domain.StatusAccepted, domain.StatusRejected} {
		_, err = f.repo.UpdateStatus("u1", rejected.ID, status, "")
		assert.ErrorIs(t, err, domain.ErrAlreadyHandled)
	}

	_, err = f.repo.UpdateStatus("u1", accepted.ID, domain.StatusPending, "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.repo.UpdateStatus("u2", accepted.ID, domain.StatusRejected, "")
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)
}

func TestClaimApply_OnlyFirstCallerWins(t *testing.T) {
	f := newFixture(t)
	rec := f.record(t, "u1", domain.RecordTaskCritic)

	require.NoError(t, f.repo.ClaimApply("u1", rec.ID, " helpful "))
	claimed, err := f.repo.FindByID("u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, claimed.Status)
	require.NotNil(t, claimed.AppliedAt)
	assert.Equal(t, "helpful", claimed.Feedback.Reason)

	assert.ErrorIs(t, f.repo.ClaimApply("u1", rec.ID, ""), domain.ErrAlreadyApplied)
	assert.ErrorIs(t, f.repo.ClaimApply("u2", rec.ID, ""), domain.ErrSuggestionNotFound)

	again, err := f.repo.FindByID("u1", rec.ID)
	require.NoError(t, err)
	assert.True(t, claimed.AppliedAt.Equal(*again.AppliedAt))
}

func TestClaimApply_RejectedRecord(t *testing.T) {
	f := newFixture(t)
	rec := f.record(t, "u1", domain.RecordTaskCritic)
	_, err := f.repo.UpdateStatus("u1", rec.ID, domain.StatusRejected, "no")
	require.NoError(t, err)

	assert.ErrorIs(t, f.repo.ClaimApply("u1", rec.ID, ""), domain.ErrAlreadyHandled)
	got, err := f.repo.FindByID("u1", rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AppliedAt)
}

func TestClaimApply_RolledBackWithTransaction(t *testing.T) {
	f := newFixture(t)
	rec := f.record(t, "u1", domain.RecordTaskCritic)
	boom := errors.New("todo write failed")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, f.repo.WithTx(tx).ClaimApply("u1", rec.ID, ""))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := f.repo.FindByID("u1", rec.ID)
	require.NoError(t, err)
	assert.False(t, got.Applied())
	assert.Equal(t, domain.StatusPending, got.Status)
	require.NoError(t, f.repo.ClaimApply("u1", rec.ID, ""))
}

func TestRecordApplied_StoresTodosAndUndoState(t *testing.T) {
	f := newFixture(t)
	rec := f.record(t, "u1", domain.RecordTaskCritic)
	title := "old title"
	undo := []domain.TodoRestore{{TodoID: "t1", Patch: tododomain.TodoPatch{Title: &title}}}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		repo := f.repo.WithTx(tx)
		if err := repo.ClaimApply("u1", rec.ID, ""); err != nil {
			return err
		}
		return repo.RecordApplied("u1", rec.ID, []string{"t1"}, undo)
	})
	require.NoError(t, err)

	stored, err := f.repo.FindByID("u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, stored.AppliedTodoIDs)
	require.Len(t, stored.UndoState, 1)
	require.NotNil(t, stored.UndoState[0].Patch.Title)
	assert.Equal(t, "old title", *stored.UndoState[0].Patch.Title)
}

func TestApplyPlan_CreatesTodosOnce(t *testing.T) {
	f := newFixture(t)
	rec := f.record(t, "u1", domain.RecordPlanFromGoal)

	res, err := f.repo.ApplyPlanSuggestionTransaction("u1", rec.ID, samplePlan(), "looks right")
	require.NoError(t, err)
	assert.False(t, res.Idempotent)
	assert.Equal(t, 3, res.CreatedCount)
	require.Len(t, res.Todos, 3)
	assert.Equal(t, domain.StatusAccepted, res.Suggestion.Status)
	assert.NotNil(t, res.Suggestion.AppliedAt)

	first := res.Todos[0]
	assert.Equal(t, tododomain.PriorityHigh, first.Priority)
	require.Len(t, first.Subtasks, 2)
	assert.Equal(t, "Shortlist companies", first.Subtasks[0].Title)
	require.NotNil(t, first.ProjectID)
	require.NotNil(t, res.Todos[1].ProjectID)
	assert.Equal(t, *first.ProjectID, *res.Todos[1].ProjectID, "project names are matched case-insensitively within a plan")
	assert.Nil(t, res.Todos[2].ProjectID)
	assert.Equal(t, []int{1, 2, 3}, []int{res.Todos[0].Order, res.Todos[1].Order, res.Todos[2].Order})

	again, err := f.repo.ApplyPlanSuggestionTransaction("u1", rec.ID, samplePlan(), "")
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, res.Suggestion.AppliedTodoIDs, again.Suggestion.AppliedTodoIDs)
	assert.Len(t, again.Todos, 3)
	assert.Equal(t, int64(3), f.todoCount(t, "u1"))
}

func TestApplyPlan_ConcurrentCallsCreateOnce(t *testing.T) {
	f := newFixture(t)
	rec := f.record(t, "u1", domain.RecordPlanFromGoal)

	const callers = 6
	var wg sync.WaitGroup
	results := make([]*repository.PlanApplyResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.repo.ApplyPlanSuggestionTransaction("u1", rec.ID, samplePlan(), "")
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if !results[i].Idempotent {
			fresh++
		}
		assert.ElementsMatch(t, results[0].Suggestion.AppliedTodoIDs, results[i].Suggestion.AppliedTodoIDs)
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, int64(3), f.todoCount(t, "u1"))
}

func TestApplyPlan_FaultRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	rec := f.record(t, "u1", domain.RecordPlanFromGoal)

	boom := errors.New("disk on fire")
	restore := repository.SetPlanFaultHook(func(index int) error {
		if index == 1 {
			return boom
		}
		return nil
	})
	_, err := f.repo.ApplyPlanSuggestionTransaction("u1", rec.ID, samplePlan(), "")
	restore()
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int64(0), f.todoCount(t, "u1"))
	var subtasks, projects int64
	require.NoError(t, f.db.Model(&tododomain.Subtask{}).Count(&subtasks).Error)
	require.NoError(t, f.db.Model(&tododomain.Project{}).Count(&projects).Error)
	assert.Zero(t, subtasks)
	assert.Zero(t, projects)

	stored, err := f.repo.FindByID("u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Nil(t, stored.AppliedAt)

	res, err := f.repo.ApplyPlanSuggestionTransaction("u1", rec.ID, samplePlan(), "")
	require.NoError(t, err)
	assert.False(t, res.Idempotent)
	assert.Equal(t, int64(3), f.todoCount(t, "u1"))
}

func TestApplyPlan_RefusesRejectedAndWrongType(t *testing.T) {
	f := newFixture(t)

	rejected := f.record(t, "u1", domain.RecordPlanFromGoal)
	_, err := f.repo.UpdateStatus("u1", rejected.ID, domain.StatusRejected, "")
	require.NoError(t, err)
	_, err = f.repo.ApplyPlanSuggestionTransaction("u1", rejected.ID, samplePlan(), "")
	assert.ErrorIs(t, err, domain.ErrAlreadyHandled)

	critic := f.record(t, "u1", domain.RecordTaskCritic)
	_, err = f.repo.ApplyPlanSuggestionTransaction("u1", critic.ID, samplePlan(), "")
	assert.ErrorIs(t, err, domain.ErrWrongRecordType)

	assert.Equal(t, int64(0), f.todoCount(t, "u1"))
}

func TestCountAndLists(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.record(t, "u1", domain.RecordTaskCritic)
	}
	f.record(t, "u2", domain.RecordTaskCritic)

	n, err := f.repo.CountCreatedSince("u1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = f.repo.CountCreatedSince("u1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	recent, err := f.repo.ListRecent("u1", 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	assert.False(t, recent[0].CreatedAt.Before(recent[1].CreatedAt))

	none, err := f.repo.LatestRejected("u1", domain.RecordTaskCritic)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = f.repo.UpdateStatus("u1", recent[1].ID, domain.StatusRejected, "vague")
	require.NoError(t, err)
	latest, err := f.repo.LatestRejected("u1", domain.RecordTaskCritic)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "vague", latest.RejectionReason())
}
