package repository

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"todo-assist-backend/internal/assist/domain"
	tododomain "todo-assist-backend/internal/todo/domain"
	todorepo "todo-assist-backend/internal/todo/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errLostRace aborts a plan transaction whose record was applied by a
// concurrent caller after the pre-check
var errLostRace = errors.New("suggestion applied concurrently")

// afterPlanTodoCreated runs after each todo a plan transaction creates.
// Tests use it to inject faults.
var afterPlanTodoCreated func(index int) error

// suggestionRepository implements SuggestionRepository using GORM
type suggestionRepository struct {
	db       *gorm.DB
	todos    todorepo.TodoRepository
	projects todorepo.ProjectRepository
}

// NewSuggestionRepository creates a new instance of suggestionRepository.
// todos and projects are rebound to the plan transaction when applying.
func NewSuggestionRepository(db *gorm.DB, todos todorepo.TodoRepository, projects todorepo.ProjectRepository) SuggestionRepository {
	return &suggestionRepository{
		db:       db,
		todos:    todos,
		projects: projects,
	}
}

func (r *suggestionRepository) Create(record *domain.SuggestionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Status == "" {
		record.Status = domain.StatusPending
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	return r.db.Create(record).Error
}

func (r *suggestionRepository) FindByID(userID, id string) (*domain.SuggestionRecord, error) {
	return findRecord(r.db, userID, id)
}

func findRecord(db *gorm.DB, userID, id string) (*domain.SuggestionRecord, error) {
	var record domain.SuggestionRecord
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSuggestionNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *suggestionRepository) ListRecent(userID string, limit int) ([]*domain.SuggestionRecord, error) {
	var records []*domain.SuggestionRecord
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *suggestionRepository) ListSince(userID string, since time.Time) ([]*domain.SuggestionRecord, error) {
	var records []*domain.SuggestionRecord
	err := r.db.Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

func (r *suggestionRepository) CountCreatedSince(userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&domain.SuggestionRecord{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

func (r *suggestionRepository) LatestRejected(userID string, recordType domain.RecordType) (*domain.SuggestionRecord, error) {
	var record domain.SuggestionRecord
	err := r.db.Where("user_id = ? AND type = ? AND status = ?", userID, recordType, domain.StatusRejected).
		Order("updated_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *suggestionRepository) UpdateStatus(userID, id string, status domain.RecordStatus, reason string) (*domain.SuggestionRecord, error) {
	if status != domain.StatusAccepted && status != domain.StatusRejected {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	current, err := r.FindByID(userID, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.StatusRejected {
		return nil, domain.ErrAlreadyHandled
	}
	if current.Status == domain.StatusAccepted && status == domain.StatusAccepted {
		return current, nil
	}

	now := time.Now()
	res := r.db.Model(&domain.SuggestionRecord{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, current.Status).
		Select("Status", "Feedback", "UpdatedAt").
		Updates(&domain.SuggestionRecord{
			Status:    status,
			Feedback:  &domain.Feedback{Status: status, Reason: strings.TrimSpace(reason), At: now},
			UpdatedAt: now,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	updated, err := r.FindByID(userID, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		// A concurrent writer moved the record first
		if updated.Status == domain.StatusRejected {
			return nil, domain.ErrAlreadyHandled
		}
		if updated.Status != status {
			return r.UpdateStatus(userID, id, status, reason)
		}
	}
	return updated, nil
}

func (r *suggestionRepository) WithTx(tx *gorm.DB) SuggestionRepository {
	if tx == nil {
		return r
	}
	return &suggestionRepository{
		db:       tx,
		todos:    r.todos.WithTx(tx),
		projects: r.projects.WithTx(tx),
	}
}

func (r *suggestionRepository) ClaimApply(userID, id, reason string) error {
	now := time.Now()
	res := r.db.Model(&domain.SuggestionRecord{}).
		Where("id = ? AND user_id = ? AND status <> ? AND applied_at IS NULL", id, userID, domain.StatusRejected).
		Select("Status", "Feedback", "AppliedAt", "UpdatedAt").
		Updates(&domain.SuggestionRecord{
			Status:    domain.StatusAccepted,
			Feedback:  &domain.Feedback{Status: domain.StatusAccepted, Reason: strings.TrimSpace(reason), At: now},
			AppliedAt: &now,
			UpdatedAt: now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := findRecord(r.db, userID, id)
	if err != nil {
		return err
	}
	if current.Status == domain.StatusRejected {
		return domain.ErrAlreadyHandled
	}
	return domain.ErrAlreadyApplied
}

func (r *suggestionRepository) RecordApplied(userID, id string, todoIDs []string, undo []domain.TodoRestore) error {
	if todoIDs == nil {
		todoIDs = []string{}
	}
	if undo == nil {
		undo = []domain.TodoRestore{}
	}
	return r.db.Model(&domain.SuggestionRecord{}).
		Where("id = ? AND user_id = ?", id, userID).
		Select("AppliedTodoIDs", "UndoState").
		Updates(&domain.SuggestionRecord{AppliedTodoIDs: todoIDs, UndoState: undo}).Error
}

func (r *suggestionRepository) ApplyPlanSuggestionTransaction(userID, id string, plan *domain.GoalPlan, reason string) (*PlanApplyResult, error) {
	current, err := r.FindByID(userID, id)
	if err != nil {
		return nil, err
	}
	if current.Type != domain.RecordPlanFromGoal {
		return nil, fmt.Errorf("%w: %s is not a plan suggestion", domain.ErrWrongRecordType, current.Type)
	}
	if current.Status == domain.StatusRejected {
		return nil, domain.ErrAlreadyHandled
	}
	if current.Applied() {
		return r.idempotentResult(current)
	}
	if plan == nil || len(plan.Tasks) == 0 {
		return nil, fmt.Errorf("%w: plan has no tasks", domain.ErrApplyConflict)
	}

	var result *PlanApplyResult
	err = r.db.Transaction(func(tx *gorm.DB) error {
		locked, err := lockRecord(tx, userID, id)
		if err != nil {
			return err
		}
		if locked.Status == domain.StatusRejected {
			return domain.ErrAlreadyHandled
		}
		if locked.Applied() {
			return errLostRace
		}

		todos := r.todos.WithTx(tx)
		projects := r.projects.WithTx(tx)
		projectIDs := map[string]string{}

		created := make([]*tododomain.Todo, 0, len(plan.Tasks))
		for i, task := range plan.Tasks {
			input, err := planTodoInput(task)
			if err != nil {
				return err
			}
			if name := strings.TrimSpace(task.ProjectName); name != "" {
				projectID, ok := projectIDs[strings.ToLower(name)]
				if !ok {
					project, err := projects.UpsertByName(userID, name)
					if err != nil {
						return fmt.Errorf("upsert project %q: %w", name, err)
					}
					projectID = project.ID
					projectIDs[strings.ToLower(name)] = projectID
				}
				input.ProjectID = &projectID
			}

			todo, err := todos.Create(userID, input)
			if err != nil {
				return fmt.Errorf("create todo %d: %w", i, err)
			}
			for _, draft := range orderedDrafts(task.Subtasks) {
				subtask, err := todos.CreateSubtask(userID, todo.ID, draft.Title)
				if err != nil {
					return fmt.Errorf("create subtask for todo %d: %w", i, err)
				}
				todo.Subtasks = append(todo.Subtasks, *subtask)
			}
			created = append(created, todo)

			if afterPlanTodoCreated != nil {
				if err := afterPlanTodoCreated(i); err != nil {
					return err
				}
			}
		}

		ids := make([]string, 0, len(created))
		for _, todo := range created {
			ids = append(ids, todo.ID)
		}
		now := time.Now()
		res := tx.Model(&domain.SuggestionRecord{}).
			Where("id = ? AND user_id = ? AND status <> ? AND applied_at IS NULL", id, userID, domain.StatusRejected).
			Select("Status", "Feedback", "AppliedAt", "AppliedTodoIDs", "UpdatedAt").
			Updates(&domain.SuggestionRecord{
				Status:         domain.StatusAccepted,
				Feedback:       &domain.Feedback{Status: domain.StatusAccepted, Reason: strings.TrimSpace(reason), At: now},
				AppliedAt:      &now,
				AppliedTodoIDs: ids,
				UpdatedAt:      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}

		record, err := findRecord(tx, userID, id)
		if err != nil {
			return err
		}
		result = &PlanApplyResult{
			CreatedCount: len(created),
			Todos:        created,
			Suggestion:   record,
		}
		return nil
	})

	if errors.Is(err, errLostRace) {
		log.Printf("[SuggestionRepository] plan %s applied concurrently, returning idempotent result", id)
		latest, findErr := r.FindByID(userID, id)
		if findErr != nil {
			return nil, findErr
		}
		if latest.Status == domain.StatusRejected {
			return nil, domain.ErrAlreadyHandled
		}
		return r.idempotentResult(latest)
	}
	if err != nil {
		return nil, err
	}
	if inv, ok := r.projects.(todorepo.Invalidator); ok {
		inv.Invalidate(userID)
	}
	return result, nil
}

// lockRecord reads the record inside tx, taking a row lock where the
// dialect supports one
func lockRecord(tx *gorm.DB, userID, id string) (*domain.SuggestionRecord, error) {
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return findRecord(tx, userID, id)
}

func (r *suggestionRepository) idempotentResult(record *domain.SuggestionRecord) (*PlanApplyResult, error) {
	todos := make([]*tododomain.Todo, 0, len(record.AppliedTodoIDs))
	for _, todoID := range record.AppliedTodoIDs {
		todo, err := r.todos.FindByID(record.UserID, todoID)
		if errors.Is(err, tododomain.ErrTodoNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	return &PlanApplyResult{
		CreatedCount: len(record.AppliedTodoIDs),
		Todos:        todos,
		Suggestion:   record,
		Idempotent:   true,
	}, nil
}

func planTodoInput(task domain.PlanTask) (tododomain.CreateTodoInput, error) {
	input := tododomain.CreateTodoInput{
		Title:    task.Title,
		Notes:    task.Notes,
		Priority: tododomain.ParsePriority(task.Priority),
		Category: task.Category,
	}
	if task.DueDateISO != "" {
		due, err := domain.ParseDate(task.DueDateISO)
		if err != nil {
			return input, fmt.Errorf("task %q: %w", task.Title, err)
		}
		input.DueDate = &due
	}
	return input, nil
}

func orderedDrafts(drafts []domain.SubtaskDraft) []domain.SubtaskDraft {
	out := append([]domain.SubtaskDraft(nil), drafts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
