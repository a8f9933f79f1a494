package repository

import (
	"time"

	"todo-assist-backend/internal/assist/domain"
	tododomain "todo-assist-backend/internal/todo/domain"

	"gorm.io/gorm"
)

// SuggestionRepository persists suggestion records. Every method is scoped to
// the owning user; records of other users read as ErrSuggestionNotFound.
type SuggestionRepository interface {
	Create(record *domain.SuggestionRecord) error
	FindByID(userID, id string) (*domain.SuggestionRecord, error)

	// ListRecent returns the newest records first
	ListRecent(userID string, limit int) ([]*domain.SuggestionRecord, error)

	// ListSince returns records created at or after since, newest first
	ListSince(userID string, since time.Time) ([]*domain.SuggestionRecord, error)

	CountCreatedSince(userID string, since time.Time) (int64, error)

	// LatestRejected returns the most recently rejected record of the given
	// type, or nil when there is none
	LatestRejected(userID string, recordType domain.RecordType) (*domain.SuggestionRecord, error)

	// UpdateStatus moves a record to accepted or rejected. Rejected records
	// are terminal and yield ErrAlreadyHandled.
	UpdateStatus(userID, id string, status domain.RecordStatus, reason string) (*domain.SuggestionRecord, error)

	// WithTx returns a repository bound to tx
	WithTx(tx *gorm.DB) SuggestionRepository

	// ClaimApply stamps a single-todo or today-plan record as applied. Call it
	// inside the transaction that writes the todos, before the first write.
	// Exactly one caller wins; the others get ErrAlreadyApplied, or
	// ErrAlreadyHandled when the record was rejected.
	ClaimApply(userID, id, reason string) error

	// RecordApplied stores the todos a claimed apply touched and their undo state
	RecordApplied(userID, id string, todoIDs []string, undo []domain.TodoRestore) error

	// ApplyPlanSuggestionTransaction creates the todos of a plan_from_goal
	// record and flips it to accepted in one transaction.
	ApplyPlanSuggestionTransaction(userID, id string, plan *domain.GoalPlan, reason string) (*PlanApplyResult, error)
}

// PlanApplyResult is the outcome of applying a generated plan
type PlanApplyResult struct {
	CreatedCount int                      `json:"createdCount"`
	Todos        []*tododomain.Todo       `json:"todos"`
	Suggestion   *domain.SuggestionRecord `json:"suggestion"`
	Idempotent   bool                     `json:"idempotent,omitempty"`
}
