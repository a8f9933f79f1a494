package domain

import (
	"time"

	tododomain "todo-assist-backend/internal/todo/domain"

	"gorm.io/datatypes"
)

// RecordType identifies which generator produced a suggestion record
type RecordType string

const (
	RecordTaskCritic   RecordType = "task_critic"
	RecordPlanFromGoal RecordType = "plan_from_goal"
	RecordTodayPlan    RecordType = "today_plan"
)

// RecordStatus is the lifecycle state of a suggestion record
type RecordStatus string

const (
	StatusPending  RecordStatus = "pending"
	StatusAccepted RecordStatus = "accepted"
	StatusRejected RecordStatus = "rejected"
)

// Feedback is the latest user signal on a record
type Feedback struct {
	Status RecordStatus `json:"status"`
	Reason string       `json:"reason,omitempty"`
	At     time.Time    `json:"at"`
}

// TodoRestore holds the field values a todo had before an apply
type TodoRestore struct {
	TodoID string               `json:"todo_id"`
	Patch  tododomain.TodoPatch `json:"patch"`
}

// SuggestionRecord is persisted once per generation call and owned by UserID
type SuggestionRecord struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	UserID         string         `json:"user_id" gorm:"index:idx_ai_suggestions_user_created;not null"`
	Type           RecordType     `json:"type" gorm:"index;not null"`
	Surface        Surface        `json:"surface,omitempty" gorm:"index"`
	Input          datatypes.JSON `json:"input"`
	Output         datatypes.JSON `json:"output"`
	Feedback       *Feedback      `json:"feedback,omitempty" gorm:"serializer:json"`
	AppliedAt      *time.Time     `json:"applied_at,omitempty"`
	AppliedTodoIDs []string       `json:"applied_todo_ids,omitempty" gorm:"serializer:json"`
	UndoState      []TodoRestore  `json:"-" gorm:"serializer:json"`
	Status         RecordStatus   `json:"status" gorm:"default:pending;index;not null"`
	CreatedAt      time.Time      `json:"created_at" gorm:"index:idx_ai_suggestions_user_created"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (SuggestionRecord) TableName() string {
	return "ai_suggestions"
}

// Applied reports whether the record has already gone through apply
func (r *SuggestionRecord) Applied() bool {
	return r.AppliedAt != nil || len(r.AppliedTodoIDs) > 0
}

// SignalTime is when the user last acted on the record: the feedback time
// when present, otherwise the last update, otherwise creation.
func (r *SuggestionRecord) SignalTime() time.Time {
	if r.Feedback != nil && !r.Feedback.At.IsZero() {
		return r.Feedback.At
	}
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt
	}
	return r.CreatedAt
}

// RejectionReason returns the recorded reason for a rejected record
func (r *SuggestionRecord) RejectionReason() string {
	if r.Status != StatusRejected || r.Feedback == nil {
		return ""
	}
	return r.Feedback.Reason
}
