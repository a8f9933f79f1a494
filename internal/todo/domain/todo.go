package domain

import (
	"errors"
	"time"
)

// Priority represents todo priority level
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TodoStatus represents the current state of a todo
type TodoStatus string

const (
	TodoStatusOpen      TodoStatus = "open"
	TodoStatusCompleted TodoStatus = "completed"
)

var (
	ErrTodoNotFound    = errors.New("todo not found")
	ErrProjectNotFound = errors.New("project not found")
)

// Todo represents a to-do item owned by a single user
type Todo struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	UserID    string     `json:"user_id" gorm:"index;not null"`
	Title     string     `json:"title" gorm:"not null"`
	Notes     string     `json:"notes,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Priority  Priority   `json:"priority" gorm:"default:medium"`
	Category  string     `json:"category,omitempty"`
	ProjectID *string    `json:"project_id,omitempty" gorm:"index"`
	Order     int        `json:"order" gorm:"column:sort_order;default:0"`
	Status    TodoStatus `json:"status" gorm:"default:open;index"`
	Subtasks  []Subtask  `json:"subtasks,omitempty" gorm:"foreignKey:TodoID"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Subtask is a checklist entry of a todo
type Subtask struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TodoID    string    `json:"todo_id" gorm:"index;not null"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Title     string    `json:"title" gorm:"not null"`
	Order     int       `json:"order" gorm:"column:sort_order;default:0"`
	Completed bool      `json:"completed" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// Project groups todos; names are unique per user
type Project struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_projects_user_name;not null"`
	Name      string    `json:"name" gorm:"uniqueIndex:idx_projects_user_name;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TodoPatch is a partial update. Nil fields are left untouched;
// ClearDueDate removes the due date.
type TodoPatch struct {
	Title        *string     `json:"title,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	DueDate      *time.Time  `json:"due_date,omitempty"`
	ClearDueDate bool        `json:"clear_due_date,omitempty"`
	Priority     *Priority   `json:"priority,omitempty"`
	Category     *string     `json:"category,omitempty"`
	ProjectID    *string     `json:"project_id,omitempty"`
	Status       *TodoStatus `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Notes == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.Priority == nil && p.Category == nil && p.ProjectID == nil && p.Status == nil
}

// Merge layers next on top of p; fields set in next win
func (p TodoPatch) Merge(next TodoPatch) TodoPatch {
	out := p
	if next.Title != nil {
		out.Title = next.Title
	}
	if next.Notes != nil {
		out.Notes = next.Notes
	}
	if next.DueDate != nil {
		out.DueDate = next.DueDate
		out.ClearDueDate = false
	}
	if next.ClearDueDate {
		out.DueDate = nil
		out.ClearDueDate = true
	}
	if next.Priority != nil {
		out.Priority = next.Priority
	}
	if next.Category != nil {
		out.Category = next.Category
	}
	if next.ProjectID != nil {
		out.ProjectID = next.ProjectID
	}
	if next.Status != nil {
		out.Status = next.Status
	}
	return out
}

// ApplyTo writes the patch onto t in memory
func (p TodoPatch) ApplyTo(t *Todo) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.ClearDueDate {
		t.DueDate = nil
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.ProjectID != nil {
		if *p.ProjectID == "" {
			t.ProjectID = nil
		} else {
			id := *p.ProjectID
			t.ProjectID = &id
		}
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}

// Inverse returns the patch that restores the fields p would change on t
func (p TodoPatch) Inverse(t *Todo) TodoPatch {
	var inv TodoPatch
	if p.Title != nil {
		v := t.Title
		inv.Title = &v
	}
	if p.Notes != nil {
		v := t.Notes
		inv.Notes = &v
	}
	if p.DueDate != nil || p.ClearDueDate {
		if t.DueDate != nil {
			d := *t.DueDate
			inv.DueDate = &d
		} else {
			inv.ClearDueDate = true
		}
	}
	if p.Priority != nil {
		v := t.Priority
		inv.Priority = &v
	}
	if p.Category != nil {
		v := t.Category
		inv.Category = &v
	}
	if p.ProjectID != nil {
		v := ""
		if t.ProjectID != nil {
			v = *t.ProjectID
		}
		inv.ProjectID = &v
	}
	if p.Status != nil {
		v := t.Status
		inv.Status = &v
	}
	return inv
}

// CreateTodoInput holds the fields accepted when creating a todo
type CreateTodoInput struct {
	Title     string
	Notes     string
	DueDate   *time.Time
	Priority  Priority
	Category  string
	ProjectID *string
}

// ParsePriority maps free text onto a priority, defaulting to medium
func ParsePriority(p string) Priority {
	switch p {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}
