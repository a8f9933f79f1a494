package repository

import (
	"todo-assist-backend/internal/todo/domain"

	"gorm.io/gorm"
)

// TodoRepository defines the interface for todo data access.
// Every method is scoped to the owning user.
type TodoRepository interface {
	// Create creates a todo at the end of the user's list
	Create(userID string, input domain.CreateTodoInput) (*domain.Todo, error)

	// FindByID returns the todo with its subtasks, or domain.ErrTodoNotFound
	FindByID(userID, id string) (*domain.Todo, error)

	// FindByUserID lists the user's todos with an optional status filter
	FindByUserID(userID string, status *domain.TodoStatus, limit, offset int) ([]*domain.Todo, int64, error)

	// ListOpen returns open todos ordered by urgency
	ListOpen(userID string, limit int) ([]*domain.Todo, error)

	// Update writes the non-nil fields of patch and returns the fresh todo
	Update(userID, id string, patch domain.TodoPatch) (*domain.Todo, error)

	// CreateSubtask appends a subtask to the todo
	CreateSubtask(userID, todoID, title string) (*domain.Subtask, error)

	// NextOrder returns the next free sort position in the user's list
	NextOrder(userID string) (int, error)

	// WithTx returns a repository bound to tx
	WithTx(tx *gorm.DB) TodoRepository
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	FindAll(userID string) ([]*domain.Project, error)
	FindByID(userID, id string) (*domain.Project, error)

	// UpsertByName returns the user's project with that name, creating it if needed
	UpsertByName(userID, name string) (*domain.Project, error)

	WithTx(tx *gorm.DB) ProjectRepository
}
