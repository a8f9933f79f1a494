package usecase

import (
	"todo-assist-backend/internal/todo/domain"
)

// TodoUsecase defines the interface for todo business logic
type TodoUsecase interface {
	// CreateTodo creates a new todo at the end of the user's list
	CreateTodo(userID string, req CreateTodoRequest) (*domain.Todo, error)

	// GetTodo retrieves a todo owned by the user
	GetTodo(userID, todoID string) (*domain.Todo, error)

	// ListTodos lists the user's todos with an optional status filter
	ListTodos(userID string, status *string, limit, offset int) ([]*domain.Todo, int64, error)

	// UpdateTodo updates an existing todo
	UpdateTodo(userID, todoID string, updates TodoUpdateRequest) (*domain.Todo, error)

	// AddSubtask appends a subtask to a todo
	AddSubtask(userID, todoID, title string) (*domain.Subtask, error)

	// ListProjects returns the user's projects
	ListProjects(userID string) ([]*domain.Project, error)

	// CreateProject creates a project, or returns the existing one with that name
	CreateProject(userID, name string) (*domain.Project, error)
}

// CreateTodoRequest represents the request body for creating a todo
type CreateTodoRequest struct {
	Title     string  `json:"title" binding:"required"`
	Notes     string  `json:"notes"`
	DueDate   *string `json:"due_date"`
	Priority  string  `json:"priority"`
	Category  string  `json:"category"`
	ProjectID *string `json:"project_id"`
}

// TodoUpdateRequest represents the fields that can be updated
type TodoUpdateRequest struct {
	Title     *string `json:"title,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	DueDate   *string `json:"due_date,omitempty"`
	Priority  *string `json:"priority,omitempty"`
	Category  *string `json:"category,omitempty"`
	ProjectID *string `json:"project_id,omitempty"`
	Status    *string `json:"status,omitempty"`
}
