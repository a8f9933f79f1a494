package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"todo-assist-backend/internal/todo/domain"
	"todo-assist-backend/internal/todo/repository"
)

var ErrInvalidInput = errors.New("invalid input")

// todoUsecase implements TodoUsecase interface
type todoUsecase struct {
	todoRepo    repository.TodoRepository
	projectRepo repository.ProjectRepository
}

// NewTodoUsecase creates a new instance of todoUsecase
func NewTodoUsecase(todoRepo repository.TodoRepository, projectRepo repository.ProjectRepository) TodoUsecase {
	return &todoUsecase{
		todoRepo:    todoRepo,
		projectRepo: projectRepo,
	}
}

func (u *todoUsecase) CreateTodo(userID string, req CreateTodoRequest) (*domain.Todo, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	input := domain.CreateTodoInput{
		Title:    title,
		Notes:    req.Notes,
		Priority: domain.ParsePriority(req.Priority),
		Category: strings.TrimSpace(req.Category),
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		input.DueDate = &due
	}
	if req.ProjectID != nil && *req.ProjectID != "" {
		if _, err := u.projectRepo.FindByID(userID, *req.ProjectID); err != nil {
			return nil, err
		}
		input.ProjectID = req.ProjectID
	}
	return u.todoRepo.Create(userID, input)
}

func (u *todoUsecase) GetTodo(userID, todoID string) (*domain.Todo, error) {
	return u.todoRepo.FindByID(userID, todoID)
}

func (u *todoUsecase) ListTodos(userID string, status *string, limit, offset int) ([]*domain.Todo, int64, error) {
	var statusFilter *domain.TodoStatus
	if status != nil && *status != "" {
		s := domain.TodoStatus(*status)
		statusFilter = &s
	}
	return u.todoRepo.FindByUserID(userID, statusFilter, limit, offset)
}

func (u *todoUsecase) UpdateTodo(userID, todoID string, updates TodoUpdateRequest) (*domain.Todo, error) {
	var patch domain.TodoPatch
	if updates.Title != nil {
		title := strings.TrimSpace(*updates.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		patch.Title = &title
	}
	patch.Notes = updates.Notes
	if updates.DueDate != nil {
		if *updates.DueDate == "" {
			patch.ClearDueDate = true
		} else {
			due, err := parseDate(*updates.DueDate)
			if err != nil {
				return nil, err
			}
			patch.DueDate = &due
		}
	}
	if updates.Priority != nil {
		p := domain.ParsePriority(*updates.Priority)
		patch.Priority = &p
	}
	patch.Category = updates.Category
	if updates.ProjectID != nil {
		if *updates.ProjectID != "" {
			if _, err := u.projectRepo.FindByID(userID, *updates.ProjectID); err != nil {
				return nil, err
			}
		}
		patch.ProjectID = updates.ProjectID
	}
	if updates.Status != nil {
		s := domain.TodoStatus(*updates.Status)
		if s != domain.TodoStatusOpen && s != domain.TodoStatusCompleted {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
		}
		patch.Status = &s
	}
	return u.todoRepo.Update(userID, todoID, patch)
}

func (u *todoUsecase) AddSubtask(userID, todoID, title string) (*domain.Subtask, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return u.todoRepo.CreateSubtask(userID, todoID, title)
}

func (u *todoUsecase) ListProjects(userID string) ([]*domain.Project, error) {
	return u.projectRepo.FindAll(userID)
}

func (u *todoUsecase) CreateProject(userID, name string) (*domain.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return u.projectRepo.UpsertByName(userID, name)
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrInvalidInput, value)
}
