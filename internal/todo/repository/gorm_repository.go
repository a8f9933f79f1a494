package repository

import (
	"errors"
	"strings"
	"time"

	"todo-assist-backend/internal/todo/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormTodoRepository implements TodoRepository using GORM
type gormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository creates a new GORM-based TodoRepository
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

func (r *gormTodoRepository) WithTx(tx *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: tx}
}

func (r *gormTodoRepository) Create(userID string, input domain.CreateTodoInput) (*domain.Todo, error) {
	order, err := r.NextOrder(userID)
	if err != nil {
		return nil, err
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	now := time.Now()
	todo := &domain.Todo{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     strings.TrimSpace(input.Title),
		Notes:     input.Notes,
		DueDate:   input.DueDate,
		Priority:  priority,
		Category:  input.Category,
		ProjectID: input.ProjectID,
		Order:     order,
		Status:    domain.TodoStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.Create(todo).Error; err != nil {
		return nil, err
	}
	return todo, nil
}

func (r *gormTodoRepository) FindByID(userID, id string) (*domain.Todo, error) {
	var todo domain.Todo
	err := r.db.Preload("Subtasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).Where("id = ? AND user_id = ?", id, userID).First(&todo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTodoNotFound
		}
		return nil, err
	}
	return &todo, nil
}

func (r *gormTodoRepository) FindByUserID(userID string, status *domain.TodoStatus, limit, offset int) ([]*domain.Todo, int64, error) {
	var todos []*domain.Todo
	var total int64

	query := r.db.Model(&domain.Todo{}).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("sort_order ASC, created_at ASC").
		Limit(limit).Offset(offset).Find(&todos).Error
	return todos, total, err
}

func (r *gormTodoRepository) ListOpen(userID string, limit int) ([]*domain.Todo, error) {
	var todos []*domain.Todo
	// Due date first (nulls last), then high priority, then list order
	err := r.db.Preload("Subtasks").
		Where("user_id = ? AND status = ?", userID, domain.TodoStatusOpen).
		Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC").
		Order("CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END").
		Order("sort_order ASC").
		Limit(limit).Find(&todos).Error
	return todos, err
}

func (r *gormTodoRepository) Update(userID, id string, patch domain.TodoPatch) (*domain.Todo, error) {
	if patch.Empty() {
		return r.FindByID(userID, id)
	}
	res := r.db.Model(&domain.Todo{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(patchColumns(patch))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrTodoNotFound
	}
	return r.FindByID(userID, id)
}

func (r *gormTodoRepository) CreateSubtask(userID, todoID, title string) (*domain.Subtask, error) {
	var parents int64
	if err := r.db.Model(&domain.Todo{}).Where("id = ? AND user_id = ?", todoID, userID).Count(&parents).Error; err != nil {
		return nil, err
	}
	if parents == 0 {
		return nil, domain.ErrTodoNotFound
	}

	var maxOrder int
	if err := r.db.Model(&domain.Subtask{}).Where("todo_id = ?", todoID).
		Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder).Error; err != nil {
		return nil, err
	}

	subtask := &domain.Subtask{
		ID:        uuid.New().String(),
		TodoID:    todoID,
		UserID:    userID,
		Title:     strings.TrimSpace(title),
		Order:     maxOrder + 1,
		CreatedAt: time.Now(),
	}
	if err := r.db.Create(subtask).Error; err != nil {
		return nil, err
	}
	return subtask, nil
}

func (r *gormTodoRepository) NextOrder(userID string) (int, error) {
	var maxOrder int
	err := r.db.Model(&domain.Todo{}).Where("user_id = ?", userID).
		Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder).Error
	if err != nil {
		return 0, err
	}
	return maxOrder + 1, nil
}

func patchColumns(p domain.TodoPatch) map[string]interface{} {
	cols := map[string]interface{}{"updated_at": time.Now()}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	if p.ClearDueDate {
		cols["due_date"] = nil
	} else if p.DueDate != nil {
		cols["due_date"] = *p.DueDate
	}
	if p.Priority != nil {
		cols["priority"] = *p.Priority
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	if p.ProjectID != nil {
		if *p.ProjectID == "" {
			cols["project_id"] = nil
		} else {
			cols["project_id"] = *p.ProjectID
		}
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	return cols
}

// gormProjectRepository implements ProjectRepository using GORM
type gormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a new GORM-based ProjectRepository
func NewGormProjectRepository(db *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: db}
}

func (r *gormProjectRepository) WithTx(tx *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: tx}
}

func (r *gormProjectRepository) FindAll(userID string) ([]*domain.Project, error) {
	var projects []*domain.Project
	err := r.db.Where("user_id = ?", userID).Order("name ASC").Find(&projects).Error
	return projects, err
}

func (r *gormProjectRepository) FindByID(userID, id string) (*domain.Project, error) {
	var project domain.Project
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

// UpsertByName is an atomic INSERT ... ON CONFLICT (user_id, name) DO NOTHING
// followed by a read of whichever row won.
func (r *gormProjectRepository) UpsertByName(userID, name string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	now := time.Now()
	project := &domain.Project{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(project).Error
	if err != nil {
		return nil, err
	}

	var stored domain.Project
	if err := r.db.Where("user_id = ? AND name = ?", userID, name).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
