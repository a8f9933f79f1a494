package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"todo-assist-backend/internal/todo/domain"
	"todo-assist-backend/internal/todo/usecase"

	"github.com/gin-gonic/gin"
)

// TodoHandler handles todo and project HTTP requests
type TodoHandler struct {
	todoUsecase usecase.TodoUsecase
}

// NewTodoHandler creates a new TodoHandler
func NewTodoHandler(todoUsecase usecase.TodoUsecase) *TodoHandler {
	return &TodoHandler{
		todoUsecase: todoUsecase,
	}
}

// GetTodos returns the authenticated user's todos
// GET /api/todos?status=open&limit=50&offset=0
func (h *TodoHandler) GetTodos(c *gin.Context) {
	userID := c.GetString("userID")

	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var statusPtr *string
	if status != "" {
		statusPtr = &status
	}

	todos, total, err := h.todoUsecase.ListTodos(userID, statusPtr, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if todos == nil {
		todos = []*domain.Todo{}
	}

	c.JSON(http.StatusOK, gin.H{
		"todos": todos,
		"total": total,
	})
}

// GetTodoByID returns a specific todo with its subtasks
// GET /api/todos/:id
func (h *TodoHandler) GetTodoByID(c *gin.Context) {
	todo, err := h.todoUsecase.GetTodo(c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

// CreateTodo creates a new todo
// POST /api/todos
func (h *TodoHandler) CreateTodo(c *gin.Context) {
	var req usecase.CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	todo, err := h.todoUsecase.CreateTodo(c.GetString("userID"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, todo)
}

// UpdateTodo updates an existing todo
// PATCH /api/todos/:id
func (h *TodoHandler) UpdateTodo(c *gin.Context) {
	var updates usecase.TodoUpdateRequest
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	todo, err := h.todoUsecase.UpdateTodo(c.GetString("userID"), c.Param("id"), updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

// AddSubtask appends a subtask
// POST /api/todos/:id/subtasks
func (h *TodoHandler) AddSubtask(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subtask, err := h.todoUsecase.AddSubtask(c.GetString("userID"), c.Param("id"), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subtask)
}

// GetProjects returns the user's projects
// GET /api/projects
func (h *TodoHandler) GetProjects(c *gin.Context) {
	projects, err := h.todoUsecase.ListProjects(c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	if projects == nil {
		projects = []*domain.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// CreateProject creates a project by name
// POST /api/projects
func (h *TodoHandler) CreateProject(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.todoUsecase.CreateProject(c.GetString("userID"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTodoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Todo not found"})
	case errors.Is(err, domain.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
	case errors.Is(err, usecase.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
