package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"todo-assist-backend/internal/assist/domain"
	"todo-assist-backend/internal/assist/usecase"
	tododomain "todo-assist-backend/internal/todo/domain"
	"todo-assist-backend/pkg/telemetry"

	"github.com/gin-gonic/gin"
)

// AssistHandler handles decision-assist HTTP requests
type AssistHandler struct {
	assistUsecase usecase.AssistUsecase
}

// NewAssistHandler creates a new AssistHandler
func NewAssistHandler(assistUsecase usecase.AssistUsecase) *AssistHandler {
	return &AssistHandler{
		assistUsecase: assistUsecase,
	}
}

// RegisterRoutes mounts the /ai routes on an authenticated group
func (h *AssistHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/todos/:id/suggestions", h.GenerateForTodo)
	g.POST("/today-plan", h.GenerateTodayPlan)
	g.POST("/plans", h.GeneratePlan)
	g.GET("/suggestions", h.ListSuggestions)
	g.GET("/suggestions/:id", h.GetSuggestion)
	g.PATCH("/suggestions/:id/status", h.UpdateStatus)
	g.POST("/suggestions/:id/apply", h.Apply)
	g.POST("/suggestions/:id/undo", h.Undo)
	g.GET("/usage", h.Usage)
	g.GET("/insights", h.Insights)
	g.POST("/events", h.RecordEvent)
}

// GenerateForTodo generates on_create or task_drawer suggestions
// POST /api/ai/todos/:id/suggestions
func (h *AssistHandler) GenerateForTodo(c *gin.Context) {
	var req struct {
		Surface domain.Surface `json:"surface" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.assistUsecase.GenerateTodoBound(c.Request.Context(), c.GetString("userID"), c.Param("id"), req.Surface)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GenerateTodayPlan ranks open todos and suggests edits for the top ones
// POST /api/ai/today-plan
func (h *AssistHandler) GenerateTodayPlan(c *gin.Context) {
	var req struct {
		TopN int `json:"topN"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.assistUsecase.GenerateTodayPlan(c.Request.Context(), c.GetString("userID"), req.TopN)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GeneratePlan breaks a goal into todos
// POST /api/ai/plans
func (h *AssistHandler) GeneratePlan(c *gin.Context) {
	var req struct {
		Goal string `json:"goal" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.assistUsecase.GeneratePlanFromGoal(c.Request.Context(), c.GetString("userID"), req.Goal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListSuggestions returns the newest suggestion records
// GET /api/ai/suggestions?limit=20
func (h *AssistHandler) ListSuggestions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := h.assistUsecase.ListSuggestions(c.GetString("userID"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []*domain.SuggestionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": records})
}

// GetSuggestion returns one suggestion record
// GET /api/ai/suggestions/:id
func (h *AssistHandler) GetSuggestion(c *gin.Context) {
	record, err := h.assistUsecase.GetSuggestion(c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// UpdateStatus accepts or rejects a record
// PATCH /api/ai/suggestions/:id/status
func (h *AssistHandler) UpdateStatus(c *gin.Context) {
	var req usecase.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.assistUsecase.UpdateStatus(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Apply executes the selected suggestions of a record
// POST /api/ai/suggestions/:id/apply
func (h *AssistHandler) Apply(c *gin.Context) {
	var req usecase.ApplyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.assistUsecase.Apply(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Undo reverts an applied record
// POST /api/ai/suggestions/:id/undo
func (h *AssistHandler) Undo(c *gin.Context) {
	record, err := h.assistUsecase.Undo(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "suggestion": record})
}

// Usage returns today's generation quota
// GET /api/ai/usage
func (h *AssistHandler) Usage(c *gin.Context) {
	usage, err := h.assistUsecase.Usage(c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// Insights returns the last week of suggestion activity
// GET /api/ai/insights
func (h *AssistHandler) Insights(c *gin.Context) {
	in, err := h.assistUsecase.Insights(c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

// RecordEvent ingests a client-side telemetry event
// POST /api/ai/events
func (h *AssistHandler) RecordEvent(c *gin.Context) {
	var e telemetry.Event
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.assistUsecase.RecordEvent(c.Request.Context(), c.GetString("userID"), e); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func respondError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		applyErr      *usecase.ApplyError
		quotaErr      *domain.QuotaExceededError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "contract_violation", "field": validationErr.Field})
	case errors.As(err, &applyErr):
		c.JSON(applyErr.Status, gin.H{"ok": false, "error": applyErr.Message, "code": applyErr.Code})
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "code": "quota_exceeded", "usage": quotaErr.Usage})
	case errors.Is(err, domain.ErrSuggestionNotFound), errors.Is(err, tododomain.ErrTodoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyHandled), errors.Is(err, domain.ErrApplyConflict), errors.Is(err, domain.ErrWrongRecordType):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrSelectionRequired),
		errors.Is(err, domain.ErrSurfaceMismatch), errors.Is(err, domain.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
