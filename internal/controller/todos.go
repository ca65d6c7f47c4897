package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"todo-api/internal/models"
	"todo-api/internal/repository"
	"todo-api/internal/validator"
	"todo-api/pkg/logger"
)

// TodoService is what the handlers need from the service layer.
type TodoService interface {
	List(ctx context.Context) ([]models.Todo, error)
	Get(ctx context.Context, id int64) (models.Todo, error)
	Create(ctx context.Context, in models.NewTodo) (models.Todo, error)
	Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error)
	Delete(ctx context.Context, id int64) error
	Health(ctx context.Context) error
	Ready(ctx context.Context) error
}

// TodoHandler serves the todo HTTP API.
type TodoHandler struct {
	svc TodoService
}

func NewTodoHandler(svc TodoService) *TodoHandler {
	return &TodoHandler{svc: svc}
}

// GetTodos returns every todo as a JSON array.
func (h *TodoHandler) GetTodos(c *gin.Context) {
	todos, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, todos)
}

// GetTodo returns one todo.
func (h *TodoHandler) GetTodo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	t, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// CreateTodo validates the body and stores a new todo.
func (h *TodoHandler) CreateTodo(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	in, err := validator.ValidateCreate(body)
	if err != nil {
		respondError(c, err)
		return
	}
	t, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// UpdateTodo applies a partial update.
func (h *TodoHandler) UpdateTodo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}
	patch, err := validator.ValidateUpdate(body)
	if err != nil {
		respondError(c, err)
		return
	}
	t, err := h.svc.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeleteTodo removes a todo.
func (h *TodoHandler) DeleteTodo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Todo deleted successfully"})
}

// Health reports whether the database answers.
func (h *TodoHandler) Health(c *gin.Context) {
	if err := h.svc.Health(c.Request.Context()); err != nil {
		logger.Error(c.Request.Context(), "Health check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready returns 200 if the database and the cache (when enabled) are reachable.
// Used by K8s readiness probes.
func (h *TodoHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ready(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, validator.Invalid("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func bindBody(c *gin.Context) (any, bool) {
	var body any
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, validator.Invalid(validator.BodyField, "invalid JSON: "+err.Error()))
		return nil, false
	}
	return body, true
}

func respondError(c *gin.Context, err error) {
	var ve *validator.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": ve.Fields})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Todo not found"})
	default:
		logger.Error(c.Request.Context(), "Request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
