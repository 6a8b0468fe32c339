package tasks

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/taskflow/core/internal/pkg/response"
)

type createTaskDTO struct {
	Name string `json:"name" binding:"required"`
}

type updateTaskDTO struct {
	Completed *bool `json:"completed" binding:"required"`
}

// Handler exposes the task registry over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/tasks")
	g.GET("", h.list)
	g.GET("/pending", h.pending)
	g.POST("", h.create)
	g.PATCH("/:id", h.update)
	g.POST("/:id/toggle", h.toggle)
	g.DELETE("/:id", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.svc.All())
}

func (h *Handler) pending(c *gin.Context) {
	response.OK(c, h.svc.Pending())
}

func (h *Handler) create(c *gin.Context) {
	var dto createTaskDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Task name is required.")
		return
	}
	task, err := h.svc.Add(dto.Name)
	switch {
	case errors.Is(err, ErrEmptyName):
		response.BadRequest(c, "Task name is required.")
	case errors.Is(err, ErrDuplicateName):
		response.Conflict(c, fmt.Sprintf("Failed to add task. A task named %q already exists.", dto.Name))
	case errors.Is(err, ErrStorage):
		response.InternalError(c, err)
	default:
		response.Created(c, task)
	}
}

func (h *Handler) update(c *gin.Context) {
	var dto updateTaskDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "A completed flag is required.")
		return
	}
	err := h.svc.SetCompleted(c.Param("id"), *dto.Completed)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "Task not found.")
	case errors.Is(err, ErrStorage):
		response.InternalError(c, err)
	default:
		response.OK(c, gin.H{"message": "Task status updated!"})
	}
}

func (h *Handler) toggle(c *gin.Context) {
	task, err := h.svc.Toggle(c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "Task not found.")
	case errors.Is(err, ErrStorage):
		response.InternalError(c, err)
	default:
		response.OK(c, task)
	}
}

func (h *Handler) remove(c *gin.Context) {
	err := h.svc.Delete(c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "Task not found.")
	case errors.Is(err, ErrStorage):
		response.InternalError(c, err)
	default:
		response.OK(c, gin.H{"message": "Task deleted successfully!"})
	}
}
