package handler

import (
	"net/http"
	"strings"

	"kanbandash/internal/kanban"
	"kanbandash/internal/middleware"
	"kanbandash/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TaskHandler struct {
	svc BoardService
}

func NewTaskHandler(svc BoardService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title    string   `json:"title"`
	Priority string   `json:"priority"`
	DueDate  string   `json:"dueDate"`
	ColumnID string   `json:"columnId"`
	Order    *float64 `json:"order"`
}

type MoveTaskRequest struct {
	ColumnID string   `json:"columnId"`
	Order    *float64 `json:"order"`
}

// List godoc
// @Summary      List active tasks of columns
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        columnIds query string true "Comma separated column ids"
// @Success      200 {array} kanban.TaskRecord
// @Failure      400 {object} map[string]string
// @Router       /api/tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	raw := strings.TrimSpace(c.Query("columnIds"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Column IDs are required"})
		return
	}
	var columnIDs []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid column ID format"})
			return
		}
		columnIDs = append(columnIDs, id)
	}

	records, err := h.svc.ListTasks(c.Request.Context(), userID, columnIDs)
	if err != nil {
		writeError(c, err, "Failed to fetch tasks")
		return
	}
	c.JSON(http.StatusOK, records)
}

// Create godoc
// @Summary      Create a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateTaskRequest true "Task"
// @Success      201 {object} kanban.TaskRecord
// @Failure      400 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /api/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if strings.TrimSpace(req.Title) == "" || req.Priority == "" || req.ColumnID == "" || req.Order == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	priority, err := kanban.ParsePriority(req.Priority)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
		return
	}
	columnID, err := uuid.Parse(req.ColumnID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid column ID format"})
		return
	}

	record, err := h.svc.CreateTask(c.Request.Context(), userID, service.CreateTaskInput{
		Title:    req.Title,
		Priority: priority,
		DueDate:  req.DueDate,
		ColumnID: columnID,
		Order:    *req.Order,
	})
	if err != nil {
		writeError(c, err, "Failed to create task")
		return
	}
	c.JSON(http.StatusCreated, record)
}

// Archive godoc
// @Summary      Archive a task
// @Description  Sets archived_at on a task created by the caller
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200 {object} map[string]bool
// @Failure      404 {object} map[string]string
// @Router       /api/tasks/{id} [delete]
func (h *TaskHandler) Archive(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	if err := h.svc.ArchiveTask(c.Request.Context(), userID, taskID); err != nil {
		writeError(c, err, "Failed to delete task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Move godoc
// @Summary      Move a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        request body MoveTaskRequest true "Destination"
// @Success      200 {object} kanban.TaskRecord
// @Failure      400 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /api/tasks/{id}/move [patch]
func (h *TaskHandler) Move(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ColumnID == "" || req.Order == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	columnID, err := uuid.Parse(req.ColumnID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid column ID format"})
		return
	}

	record, err := h.svc.MoveTask(c.Request.Context(), userID, taskID, columnID, *req.Order)
	if err != nil {
		writeError(c, err, "Failed to move task")
		return
	}
	c.JSON(http.StatusOK, record)
}
