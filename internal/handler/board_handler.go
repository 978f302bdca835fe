package handler

import (
	"context"
	"errors"
	"net/http"

	"kanbandash/internal/kanban"
	"kanbandash/internal/middleware"
	"kanbandash/internal/repository"
	"kanbandash/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BoardService is implemented by service.BoardService.
type BoardService interface {
	FetchBoardState(ctx context.Context, userID uuid.UUID) (*kanban.NormalizedState, error)
	ListTasks(ctx context.Context, userID uuid.UUID, columnIDs []uuid.UUID) ([]kanban.TaskRecord, error)
	CreateTask(ctx context.Context, userID uuid.UUID, in service.CreateTaskInput) (kanban.TaskRecord, error)
	ArchiveTask(ctx context.Context, userID, taskID uuid.UUID) error
	MoveTask(ctx context.Context, userID, taskID, columnID uuid.UUID, order float64) (kanban.TaskRecord, error)
}

var _ BoardService = (*service.BoardService)(nil)

type BoardHandler struct {
	svc BoardService
}

func NewBoardHandler(svc BoardService) *BoardHandler {
	return &BoardHandler{svc: svc}
}

// Get godoc
// @Summary      Get the caller's board
// @Description  Returns the normalized board, creating the default board on first call
// @Tags         Boards
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} kanban.NormalizedState
// @Failure      401 {object} map[string]string
// @Router       /api/board [get]
func (h *BoardHandler) Get(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	state, err := h.svc.FetchBoardState(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "Failed to load board")
		return
	}
	c.JSON(http.StatusOK, state)
}

// writeError maps service and repository errors onto status codes.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, repository.ErrColumnNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Column not found"})
	case errors.Is(err, repository.ErrBoardNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
