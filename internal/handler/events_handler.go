package handler

import (
	"net/http"

	"kanbandash/internal/events"
	"kanbandash/internal/middleware"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type EventsHandler struct {
	hub *events.Hub
}

func NewEventsHandler(hub *events.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream godoc
// @Summary      Board invalidation stream
// @Description  Websocket; one {"type":"invalidate"} message per change of the caller's board
// @Tags         Boards
// @Security     BearerAuth
// @Param        token query string false "JWT when the Authorization header cannot be set"
// @Router       /api/board/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	if err := h.hub.Serve(c.Request.Context(), c.Writer, c.Request, userID.String()); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("events stream ended")
	}
}
