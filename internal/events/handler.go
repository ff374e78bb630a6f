package events

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"banana-studio-backend/internal/middleware"
	"banana-studio-backend/internal/models"
)

const keepAliveInterval = 25 * time.Second

// Stream godoc
// @Summary     Subscribe to job events
// @Description Server-sent events for the authenticated user's generation jobs
// @Tags        events
// @Produce     text/event-stream
// @Security    Bearer
// @Success     200 {string} string "event stream"
// @Failure     401 {object} models.ErrorResponse
// @Router      /events [get]
func (h *Hub) Stream(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	topic := UserTopic(userID)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "streaming unsupported"})
		return
	}

	msgCh := make(chan []byte, 16)
	if !h.Subscribe(msgCh, topic) {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "event hub stopped"})
		return
	}
	defer h.Unsubscribe(msgCh, topic)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	fmt.Fprint(c.Writer, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		case msg := <-msgCh:
			fmt.Fprintf(c.Writer, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
