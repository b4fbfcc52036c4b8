package v1

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StatusSubscriber - подписка на обновления статуса инцидента (Redis pub/sub)
type StatusSubscriber interface {
	Subscribe(ctx context.Context, incidentID uuid.UUID) *redis.PubSub
}

// @Summary Stream incident status updates
// @Description Server-sent events stream of incident status snapshots. Every state or dispatch change is pushed as a "status" event. Requires API key.
// @Tags Incidents
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 "SSE stream"
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /incidents/{id}/events [get]
func (h *Handler) streamIncidentStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "streamIncidentStatus").WithField("id", id)

	sub := h.subscriber.Subscribe(c.Request.Context(), id)
	defer sub.Close()
	ch := sub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	log.Debug("Incident status stream opened")
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("status", msg.Payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	log.Debug("Incident status stream closed")
}
