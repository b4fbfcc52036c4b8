package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/tourist_safety_system/internal/orchestrator"
	"github.com/sirupsen/logrus"
)

const statusChannelPrefix = "incident_status:"

// RedisStatusNotifier публикует снимки статуса инцидента в Redis pub/sub.
// Подписчики (SSE-поток) получают каждое изменение состояния или доставки.
type RedisStatusNotifier struct {
	redisClient *redis.Client
	logger      *logrus.Logger
}

func NewRedisStatusNotifier(client *redis.Client, logger *logrus.Logger) *RedisStatusNotifier {
	return &RedisStatusNotifier{
		redisClient: client,
		logger:      logger,
	}
}

// PublishStatus публикует снимок статуса в канал инцидента
func (n *RedisStatusNotifier) PublishStatus(ctx context.Context, status *orchestrator.IncidentStatus) {
	if status == nil || status.Incident == nil {
		return
	}
	payload, err := json.Marshal(status)
	if err != nil {
		n.logger.WithError(err).Error("Failed to marshal incident status")
		return
	}
	channel := statusChannel(status.Incident.ID)
	if err := n.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		n.logger.WithError(err).WithField("incident_id", status.Incident.ID).Error("Failed to publish incident status")
	}
}

// Subscribe подписывается на обновления статуса инцидента
func (n *RedisStatusNotifier) Subscribe(ctx context.Context, incidentID uuid.UUID) *redis.PubSub {
	return n.redisClient.Subscribe(ctx, statusChannel(incidentID))
}

func statusChannel(incidentID uuid.UUID) string {
	return fmt.Sprintf("%s%s", statusChannelPrefix, incidentID.String())
}
