package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/tourist_safety_system/internal/orchestrator"
)

const (
	dispatchQueueKey = "dispatch_jobs"
)

// RedisTransportPublisher - транспортный коллаборатор на очереди Redis:
// задания доставки уходят в список, воркер забирает их асинхронно
type RedisTransportPublisher struct {
	redisClient *redis.Client
}

func NewRedisTransportPublisher(client *redis.Client) *RedisTransportPublisher {
	return &RedisTransportPublisher{
		redisClient: client,
	}
}

// Publish публикует задание доставки в очередь Redis
func (p *RedisTransportPublisher) Publish(ctx context.Context, job orchestrator.DispatchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch job: %w", err)
	}

	// LPUSH в левую часть списка, воркер снимает BRPOP с правой
	if err := p.redisClient.LPush(ctx, dispatchQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish dispatch job to Redis: %w", err)
	}
	return nil
}
