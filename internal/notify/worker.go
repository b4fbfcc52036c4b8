package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/shenikar/tourist_safety_system/internal/orchestrator"
	"github.com/sirupsen/logrus"
)

// ResultSink принимает результаты доставки (оркестратор инцидентов).
// Ретраи и смену каналов планирует он, воркер делает ровно одну попытку
// на задание.
type ResultSink interface {
	OnTransportResult(ctx context.Context, attemptID uuid.UUID, status models.DispatchStatusKind) error
}

// TransportWorker - воркер доставки заданий из очереди Redis во внешний
// транспортный шлюз
type TransportWorker struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	cfg         *config.Config
	httpClient  *http.Client
	sink        ResultSink
}

func NewTransportWorker(redisClient *redis.Client, logger *logrus.Logger, cfg *config.Config, sink ResultSink) *TransportWorker {
	return &TransportWorker{
		redisClient: redisClient,
		logger:      logger,
		cfg:         cfg,
		httpClient: &http.Client{
			Timeout: cfg.TransportTimeout,
		},
		sink: sink,
	}
}

// Start запускает горутину для обработки очереди заданий доставки
func (w *TransportWorker) Start(ctx context.Context) {
	w.logger.Info("Starting transport worker...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping transport worker.")
				return
			default:
				// 0 означает бесконечное ожидание
				result, err := w.redisClient.BRPop(ctx, 0, dispatchQueueKey).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) {
						continue
					}
					w.logger.WithError(err).Error("Failed to pop dispatch job from Redis")
					time.Sleep(w.cfg.TransportTimeout)
					continue
				}

				// result[0] - ключ, result[1] - значение
				payload := result[1]
				var job orchestrator.DispatchJob
				if err := json.Unmarshal([]byte(payload), &job); err != nil {
					w.logger.WithError(err).Error("Failed to unmarshal dispatch job from Redis")
					continue
				}

				w.deliver(ctx, job, payload)
			}
		}
	}()
}

// deliver делает одну попытку доставки задания в транспортный шлюз и
// сообщает результат оркестратору
func (w *TransportWorker) deliver(ctx context.Context, job orchestrator.DispatchJob, rawPayload string) {
	log := w.logger.WithFields(logrus.Fields{
		"attempt_id":      job.AttemptID,
		"incident_id":     job.IncidentID,
		"responder_class": job.ResponderClass,
		"channel":         job.Channel,
	})
	log.Debug("Delivering dispatch job...")

	if w.cfg.TransportGatewayURL == "" {
		log.Warn("Transport gateway URL is not configured. Reporting dispatch as failed.")
		w.report(ctx, job.AttemptID, models.DispatchFailed)
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.cfg.TransportGatewayURL, bytes.NewBufferString(rawPayload))
	if err != nil {
		log.WithError(err).Error("Failed to create transport request")
		w.report(ctx, job.AttemptID, models.DispatchFailed)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	// Добавляем HMAC подпись, если TRANSPORT_SECRET задан
	if w.cfg.TransportSecret != "" {
		signature := generateHMACSHA256(rawPayload, w.cfg.TransportSecret)
		req.Header.Set("X-Transport-Signature", signature)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("Failed to send dispatch job to transport gateway")
		w.report(ctx, job.AttemptID, models.DispatchFailed)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Info("Dispatch job accepted by transport gateway")
		w.report(ctx, job.AttemptID, models.DispatchSent)
		return
	}
	log.Warnf("Transport gateway rejected dispatch job with status code %d", resp.StatusCode)
	w.report(ctx, job.AttemptID, models.DispatchFailed)
}

func (w *TransportWorker) report(ctx context.Context, attemptID uuid.UUID, status models.DispatchStatusKind) {
	if err := w.sink.OnTransportResult(ctx, attemptID, status); err != nil {
		w.logger.WithError(err).WithField("attempt_id", attemptID).Error("Failed to report transport result")
	}
}

// generateHMACSHA256 генерирует HMAC-SHA256 подпись для данных
func generateHMACSHA256(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
