package anomaly

import (
	"context"
	"time"

	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Sweeper - периодический свип детектора бездействия.
// Таймер, не busy-polling; найденные аномалии уходят в sink.
type Sweeper struct {
	detector *Detector
	interval time.Duration
	sink     func(ctx context.Context, ev models.AnomalyEvent)
	logger   *logrus.Logger
}

func NewSweeper(detector *Detector, interval time.Duration, sink func(ctx context.Context, ev models.AnomalyEvent), logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		detector: detector,
		interval: interval,
		sink:     sink,
		logger:   logger,
	}
}

// Start запускает горутину свипа до отмены контекста
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.WithField("interval", s.interval.String()).Info("Starting inactivity sweeper...")
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Stopping inactivity sweeper.")
				return
			case now := <-ticker.C:
				for _, ev := range s.detector.Sweep(now) {
					s.sink(ctx, ev)
				}
			}
		}
	}()
}
