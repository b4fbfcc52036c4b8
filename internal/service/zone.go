package service

import (
	"context"
	"fmt"

	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// ZoneIndex определяет контракт индекса геозон
type ZoneIndex interface {
	Refresh(ctx context.Context) error
	Snapshot() []*models.Zone
}

// ZoneService определяет контракт для управления снапшотом геозон
type ZoneService interface {
	RefreshZones(ctx context.Context) (int, error)
}

type zoneService struct {
	index  ZoneIndex
	logger *logrus.Logger
}

func NewZoneService(index ZoneIndex, logger *logrus.Logger) ZoneService {
	return &zoneService{
		index:  index,
		logger: logger,
	}
}

// RefreshZones перечитывает каталог зон и возвращает размер нового снапшота
func (s *zoneService) RefreshZones(ctx context.Context) (int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "zone",
		"method":  "RefreshZones",
	})
	log.Info("Refreshing zone snapshot")

	if err := s.index.Refresh(ctx); err != nil {
		log.WithError(err).Error("Failed to refresh zone snapshot")
		return 0, fmt.Errorf("service: could not refresh zones: %w", err)
	}
	count := len(s.index.Snapshot())
	log.WithField("zones", count).Info("Zone snapshot refreshed")
	return count, nil
}
