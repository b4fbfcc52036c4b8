package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// LocationIngestor определяет контракт приёма телеметрии (менеджер пайплайнов)
type LocationIngestor interface {
	Report(ctx context.Context, ping models.LocationPing) error
	ReportManualTrigger(ctx context.Context, subjectID string, loc models.LatLng) (*models.Incident, error)
}

// LocationService определяет контракт для приёма пингов и ручных тревог
type LocationService interface {
	ReportLocation(ctx context.Context, ping models.LocationPing) error
	ReportPanic(ctx context.Context, subjectID string, loc models.LatLng) (*models.Incident, error)
}

type locationService struct {
	ingestor LocationIngestor
	logger   *logrus.Logger
}

func NewLocationService(ingestor LocationIngestor, logger *logrus.Logger) LocationService {
	return &locationService{
		ingestor: ingestor,
		logger:   logger,
	}
}

// ReportLocation принимает пинг локации субъекта
func (s *locationService) ReportLocation(ctx context.Context, ping models.LocationPing) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "location",
		"method":     "ReportLocation",
		"subject_id": ping.SubjectID,
	})

	if err := s.ingestor.Report(ctx, ping); err != nil {
		if errors.Is(err, models.ErrInvalidLocation) || errors.Is(err, models.ErrUnknownSubject) {
			log.WithError(err).Warn("Location ping rejected")
			return err
		}
		log.WithError(err).Error("Failed to ingest location ping")
		return fmt.Errorf("service: could not ingest location ping: %w", err)
	}
	return nil
}

// ReportPanic принимает ручную тревогу субъекта
func (s *locationService) ReportPanic(ctx context.Context, subjectID string, loc models.LatLng) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "location",
		"method":     "ReportPanic",
		"subject_id": subjectID,
	})
	log.Info("Manual panic trigger received")

	incident, err := s.ingestor.ReportManualTrigger(ctx, subjectID, loc)
	if err != nil {
		if errors.Is(err, models.ErrInvalidLocation) || errors.Is(err, models.ErrUnknownSubject) {
			log.WithError(err).Warn("Manual panic trigger rejected")
			return nil, err
		}
		log.WithError(err).Error("Failed to open incident for manual trigger")
		return nil, fmt.Errorf("service: could not open panic incident: %w", err)
	}

	log.WithField("incident_id", incident.ID).Info("Panic incident opened")
	return incident, nil
}
