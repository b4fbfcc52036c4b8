package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/shenikar/tourist_safety_system/internal/orchestrator"
	"github.com/sirupsen/logrus"
)

// IncidentCoordinator определяет контракт оркестратора инцидентов
type IncidentCoordinator interface {
	Status(ctx context.Context, id uuid.UUID) (*orchestrator.IncidentStatus, error)
	List(ctx context.Context, page, pageSize int) ([]*models.Incident, error)
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy string) error
	OnTransportResult(ctx context.Context, attemptID uuid.UUID, status models.DispatchStatusKind) error
}

// StatsRepository отдаёт счётчики для статистики
type StatsRepository interface {
	CountsByState(ctx context.Context) (map[string]int, error)
}

// AnomalyStatsRepository отдаёт счётчики аномалий по видам
type AnomalyStatsRepository interface {
	CountsByKind(ctx context.Context) (map[string]int, error)
}

// Stats - сводная статистика системы
type Stats struct {
	IncidentsByState map[string]int `json:"incidents_by_state"`
	AnomaliesByKind  map[string]int `json:"anomalies_by_kind"`
}

// IncidentService определяет контракт для бизнес-логики управления инцидентами
type IncidentService interface {
	GetStatus(ctx context.Context, id uuid.UUID) (*orchestrator.IncidentStatus, error)
	ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error)
	ResolveIncident(ctx context.Context, id uuid.UUID, resolvedBy string) error
	ReportTransportResult(ctx context.Context, attemptID uuid.UUID, status models.DispatchStatusKind) error
	GetStats(ctx context.Context) (*Stats, error)
}

type incidentService struct {
	coordinator  IncidentCoordinator
	incidentRepo StatsRepository
	eventRepo    AnomalyStatsRepository
	logger       *logrus.Logger
}

func NewIncidentService(coordinator IncidentCoordinator, incidentRepo StatsRepository, eventRepo AnomalyStatsRepository, logger *logrus.Logger) IncidentService {
	return &incidentService{
		coordinator:  coordinator,
		incidentRepo: incidentRepo,
		eventRepo:    eventRepo,
		logger:       logger,
	}
}

// GetStatus возвращает снимок состояния инцидента с попытками доставки
func (s *incidentService) GetStatus(ctx context.Context, id uuid.UUID) (*orchestrator.IncidentStatus, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetStatus",
		"incident_id": id,
	})

	status, err := s.coordinator.Status(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrUnknownIncident) {
			log.WithError(err).Warn("Incident not found")
			return nil, err
		}
		log.WithError(err).Error("Failed to get incident status")
		return nil, fmt.Errorf("service: could not get incident status: %w", err)
	}
	return status, nil
}

// ListIncidents возвращает список инцидентов с пагинацией
func (s *incidentService) ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "ListIncidents",
		"page":      page,
		"page_size": pageSize,
	})

	incidents, err := s.coordinator.List(ctx, page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}
	return incidents, nil
}

// ResolveIncident завершает инцидент
func (s *incidentService) ResolveIncident(ctx context.Context, id uuid.UUID, resolvedBy string) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "ResolveIncident",
		"incident_id": id,
		"resolved_by": resolvedBy,
	})
	log.Info("Attempting to resolve incident")

	if err := s.coordinator.Resolve(ctx, id, resolvedBy); err != nil {
		if errors.Is(err, models.ErrUnknownIncident) || errors.Is(err, models.ErrAlreadyResolved) {
			log.WithError(err).Warn("Incident resolve rejected")
			return err
		}
		log.WithError(err).Error("Failed to resolve incident")
		return fmt.Errorf("service: could not resolve incident: %w", err)
	}

	log.Info("Incident resolved successfully")
	return nil
}

// ReportTransportResult принимает колбэк результата доставки от транспорта
func (s *incidentService) ReportTransportResult(ctx context.Context, attemptID uuid.UUID, status models.DispatchStatusKind) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "incident",
		"method":     "ReportTransportResult",
		"attempt_id": attemptID,
		"status":     status,
	})

	if err := s.coordinator.OnTransportResult(ctx, attemptID, status); err != nil {
		log.WithError(err).Error("Failed to apply transport result")
		return fmt.Errorf("service: could not apply transport result: %w", err)
	}
	return nil
}

// GetStats возвращает сводную статистику по инцидентам и аномалиям
func (s *incidentService) GetStats(ctx context.Context) (*Stats, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "GetStats",
	})

	byState, err := s.incidentRepo.CountsByState(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to count incidents by state")
		return nil, fmt.Errorf("service: could not get incident stats: %w", err)
	}
	byKind, err := s.eventRepo.CountsByKind(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to count anomalies by kind")
		return nil, fmt.Errorf("service: could not get anomaly stats: %w", err)
	}

	return &Stats{
		IncidentsByState: byState,
		AnomaliesByKind:  byKind,
	}, nil
}
