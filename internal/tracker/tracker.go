package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/geo"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Store - хранилище живых строк трекинга назначений реагирующих
type Store interface {
	Get(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass) (*models.ResponderStatus, error)
	Upsert(ctx context.Context, status *models.ResponderStatus) error
	ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]*models.ResponderStatus, error)
	ArchiveIncident(ctx context.Context, incidentID uuid.UUID) error
}

// IncidentSource отдаёт инцидент для проверки состояния и точки назначения
type IncidentSource interface {
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
}

// Service - трекер реагирующих: позиция, прямолинейный ETA по средней
// скорости класса (без движка маршрутизации), подтверждение прибытия.
type Service struct {
	cfg    *config.Config
	store  Store
	source IncidentSource
	logger *logrus.Logger
}

func NewService(cfg *config.Config, store Store, source IncidentSource, logger *logrus.Logger) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		source: source,
		logger: logger,
	}
}

// UpdatePosition обновляет позицию назначения и пересчитывает ETA.
// Принимается только для незавершённых инцидентов и до подтверждения прибытия.
func (s *Service) UpdatePosition(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass, loc models.LatLng) (*models.ResponderStatus, error) {
	if !geo.ValidCoordinates(loc.Latitude, loc.Longitude) {
		return nil, models.ErrInvalidLocation
	}
	incident, status, err := s.assignment(ctx, incidentID, class)
	if err != nil {
		return nil, err
	}
	if status.ArrivedAt != nil {
		return nil, fmt.Errorf("%w: incident %s class %s", models.ErrAlreadyArrived, incidentID, class)
	}

	status.CurrentLocation = &loc
	status.EstimatedArrival = s.estimateArrival(incident, class, loc)
	if err := s.store.Upsert(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to persist responder status: %w", err)
	}
	return status, nil
}

// ConfirmArrival фиксирует прибытие; терминально для назначения -
// дальнейшие обновления позиции отклоняются, не игнорируются
func (s *Service) ConfirmArrival(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass, loc models.LatLng) (*models.ResponderStatus, error) {
	if !geo.ValidCoordinates(loc.Latitude, loc.Longitude) {
		return nil, models.ErrInvalidLocation
	}
	_, status, err := s.assignment(ctx, incidentID, class)
	if err != nil {
		return nil, err
	}
	if status.ArrivedAt != nil {
		return nil, fmt.Errorf("%w: incident %s class %s", models.ErrAlreadyArrived, incidentID, class)
	}

	now := time.Now().UTC()
	status.CurrentLocation = &loc
	status.ArrivedAt = &now
	status.EstimatedArrival = nil
	if err := s.store.Upsert(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to persist responder arrival: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"incident_id":     incidentID,
		"responder_class": class,
	}).Info("Responder arrival confirmed")
	return status, nil
}

// ListByIncident возвращает строки трекинга инцидента (и живые, и архивные)
func (s *Service) ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]*models.ResponderStatus, error) {
	return s.store.ListByIncident(ctx, incidentID)
}

// ArchiveIncident архивирует (не удаляет) строки трекинга при резолве
func (s *Service) ArchiveIncident(ctx context.Context, incidentID uuid.UUID) error {
	return s.store.ArchiveIncident(ctx, incidentID)
}

func (s *Service) assignment(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass) (*models.Incident, *models.ResponderStatus, error) {
	incident, err := s.source.GetIncident(ctx, incidentID)
	if err != nil || incident == nil {
		return nil, nil, fmt.Errorf("%w: %s", models.ErrUnknownIncident, incidentID)
	}
	if incident.State == models.StateResolved {
		return nil, nil, fmt.Errorf("%w: %s", models.ErrAlreadyResolved, incidentID)
	}

	status, err := s.store.Get(ctx, incidentID, class)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load responder status: %w", err)
	}
	if status == nil {
		status = &models.ResponderStatus{
			IncidentID:     incidentID,
			ResponderClass: class,
		}
	}
	return incident, status, nil
}

// estimateArrival - прямолинейный ETA от текущей позиции до точки инцидента
// по настроенной средней скорости класса
func (s *Service) estimateArrival(incident *models.Incident, class models.ResponderClass, loc models.LatLng) *time.Time {
	dest := incident.EvidenceSnapshot.Location
	if dest == nil {
		return nil
	}
	speedKmh := s.cfg.ResponderSpeedKmh[class]
	if speedKmh <= 0 {
		speedKmh = 40
	}
	distMeters := geo.HaversineMeters(loc, *dest)
	seconds := distMeters / (speedKmh / 3.6)
	eta := time.Now().UTC().Add(time.Duration(seconds * float64(time.Second)))
	return &eta
}
