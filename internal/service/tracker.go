package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// ResponderTracker определяет контракт трекера назначений реагирующих
type ResponderTracker interface {
	UpdatePosition(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass, loc models.LatLng) (*models.ResponderStatus, error)
	ConfirmArrival(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass, loc models.LatLng) (*models.ResponderStatus, error)
	ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]*models.ResponderStatus, error)
}

// TrackerService определяет контракт для трекинга реагирующих по инциденту
type TrackerService interface {
	UpdatePosition(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass, loc models.LatLng) (*models.ResponderStatus, error)
	ConfirmArrival(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass, loc models.LatLng) (*models.ResponderStatus, error)
	ListAssignments(ctx context.Context, incidentID uuid.UUID) ([]*models.ResponderStatus, error)
}

type trackerService struct {
	tracker ResponderTracker
	logger  *logrus.Logger
}

func NewTrackerService(tracker ResponderTracker, logger *logrus.Logger) TrackerService {
	return &trackerService{
		tracker: tracker,
		logger:  logger,
	}
}

// UpdatePosition обновляет позицию реагирующего и его ETA
func (s *trackerService) UpdatePosition(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass, loc models.LatLng) (*models.ResponderStatus, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":         "tracker",
		"method":          "UpdatePosition",
		"incident_id":     incidentID,
		"responder_class": class,
	})

	status, err := s.tracker.UpdatePosition(ctx, incidentID, class, loc)
	if err != nil {
		if isTrackerRejection(err) {
			log.WithError(err).Warn("Responder position update rejected")
			return nil, err
		}
		log.WithError(err).Error("Failed to update responder position")
		return nil, fmt.Errorf("service: could not update responder position: %w", err)
	}
	return status, nil
}

// ConfirmArrival фиксирует прибытие реагирующего
func (s *trackerService) ConfirmArrival(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass, loc models.LatLng) (*models.ResponderStatus, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":         "tracker",
		"method":          "ConfirmArrival",
		"incident_id":     incidentID,
		"responder_class": class,
	})

	status, err := s.tracker.ConfirmArrival(ctx, incidentID, class, loc)
	if err != nil {
		if isTrackerRejection(err) {
			log.WithError(err).Warn("Responder arrival confirmation rejected")
			return nil, err
		}
		log.WithError(err).Error("Failed to confirm responder arrival")
		return nil, fmt.Errorf("service: could not confirm responder arrival: %w", err)
	}
	return status, nil
}

// ListAssignments возвращает строки трекинга инцидента
func (s *trackerService) ListAssignments(ctx context.Context, incidentID uuid.UUID) ([]*models.ResponderStatus, error) {
	statuses, err := s.tracker.ListByIncident(ctx, incidentID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":     "tracker",
			"method":      "ListAssignments",
			"incident_id": incidentID,
		}).WithError(err).Error("Failed to list responder assignments")
		return nil, fmt.Errorf("service: could not list responder assignments: %w", err)
	}
	return statuses, nil
}

func isTrackerRejection(err error) bool {
	return errors.Is(err, models.ErrInvalidLocation) ||
		errors.Is(err, models.ErrUnknownIncident) ||
		errors.Is(err, models.ErrAlreadyResolved) ||
		errors.Is(err, models.ErrAlreadyArrived)
}
