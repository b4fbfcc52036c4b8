package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/tourist_safety_system/internal/models"
)

// TrackerRepository хранит строки трекинга назначений реагирующих.
// Одна строка на пару (инцидент, класс); при резолве строки архивируются.
type TrackerRepository struct {
	db *pgxpool.Pool
}

func NewTrackerRepository(db *pgxpool.Pool) *TrackerRepository {
	return &TrackerRepository{db: db}
}

// Get возвращает строку трекинга или nil, если назначение ещё не отслеживалось
func (r *TrackerRepository) Get(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass) (*models.ResponderStatus, error) {
	query := `
		SELECT incident_id, responder_class, current_location, estimated_arrival, arrived_at, archived
		FROM responder_status
		WHERE incident_id = $1 AND responder_class = $2;
	`
	status, err := scanResponderStatus(r.db.QueryRow(ctx, query, incidentID, string(class)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get responder status: %w", err)
	}
	return status, nil
}

// Upsert вставляет или обновляет строку трекинга назначения
func (r *TrackerRepository) Upsert(ctx context.Context, status *models.ResponderStatus) error {
	location, err := marshalLocation(status.CurrentLocation)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO responder_status (incident_id, responder_class, current_location, estimated_arrival, arrived_at, archived)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (incident_id, responder_class) DO UPDATE SET
			current_location = EXCLUDED.current_location,
			estimated_arrival = EXCLUDED.estimated_arrival,
			arrived_at = EXCLUDED.arrived_at,
			archived = EXCLUDED.archived;
	`
	_, err = r.db.Exec(ctx, query,
		status.IncidentID,
		string(status.ResponderClass),
		location,
		status.EstimatedArrival,
		status.ArrivedAt,
		status.Archived,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert responder status: %w", err)
	}
	return nil
}

// ListByIncident возвращает все строки трекинга инцидента
func (r *TrackerRepository) ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]*models.ResponderStatus, error) {
	query := `
		SELECT incident_id, responder_class, current_location, estimated_arrival, arrived_at, archived
		FROM responder_status
		WHERE incident_id = $1
		ORDER BY responder_class;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responder statuses: %w", err)
	}
	defer rows.Close()

	statuses := make([]*models.ResponderStatus, 0)
	for rows.Next() {
		status, err := scanResponderStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan responder status row: %w", err)
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error responder statuses iteration: %w", err)
	}
	return statuses, nil
}

// ArchiveIncident помечает строки трекинга инцидента архивными (не удаляет)
func (r *TrackerRepository) ArchiveIncident(ctx context.Context, incidentID uuid.UUID) error {
	query := `
		UPDATE responder_status SET archived = TRUE
		WHERE incident_id = $1;
	`
	_, err := r.db.Exec(ctx, query, incidentID)
	if err != nil {
		return fmt.Errorf("failed to archive responder statuses: %w", err)
	}
	return nil
}

func scanResponderStatus(row rowScanner) (*models.ResponderStatus, error) {
	status := &models.ResponderStatus{}
	var class string
	var location []byte
	err := row.Scan(
		&status.IncidentID,
		&class,
		&location,
		&status.EstimatedArrival,
		&status.ArrivedAt,
		&status.Archived,
	)
	if err != nil {
		return nil, err
	}
	status.ResponderClass = models.ResponderClass(class)
	if len(location) > 0 {
		loc := &models.LatLng{}
		if err := json.Unmarshal(location, loc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal responder location: %w", err)
		}
		status.CurrentLocation = loc
	}
	return status, nil
}

func marshalLocation(loc *models.LatLng) ([]byte, error) {
	if loc == nil {
		return nil, nil
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal responder location: %w", err)
	}
	return data, nil
}
