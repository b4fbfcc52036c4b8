package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/tourist_safety_system/internal/models"
)

const incidentCacheTTL = 5 * time.Minute

// IncidentRepository хранит инциденты и попытки доставки в PostgreSQL
// с кэшированием инцидентов в Redis
type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client) *IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// CreateIncident создает новую запись об инциденте в бд
func (r *IncidentRepository) CreateIncident(ctx context.Context, incident *models.Incident) error {
	evidence, err := json.Marshal(incident.EvidenceSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence snapshot: %w", err)
	}
	query := `
		INSERT INTO incidents (id, subject_id, origin, state, required_classes, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = r.db.Exec(ctx, query,
		incident.ID,
		incident.SubjectID,
		string(incident.Origin),
		string(incident.State),
		classesToStrings(incident.RequiredClasses),
		evidence,
		incident.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// UpdateIncident сохраняет состояние, классы и доказательства инцидента
func (r *IncidentRepository) UpdateIncident(ctx context.Context, incident *models.Incident) error {
	evidence, err := json.Marshal(incident.EvidenceSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence snapshot: %w", err)
	}
	query := `
		UPDATE incidents SET
			state = $1,
			required_classes = $2,
			evidence = $3,
			resolved_at = $4,
			resolved_by = $5
		WHERE id = $6;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		string(incident.State),
		classesToStrings(incident.RequiredClasses),
		evidence,
		incident.ResolvedAt,
		nullIfEmpty(incident.ResolvedBy),
		incident.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("incident with id %s not found for update", incident.ID)
	}
	r.invalidateIncidentCache(ctx, incident.ID)
	return nil
}

// GetIncident возвращает инцидент по его UUID, сначала пробуя кэш
func (r *IncidentRepository) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	if cached, err := r.getIncidentFromCache(ctx, id); err == nil && cached != nil {
		return cached, nil
	}

	query := `
		SELECT id, subject_id, origin, state, required_classes, evidence, created_at, resolved_at, COALESCE(resolved_by, '')
		FROM incidents
		WHERE id = $1;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	r.setIncidentCache(ctx, incident)
	return incident, nil
}

// ListIncidents возвращает список инцидентов с пагинацией
func (r *IncidentRepository) ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error) {
	offset := (page - 1) * pageSize
	query := `
		SELECT id, subject_id, origin, state, required_classes, evidence, created_at, resolved_at, COALESCE(resolved_by, '')
		FROM incidents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2;
	`
	rows, err := r.db.Query(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()
	return collectIncidents(rows)
}

// ListOpenIncidents возвращает все незавершённые инциденты (для восстановления)
func (r *IncidentRepository) ListOpenIncidents(ctx context.Context) ([]*models.Incident, error) {
	query := `
		SELECT id, subject_id, origin, state, required_classes, evidence, created_at, resolved_at, COALESCE(resolved_by, '')
		FROM incidents
		WHERE state <> 'resolved'
		ORDER BY created_at;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open incidents: %w", err)
	}
	defer rows.Close()
	return collectIncidents(rows)
}

// CreateDispatchAttempt создает запись о попытке доставки
func (r *IncidentRepository) CreateDispatchAttempt(ctx context.Context, attempt *models.DispatchAttempt) error {
	query := `
		INSERT INTO dispatch_attempts (id, incident_id, responder_class, channel, status, attempt_number, last_attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.db.Exec(ctx, query,
		attempt.ID,
		attempt.IncidentID,
		string(attempt.ResponderClass),
		attempt.Channel,
		string(attempt.Status),
		attempt.AttemptNumber,
		attempt.LastAttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dispatch attempt: %w", err)
	}
	return nil
}

// UpdateDispatchAttempt обновляет статус попытки доставки
func (r *IncidentRepository) UpdateDispatchAttempt(ctx context.Context, attempt *models.DispatchAttempt) error {
	query := `
		UPDATE dispatch_attempts SET
			status = $1,
			attempt_number = $2,
			last_attempted_at = $3
		WHERE id = $4;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		string(attempt.Status),
		attempt.AttemptNumber,
		attempt.LastAttemptedAt,
		attempt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update dispatch attempt: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("dispatch attempt with id %s not found for update", attempt.ID)
	}
	return nil
}

// ListDispatchAttempts возвращает попытки доставки инцидента в порядке создания
func (r *IncidentRepository) ListDispatchAttempts(ctx context.Context, incidentID uuid.UUID) ([]*models.DispatchAttempt, error) {
	query := `
		SELECT id, incident_id, responder_class, channel, status, attempt_number, last_attempted_at
		FROM dispatch_attempts
		WHERE incident_id = $1
		ORDER BY last_attempted_at, id;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatch attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.DispatchAttempt, 0)
	for rows.Next() {
		attempt := &models.DispatchAttempt{}
		var class, status string
		err := rows.Scan(
			&attempt.ID,
			&attempt.IncidentID,
			&class,
			&attempt.Channel,
			&status,
			&attempt.AttemptNumber,
			&attempt.LastAttemptedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispatch attempt row: %w", err)
		}
		attempt.ResponderClass = models.ResponderClass(class)
		attempt.Status = models.DispatchStatusKind(status)
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error dispatch attempts iteration: %w", err)
	}
	return attempts, nil
}

// CountsByState возвращает количество инцидентов по состояниям (для статистики)
func (r *IncidentRepository) CountsByState(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT state, COUNT(*)
		FROM incidents
		GROUP BY state;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan incident count row: %w", err)
		}
		counts[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error incident counts iteration: %w", err)
	}
	return counts, nil
}

// getIncidentFromCache пытается получить инцидент из Redis
func (r *IncidentRepository) getIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	key := fmt.Sprintf("incident:%s", id.String())
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}
	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// setIncidentCache сохраняет инцидент в Redis
func (r *IncidentRepository) setIncidentCache(ctx context.Context, incident *models.Incident) {
	key := fmt.Sprintf("incident:%s", incident.ID.String())
	val, err := json.Marshal(incident)
	if err != nil {
		return
	}
	r.redisClient.Set(ctx, key, val, incidentCacheTTL)
}

// invalidateIncidentCache удаляет инцидент из Redis кэша
func (r *IncidentRepository) invalidateIncidentCache(ctx context.Context, id uuid.UUID) {
	key := fmt.Sprintf("incident:%s", id.String())
	r.redisClient.Del(ctx, key)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*models.Incident, error) {
	incident := &models.Incident{}
	var origin, state string
	var classes []string
	var evidence []byte
	err := row.Scan(
		&incident.ID,
		&incident.SubjectID,
		&origin,
		&state,
		&classes,
		&evidence,
		&incident.CreatedAt,
		&incident.ResolvedAt,
		&incident.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	incident.Origin = models.IncidentOrigin(origin)
	incident.State = models.IncidentState(state)
	incident.RequiredClasses = stringsToClasses(classes)
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &incident.EvidenceSnapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence snapshot: %w", err)
		}
	}
	return incident, nil
}

func collectIncidents(rows pgx.Rows) ([]*models.Incident, error) {
	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error incidents iteration: %w", err)
	}
	return incidents, nil
}

func classesToStrings(classes []models.ResponderClass) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = string(c)
	}
	return out
}

func stringsToClasses(classes []string) []models.ResponderClass {
	out := make([]models.ResponderClass, len(classes))
	for i, c := range classes {
		out[i] = models.ResponderClass(c)
	}
	return out
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
