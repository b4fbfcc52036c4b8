package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/tourist_safety_system/internal/models"
)

// EventRepository - append-only журнал переходов между зонами и
// зафиксированных аномалий (аудит)
type EventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// AppendZoneTransition дописывает переход субъекта между зонами
func (r *EventRepository) AppendZoneTransition(ctx context.Context, tr *models.ZoneTransition) error {
	query := `
		INSERT INTO zone_transitions (subject_id, from_zone, to_zone, occurred_at)
		VALUES ($1, $2, $3, $4);
	`
	_, err := r.db.Exec(ctx, query, tr.SubjectID, tr.FromZone, tr.ToZone, tr.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append zone transition: %w", err)
	}
	return nil
}

// AppendAnomaly дописывает зафиксированную аномалию вместе с доказательствами
func (r *EventRepository) AppendAnomaly(ctx context.Context, ev *models.AnomalyEvent) error {
	evidence, err := json.Marshal(ev.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly evidence: %w", err)
	}
	query := `
		INSERT INTO anomaly_events (subject_id, kind, severity, evidence, detected_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err = r.db.Exec(ctx, query, ev.SubjectID, string(ev.Kind), string(ev.Severity), evidence, ev.DetectedAt)
	if err != nil {
		return fmt.Errorf("failed to append anomaly event: %w", err)
	}
	return nil
}

// CountsByKind возвращает количество аномалий по видам (для статистики)
func (r *EventRepository) CountsByKind(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT kind, COUNT(*)
		FROM anomaly_events
		GROUP BY kind;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count anomalies by kind: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly count row: %w", err)
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error anomaly counts iteration: %w", err)
	}
	return counts, nil
}
