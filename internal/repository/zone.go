package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/tourist_safety_system/internal/models"
)

// ZoneRepository читает каталог геозон из PostgreSQL (источник для индекса зон)
type ZoneRepository struct {
	db *pgxpool.Pool
}

func NewZoneRepository(db *pgxpool.Pool) *ZoneRepository {
	return &ZoneRepository{db: db}
}

// ListZones возвращает все зоны с их полигонами
func (r *ZoneRepository) ListZones(ctx context.Context) ([]*models.Zone, error) {
	query := `
		SELECT id, name, type, COALESCE(description, ''), polygon
		FROM zones
		ORDER BY name;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer rows.Close()

	zones := make([]*models.Zone, 0)
	for rows.Next() {
		zone := &models.Zone{}
		var zoneType string
		var polygon []byte
		err := rows.Scan(&zone.ID, &zone.Name, &zoneType, &zone.Description, &polygon)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zone row: %w", err)
		}
		zone.Type = models.ZoneType(zoneType)
		if err := json.Unmarshal(polygon, &zone.Polygon); err != nil {
			return nil, fmt.Errorf("failed to unmarshal zone polygon: %w", err)
		}
		zones = append(zones, zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error zones iteration: %w", err)
	}
	return zones, nil
}
