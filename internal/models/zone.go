package models

import (
	"time"

	"github.com/google/uuid"
)

// ZoneType - тип зоны
type ZoneType string

const (
	ZoneSafe       ZoneType = "safe"
	ZoneRestricted ZoneType = "restricted"
)

// LatLng - географическая точка (WGS84)
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Zone - именованный полигон с типом safe/restricted.
// Зоны создаются внешней админкой, ядро читает их только на refresh.
type Zone struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Type        ZoneType  `json:"type"`
	Description string    `json:"description,omitempty"`
	// Polygon - внешнее кольцо полигона, без замыкающей точки
	Polygon []LatLng `json:"polygon"`
}

// ZoneTransition - переход субъекта между зонами.
// ToZone == nil означает выход из всех отслеживаемых зон.
type ZoneTransition struct {
	SubjectID  string     `json:"subject_id"`
	FromZone   *uuid.UUID `json:"from_zone,omitempty"`
	ToZone     *uuid.UUID `json:"to_zone,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
