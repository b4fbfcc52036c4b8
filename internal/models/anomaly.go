package models

import (
	"time"
)

// AnomalyKind - вид аномалии
type AnomalyKind string

const (
	AnomalyHighSpeed         AnomalyKind = "high_speed"
	AnomalyInactivity        AnomalyKind = "inactivity"
	AnomalyRepeatedViolation AnomalyKind = "repeated_violation"
	AnomalyAreaHazard        AnomalyKind = "area_hazard"
)

// Severity - серьёзность аномалии
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// HighSpeedEvidence - доказательства аномалии скорости
type HighSpeedEvidence struct {
	SpeedKmh     float64   `json:"speed_kmh"`
	SegmentStart LatLng    `json:"segment_start"`
	SegmentEnd   LatLng    `json:"segment_end"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
}

// InactivityEvidence - доказательства аномалии бездействия
type InactivityEvidence struct {
	LastSeenAt time.Time     `json:"last_seen_at"`
	Silence    time.Duration `json:"silence"`
}

// RepeatedViolationEvidence - доказательства повторных нарушений
type RepeatedViolationEvidence struct {
	ZoneID  string      `json:"zone_id"`
	Entries []time.Time `json:"entries"`
	Window  string      `json:"window"`
	Count   int         `json:"count"`
}

// AreaHazardContributor - один из участников кластера тревог
type AreaHazardContributor struct {
	SubjectID string    `json:"subject_id"`
	Location  LatLng    `json:"location"`
	RaisedAt  time.Time `json:"raised_at"`
}

// AreaHazardEvidence - доказательства кластера независимых тревог
type AreaHazardEvidence struct {
	Contributors []AreaHazardContributor `json:"contributors"`
	RadiusMeters float64                 `json:"radius_meters"`
}

// AnomalyEvidence - тегированный вариант доказательств: заполнено ровно одно
// поле, соответствующее AnomalyEvent.Kind.
type AnomalyEvidence struct {
	HighSpeed         *HighSpeedEvidence         `json:"high_speed,omitempty"`
	Inactivity        *InactivityEvidence        `json:"inactivity,omitempty"`
	RepeatedViolation *RepeatedViolationEvidence `json:"repeated_violation,omitempty"`
	AreaHazard        *AreaHazardEvidence        `json:"area_hazard,omitempty"`
}

// AnomalyEvent - обнаруженная аномалия. Неизменяема после эмиссии;
// одна аномалия порождает ноль или один инцидент.
type AnomalyEvent struct {
	SubjectID  string          `json:"subject_id"`
	Kind       AnomalyKind     `json:"kind"`
	Severity   Severity        `json:"severity"`
	Evidence   AnomalyEvidence `json:"evidence"`
	DetectedAt time.Time       `json:"detected_at"`
}
