package v1

import (
	"time"

	"github.com/google/uuid"
)

// ReportLocationRequest DTO для приёма пинга локации
// @Description DTO для приёма пинга локации
type ReportLocationRequest struct {
	SubjectID      string    `json:"subject_id" validate:"required"`
	Latitude       float64   `json:"latitude" validate:"required,latitude"`
	Longitude      float64   `json:"longitude" validate:"required,longitude"`
	AccuracyRadius float64   `json:"accuracy_radius" validate:"gte=0"`
	CapturedAt     time.Time `json:"captured_at" validate:"required"`
}

// PanicRequest DTO для ручной тревоги
// @Description DTO для ручной тревоги
type PanicRequest struct {
	SubjectID string  `json:"subject_id" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"required,latitude"`
	Longitude float64 `json:"longitude" validate:"required,longitude"`
}

// ResolveIncidentRequest DTO для завершения инцидента
// @Description DTO для завершения инцидента
type ResolveIncidentRequest struct {
	ResolvedBy string `json:"resolved_by" validate:"required"`
}

// VerifyResponderRequest DTO для верификации реагирующего
// @Description DTO для верификации реагирующего
type VerifyResponderRequest struct {
	ResponderID string `json:"responder_id" validate:"required"`
	Signature   string `json:"signature" validate:"required,base64"`
}

// TransportResultRequest DTO для колбэка результата доставки от шлюза
// @Description DTO для колбэка результата доставки от шлюза
type TransportResultRequest struct {
	AttemptID uuid.UUID `json:"attempt_id" validate:"required"`
	Status    string    `json:"status" validate:"required,oneof=delivered acknowledged failed"`
}

// ResponderPositionRequest DTO для обновления позиции реагирующего
// @Description DTO для обновления позиции реагирующего
type ResponderPositionRequest struct {
	ResponderClass string  `json:"responder_class" validate:"required,oneof=police ambulance tourist_police contacts general_emergency"`
	Latitude       float64 `json:"latitude" validate:"required,latitude"`
	Longitude      float64 `json:"longitude" validate:"required,longitude"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID              uuid.UUID  `json:"id"`
	SubjectID       string     `json:"subject_id"`
	Origin          string     `json:"origin"`
	State           string     `json:"state"`
	RequiredClasses []string   `json:"required_classes"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
}

// DispatchAttemptResponse DTO для ответа с попыткой доставки
// @Description DTO для ответа с попыткой доставки
type DispatchAttemptResponse struct {
	ID              uuid.UUID `json:"id"`
	ResponderClass  string    `json:"responder_class"`
	Channel         string    `json:"channel"`
	Status          string    `json:"status"`
	AttemptNumber   int       `json:"attempt_number"`
	LastAttemptedAt time.Time `json:"last_attempted_at"`
}

// IncidentStatusResponse DTO для ответа со статусом инцидента
// @Description DTO для ответа со статусом инцидента
type IncidentStatusResponse struct {
	Incident *IncidentResponse          `json:"incident"`
	Attempts []*DispatchAttemptResponse `json:"dispatch_attempts"`
	Dispatch []*ResponderStatusResponse `json:"dispatch_status"`
}

// VerificationRecordResponse DTO для записи верификации
// @Description DTO для записи верификации
type VerificationRecordResponse struct {
	IncidentID  uuid.UUID `json:"incident_id"`
	ResponderID string    `json:"responder_id"`
	VerifiedAt  time.Time `json:"verified_at"`
	PriorHash   string    `json:"prior_hash"`
	RecordHash  string    `json:"record_hash"`
}

// ResponderChainResponse DTO для цепочки верификаций реагирующего
// @Description DTO для цепочки верификаций реагирующего
type ResponderChainResponse struct {
	ResponderID string                        `json:"responder_id"`
	Valid       bool                          `json:"valid"`
	Records     []*VerificationRecordResponse `json:"records"`
}

// ResponderStatusResponse DTO для строки трекинга реагирующего
// @Description DTO для строки трекинга реагирующего
type ResponderStatusResponse struct {
	IncidentID       uuid.UUID  `json:"incident_id"`
	ResponderClass   string     `json:"responder_class"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
	ArrivedAt        *time.Time `json:"arrived_at,omitempty"`
	Archived         bool       `json:"archived"`
}

// StatsResponse DTO для ответа со статистикой
// @Description DTO для ответа со статистикой
type StatsResponse struct {
	IncidentsByState map[string]int `json:"incidents_by_state"`
	AnomaliesByKind  map[string]int `json:"anomalies_by_kind"`
}

// ZoneRefreshResponse DTO для ответа на перечитывание зон
// @Description DTO для ответа на перечитывание зон
type ZoneRefreshResponse struct {
	Zones int `json:"zones"`
}
