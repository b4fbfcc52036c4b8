package models

import (
	"time"

	"github.com/google/uuid"
)

// IncidentOrigin - источник инцидента
type IncidentOrigin string

const (
	OriginManualPanic IncidentOrigin = "manual_panic"
	OriginAnomaly     IncidentOrigin = "anomaly"
)

// IncidentState - состояние конечного автомата инцидента
type IncidentState string

const (
	StateNew          IncidentState = "new"
	StateDispatching  IncidentState = "dispatching"
	StateAwaitingAck  IncidentState = "awaiting_ack"
	StateAcknowledged IncidentState = "acknowledged"
	StateEscalated    IncidentState = "escalated"
	StateResolved     IncidentState = "resolved"
)

// ResponderClass - категория реагирующих со своими каналами доставки
type ResponderClass string

const (
	ResponderPolice        ResponderClass = "police"
	ResponderAmbulance     ResponderClass = "ambulance"
	ResponderTouristPolice ResponderClass = "tourist_police"
	ResponderContacts      ResponderClass = "contacts"
	// ResponderGeneral - резервный класс, добавляется при эскалации
	ResponderGeneral ResponderClass = "general_emergency"
)

// EvidenceSnapshot - снимок доказательств, захваченный в момент создания
// инцидента. После создания не изменяется, даже если исходные данные меняются;
// повторные триггеры дописываются в Appended.
type EvidenceSnapshot struct {
	Location          *LatLng           `json:"location,omitempty"`
	RecentPings       []LocationPing    `json:"recent_pings,omitempty"`
	Trigger           *AnomalyEvent     `json:"trigger,omitempty"`
	EmergencyContacts []string          `json:"emergency_contacts,omitempty"`
	Appended          []AppendedTrigger `json:"appended,omitempty"`
}

// AppendedTrigger - дубликат триггера, пришедший при уже открытом инциденте
type AppendedTrigger struct {
	Origin     IncidentOrigin `json:"origin"`
	Anomaly    *AnomalyEvent  `json:"anomaly,omitempty"`
	Location   *LatLng        `json:"location,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Incident - центральный агрегат: жизненный цикл одного реагирования.
// Мутируется только оркестратором через определённые переходы, никогда не удаляется.
type Incident struct {
	ID               uuid.UUID        `json:"id"`
	SubjectID        string           `json:"subject_id"`
	Origin           IncidentOrigin   `json:"origin"`
	RequiredClasses  []ResponderClass `json:"required_classes"`
	State            IncidentState    `json:"state"`
	EvidenceSnapshot EvidenceSnapshot `json:"evidence_snapshot"`
	CreatedAt        time.Time        `json:"created_at"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy       string           `json:"resolved_by,omitempty"`
}

// Open сообщает, открыт ли ещё инцидент (не resolved)
func (i *Incident) Open() bool {
	return i.State != StateResolved
}

// HasClass проверяет наличие класса реагирующих в требуемом наборе
func (i *Incident) HasClass(class ResponderClass) bool {
	for _, c := range i.RequiredClasses {
		if c == class {
			return true
		}
	}
	return false
}
