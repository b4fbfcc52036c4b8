package models

import (
	"time"

	"github.com/google/uuid"
)

// DispatchStatusKind - статус попытки доставки уведомления
type DispatchStatusKind string

const (
	DispatchQueued       DispatchStatusKind = "queued"
	DispatchSent         DispatchStatusKind = "sent"
	DispatchDelivered    DispatchStatusKind = "delivered"
	DispatchAcknowledged DispatchStatusKind = "acknowledged"
	DispatchFailed       DispatchStatusKind = "failed"
)

// Terminal сообщает, является ли статус терминальным для попытки
func (s DispatchStatusKind) Terminal() bool {
	return s == DispatchAcknowledged || s == DispatchFailed
}

// DispatchAttempt - одна попытка доставки уведомления классу реагирующих
// по конкретному каналу. Создаётся оркестратором, обновляется колбэками
// транспортного коллаборатора.
type DispatchAttempt struct {
	ID              uuid.UUID          `json:"id"`
	IncidentID      uuid.UUID          `json:"incident_id"`
	ResponderClass  ResponderClass     `json:"responder_class"`
	Channel         string             `json:"channel"`
	Status          DispatchStatusKind `json:"status"`
	AttemptNumber   int                `json:"attempt_number"`
	LastAttemptedAt time.Time          `json:"last_attempted_at"`
}

// ResponderStatus - живая строка трекинга одного назначения реагирующих
// на инцидент. Архивируется (не удаляется) при резолве инцидента.
type ResponderStatus struct {
	IncidentID       uuid.UUID      `json:"incident_id"`
	ResponderClass   ResponderClass `json:"responder_class"`
	CurrentLocation  *LatLng        `json:"current_location,omitempty"`
	EstimatedArrival *time.Time     `json:"estimated_arrival,omitempty"`
	ArrivedAt        *time.Time     `json:"arrived_at,omitempty"`
	Archived         bool           `json:"archived,omitempty"`
}
