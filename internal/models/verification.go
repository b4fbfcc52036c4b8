package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationRecord - запись аутентификации реагирующего по инциденту.
// Цепочка append-only: record_hash = H(prior_hash ‖ incident_id ‖ responder_id ‖ verified_at),
// prior_hash записи n равен record_hash записи n-1 цепочки этого реагирующего.
type VerificationRecord struct {
	IncidentID  uuid.UUID `json:"incident_id"`
	ResponderID string    `json:"responder_id"`
	VerifiedAt  time.Time `json:"verified_at"`
	PriorHash   string    `json:"prior_hash"`
	RecordHash  string    `json:"record_hash"`
}
