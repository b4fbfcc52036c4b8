package models

import (
	"time"
)

// LocationPing - отчет о местоположении субъекта.
// Неизменяем после приёма; хранится только в кольцевом буфере пайплайна.
type LocationPing struct {
	SubjectID      string    `json:"subject_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyRadius float64   `json:"accuracy_radius"` // метры
	CapturedAt     time.Time `json:"captured_at"`
	// OutOfOrder - captured_at меньше последнего принятого для субъекта.
	// Такие пинги проверяются на принадлежность зонам, но исключаются
	// из расчётов скорости и дистанции.
	OutOfOrder bool `json:"out_of_order,omitempty"`
}

// Point возвращает координаты пинга
func (p LocationPing) Point() LatLng {
	return LatLng{Latitude: p.Latitude, Longitude: p.Longitude}
}

// Subject - отслеживаемый человек. Жизненным циклом владеет внешний каталог,
// ядро читает его только при создании инцидента.
type Subject struct {
	ID                string   `json:"id"`
	EmergencyContacts []string `json:"emergency_contacts"`
	TrackingOptIn     bool     `json:"tracking_opt_in"`
}
