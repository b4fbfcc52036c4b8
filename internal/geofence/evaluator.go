package geofence

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/geo"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// subjectState - состояние гистерезиса одного субъекта.
// Доступ сериализован пайплайном субъекта, блокировка нужна только карте.
type subjectState struct {
	confirmed      *uuid.UUID // последняя подтверждённая зона, nil = вне зон
	candidate      *uuid.UUID
	candidateSet   bool
	candidateCount int
}

// Evaluator классифицирует пинги по зонам и эмитит переходы с гистерезисом:
// пинг, чей accuracy_radius накрывает границу зоны, не меняет подтверждённую
// зону в одиночку - требуется серия последовательных подтверждений,
// чтобы погасить дрожание GPS у границы.
type Evaluator struct {
	index  *geo.Index
	cfg    *config.Config
	logger *logrus.Logger

	mu       sync.RWMutex
	subjects map[string]*subjectState
}

func NewEvaluator(index *geo.Index, cfg *config.Config, logger *logrus.Logger) *Evaluator {
	return &Evaluator{
		index:    index,
		cfg:      cfg,
		logger:   logger,
		subjects: make(map[string]*subjectState),
	}
}

func (e *Evaluator) state(subjectID string) *subjectState {
	e.mu.RLock()
	st, ok := e.subjects[subjectID]
	e.mu.RUnlock()
	if ok {
		return st
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.subjects[subjectID]; ok {
		return st
	}
	st = &subjectState{}
	e.subjects[subjectID] = st
	return st
}

// Evaluate определяет принадлежность пинга зонам и возвращает переход,
// если подтверждённая зона субъекта изменилась. Повторные подтверждения
// той же зоны перехода не порождают.
func (e *Evaluator) Evaluate(ping *models.LocationPing) (*models.ZoneTransition, error) {
	if !geo.ValidCoordinates(ping.Latitude, ping.Longitude) {
		return nil, models.ErrInvalidLocation
	}

	pt := ping.Point()
	match := e.index.Locate(pt)

	var observed *uuid.UUID
	uncertain := false
	if match != nil {
		id := match.Zone.ID
		observed = &id
		// Точка могла оказаться и снаружи: граница внутри круга погрешности
		uncertain = match.BoundaryDistance <= ping.AccuracyRadius
	}

	st := e.state(ping.SubjectID)

	// Выход из зоны тоже может быть дрожанием: если точка рядом с границей
	// прежней подтверждённой зоны, требуем подтверждения серии.
	if match == nil && st.confirmed != nil {
		if d, ok := e.index.DistanceToZone(*st.confirmed, pt); ok && d <= ping.AccuracyRadius {
			uncertain = true
		}
	}

	if sameZone(observed, st.confirmed) {
		st.candidateSet = false
		st.candidateCount = 0
		return nil, nil
	}

	if uncertain {
		if st.candidateSet && sameZone(observed, st.candidate) {
			st.candidateCount++
		} else {
			st.candidate = observed
			st.candidateSet = true
			st.candidateCount = 1
		}
		if st.candidateCount < e.cfg.HysteresisConfirmations {
			return nil, nil
		}
	}

	transition := &models.ZoneTransition{
		SubjectID:  ping.SubjectID,
		FromZone:   st.confirmed,
		ToZone:     observed,
		OccurredAt: ping.CapturedAt,
	}
	st.confirmed = observed
	st.candidateSet = false
	st.candidateCount = 0

	e.logger.WithFields(logrus.Fields{
		"subject_id": ping.SubjectID,
		"from_zone":  zoneField(transition.FromZone),
		"to_zone":    zoneField(transition.ToZone),
	}).Debug("Zone transition confirmed")

	return transition, nil
}

// ZoneType возвращает тип зоны из текущего снапшота индекса
func (e *Evaluator) ZoneType(id uuid.UUID) (models.ZoneType, bool) {
	for _, z := range e.index.Snapshot() {
		if z.ID == id {
			return z.Type, true
		}
	}
	return "", false
}

func sameZone(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func zoneField(id *uuid.UUID) string {
	if id == nil {
		return "none"
	}
	return id.String()
}
