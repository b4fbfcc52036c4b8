package anomaly

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/geo"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// IncidentGate - проверка открытых инцидентов для дедупликации: детектор
// не переэмитит тот же вид аномалии для субъекта, пока соответствующий
// инцидент открыт. Подавление по открытому инциденту, а не по таймеру,
// чтобы длинный эпизод скорости не спамил.
type IncidentGate interface {
	HasOpenIncident(subjectID string, kind models.AnomalyKind) bool
}

// subjectTrack - накопленное состояние детекторов для одного субъекта
type subjectTrack struct {
	lastSeen          time.Time
	optIn             bool
	inactivityFlagged bool        // одна эмиссия на эпизод бездействия
	restrictedEntries []time.Time // входы в restricted-зоны в скользящем окне
	lastRestrictedID  uuid.UUID
}

// Detector - четыре независимых эвристики с фиксированными порогами:
// скорость, бездействие, повторные нарушения, кластер независимых тревог.
// Каждая оценивается отдельно и может сработать на одном и том же триггере.
type Detector struct {
	cfg    *config.Config
	gate   IncidentGate
	logger *logrus.Logger

	mu       sync.Mutex
	subjects map[string]*subjectTrack

	cluster *triggerCluster
}

func NewDetector(cfg *config.Config, gate IncidentGate, logger *logrus.Logger) *Detector {
	return &Detector{
		cfg:      cfg,
		gate:     gate,
		logger:   logger,
		subjects: make(map[string]*subjectTrack),
		cluster:  newTriggerCluster(cfg.ClusterRadiusMeters, cfg.ClusterWindow, cfg.ClusterMinSubjects),
	}
}

func (d *Detector) track(subjectID string) *subjectTrack {
	st, ok := d.subjects[subjectID]
	if !ok {
		st = &subjectTrack{optIn: true}
		d.subjects[subjectID] = st
	}
	return st
}

// SetTrackingOptIn фиксирует согласие субъекта на трекинг (из каталога).
// Без согласия свип бездействия субъекта не трогает.
func (d *Detector) SetTrackingOptIn(subjectID string, optIn bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.track(subjectID).optIn = optIn
}

// OnPing оценивает детектор скорости на паре последних in-order пингов
// и закрывает текущий эпизод бездействия субъекта.
func (d *Detector) OnPing(prev, curr *models.LocationPing) []models.AnomalyEvent {
	d.mu.Lock()
	st := d.track(curr.SubjectID)
	// Опоздавший пинг не откатывает lastSeen назад, иначе следующий свип
	// увидел бы ложное бездействие у активного субъекта
	if curr.CapturedAt.After(st.lastSeen) {
		st.lastSeen = curr.CapturedAt
		st.inactivityFlagged = false
	}
	d.mu.Unlock()

	if prev == nil || prev.OutOfOrder || curr.OutOfOrder {
		return nil
	}

	elapsed := curr.CapturedAt.Sub(prev.CapturedAt)
	// Слишком короткий интервал - шум деления на почти ноль
	if elapsed < d.cfg.SpeedMinElapsed {
		return nil
	}
	// Низкая уверенность GPS - подавляем
	if prev.AccuracyRadius > d.cfg.SpeedMaxAccuracy || curr.AccuracyRadius > d.cfg.SpeedMaxAccuracy {
		return nil
	}

	distMeters := geo.HaversineMeters(prev.Point(), curr.Point())
	speedKmh := distMeters / elapsed.Seconds() * 3.6
	if speedKmh <= d.cfg.SpeedThresholdKmh {
		return nil
	}

	if d.gate.HasOpenIncident(curr.SubjectID, models.AnomalyHighSpeed) {
		return nil
	}

	d.logger.WithFields(logrus.Fields{
		"subject_id": curr.SubjectID,
		"speed_kmh":  speedKmh,
	}).Warn("High-speed movement detected")

	return []models.AnomalyEvent{{
		SubjectID:  curr.SubjectID,
		Kind:       models.AnomalyHighSpeed,
		Severity:   models.SeverityCritical,
		DetectedAt: curr.CapturedAt,
		Evidence: models.AnomalyEvidence{
			HighSpeed: &models.HighSpeedEvidence{
				SpeedKmh:     speedKmh,
				SegmentStart: prev.Point(),
				SegmentEnd:   curr.Point(),
				StartedAt:    prev.CapturedAt,
				EndedAt:      curr.CapturedAt,
			},
		},
	}}
}

// OnTransition оценивает детектор повторных нарушений на входе в restricted-зону
func (d *Detector) OnTransition(tr *models.ZoneTransition, toType models.ZoneType) []models.AnomalyEvent {
	if tr.ToZone == nil || toType != models.ZoneRestricted {
		return nil
	}

	d.mu.Lock()
	st := d.track(tr.SubjectID)
	st.lastRestrictedID = *tr.ToZone
	st.restrictedEntries = append(st.restrictedEntries, tr.OccurredAt)
	cutoff := tr.OccurredAt.Add(-d.cfg.ViolationWindow)
	kept := st.restrictedEntries[:0]
	for _, t := range st.restrictedEntries {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	st.restrictedEntries = kept
	entries := append([]time.Time(nil), st.restrictedEntries...)
	zoneID := st.lastRestrictedID
	d.mu.Unlock()

	if len(entries) < d.cfg.ViolationCount {
		return nil
	}
	if d.gate.HasOpenIncident(tr.SubjectID, models.AnomalyRepeatedViolation) {
		return nil
	}

	// Серьёзность растёт с числом входов
	severity := models.SeverityMedium
	if len(entries) > d.cfg.ViolationCount {
		severity = models.SeverityHigh
	}

	d.logger.WithFields(logrus.Fields{
		"subject_id": tr.SubjectID,
		"entries":    len(entries),
	}).Warn("Repeated restricted-zone violation detected")

	return []models.AnomalyEvent{{
		SubjectID:  tr.SubjectID,
		Kind:       models.AnomalyRepeatedViolation,
		Severity:   severity,
		DetectedAt: tr.OccurredAt,
		Evidence: models.AnomalyEvidence{
			RepeatedViolation: &models.RepeatedViolationEvidence{
				ZoneID:  zoneID.String(),
				Entries: entries,
				Window:  d.cfg.ViolationWindow.String(),
				Count:   len(entries),
			},
		},
	}}
}

// OnManualTrigger регистрирует ручную тревогу в пространственном индексе
// недавних тревог и оценивает кластеризацию независимых субъектов.
// Единственный детектор, чья единица анализа - группа, а не субъект.
func (d *Detector) OnManualTrigger(subjectID string, loc models.LatLng, at time.Time) []models.AnomalyEvent {
	contributors, fired := d.cluster.add(subjectID, loc, at)
	if !fired {
		return nil
	}

	subjectIDs := make([]string, 0, len(contributors))
	for _, c := range contributors {
		subjectIDs = append(subjectIDs, c.SubjectID)
	}
	d.logger.WithFields(logrus.Fields{
		"subject_id": subjectID,
		"subjects":   subjectIDs,
	}).Warn("Area hazard cluster detected")

	return []models.AnomalyEvent{{
		SubjectID:  subjectID,
		Kind:       models.AnomalyAreaHazard,
		Severity:   models.SeverityCritical,
		DetectedAt: at,
		Evidence: models.AnomalyEvidence{
			AreaHazard: &models.AreaHazardEvidence{
				Contributors: contributors,
				RadiusMeters: d.cfg.ClusterRadiusMeters,
			},
		},
	}}
}

// Sweep оценивает детектор бездействия по всем субъектам. Вызывается
// периодическим свипом, не приходом пинга. Одна эмиссия на эпизод:
// после срабатывания субъект молчит до нового пинга.
func (d *Detector) Sweep(now time.Time) []models.AnomalyEvent {
	d.mu.Lock()
	type inactive struct {
		subjectID string
		lastSeen  time.Time
		silence   time.Duration
	}
	var candidates []inactive
	for id, st := range d.subjects {
		if !st.optIn || st.inactivityFlagged || st.lastSeen.IsZero() {
			continue
		}
		silence := now.Sub(st.lastSeen)
		if silence >= d.cfg.InactivityThreshold {
			st.inactivityFlagged = true
			candidates = append(candidates, inactive{id, st.lastSeen, silence})
		}
	}
	d.mu.Unlock()

	var events []models.AnomalyEvent
	for _, c := range candidates {
		if d.gate.HasOpenIncident(c.subjectID, models.AnomalyInactivity) {
			continue
		}
		severity := models.SeverityHigh
		if c.silence >= 4*d.cfg.InactivityThreshold {
			severity = models.SeverityCritical
		}
		events = append(events, models.AnomalyEvent{
			SubjectID:  c.subjectID,
			Kind:       models.AnomalyInactivity,
			Severity:   severity,
			DetectedAt: now,
			Evidence: models.AnomalyEvidence{
				Inactivity: &models.InactivityEvidence{
					LastSeenAt: c.lastSeen,
					Silence:    c.silence,
				},
			},
		})
	}
	return events
}
