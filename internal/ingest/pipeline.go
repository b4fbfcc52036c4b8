package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shenikar/tourist_safety_system/internal/anomaly"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/geo"
	"github.com/shenikar/tourist_safety_system/internal/geofence"
	"github.com/shenikar/tourist_safety_system/internal/metrics"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Sink принимает квалифицирующие аномалии (оркестратор инцидентов)
type Sink interface {
	TriggerAnomaly(ctx context.Context, ev models.AnomalyEvent) (*models.Incident, error)
	TriggerManual(ctx context.Context, subjectID string, loc models.LatLng) (*models.Incident, error)
}

// Directory - внешний каталог субъектов; существование субъекта проверяется
// при создании пайплайна, согласие на трекинг уходит в детектор бездействия
type Directory interface {
	GetSubject(ctx context.Context, subjectID string) (*models.Subject, error)
}

// EventLog - append-only журнал переходов и аномалий (аудит)
type EventLog interface {
	AppendZoneTransition(ctx context.Context, tr *models.ZoneTransition) error
	AppendAnomaly(ctx context.Context, ev *models.AnomalyEvent) error
}

// pipeline - логически однопоточный конвейер одного субъекта:
// geofence -> anomaly -> orchestrator. Кольцевой буфер последних пингов
// консистентен, потому что его мутирует только горутина пайплайна.
type pipeline struct {
	subjectID string
	ch        chan models.LocationPing

	histMu      sync.Mutex
	history     []models.LocationPing // кольцо, новейший в конце
	lastInOrder *models.LocationPing
}

// Manager раздаёт пинги по пайплайнам субъектов. Пайплайны разных субъектов
// работают полностью параллельно - разделяемого изменяемого состояния между
// субъектами нет (кроме кластера тревог внутри детектора).
type Manager struct {
	cfg       *config.Config
	evaluator *geofence.Evaluator
	detector  *anomaly.Detector
	sink      Sink
	directory Directory
	events    EventLog
	logger    *logrus.Logger

	ctx context.Context

	mu        sync.RWMutex
	pipelines map[string]*pipeline
}

func NewManager(ctx context.Context, cfg *config.Config, evaluator *geofence.Evaluator, detector *anomaly.Detector, sink Sink, directory Directory, events EventLog, logger *logrus.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		evaluator: evaluator,
		detector:  detector,
		sink:      sink,
		directory: directory,
		events:    events,
		logger:    logger,
		ctx:       ctx,
		pipelines: make(map[string]*pipeline),
	}
}

// Report - точка входа приёма пингов. Некорректные координаты отклоняются
// синхронно и не влияют ни на другие пинги, ни на других субъектов.
func (m *Manager) Report(ctx context.Context, ping models.LocationPing) error {
	if !geo.ValidCoordinates(ping.Latitude, ping.Longitude) {
		metrics.PingsRejectedTotal.Inc()
		return models.ErrInvalidLocation
	}

	p, err := m.pipeline(ctx, ping.SubjectID)
	if err != nil {
		return err
	}

	select {
	case p.ch <- ping:
		metrics.PingsIngestedTotal.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportManualTrigger - точка входа ручной тревоги: открывает (или дополняет)
// инцидент и прогоняет кластеризацию независимых тревог.
func (m *Manager) ReportManualTrigger(ctx context.Context, subjectID string, loc models.LatLng) (*models.Incident, error) {
	if !geo.ValidCoordinates(loc.Latitude, loc.Longitude) {
		return nil, models.ErrInvalidLocation
	}
	if _, err := m.directory.GetSubject(ctx, subjectID); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownSubject, subjectID)
	}

	incident, err := m.sink.TriggerManual(ctx, subjectID, loc)
	if err != nil {
		return nil, err
	}

	for _, ev := range m.detector.OnManualTrigger(subjectID, loc, time.Now().UTC()) {
		m.forwardAnomaly(ctx, ev)
	}
	return incident, nil
}

// ForwardAnomaly принимает аномалию из внешнего источника (свипер бездействия)
// и прогоняет её через общий путь журналирования и открытия инцидента
func (m *Manager) ForwardAnomaly(ctx context.Context, ev models.AnomalyEvent) {
	m.forwardAnomaly(ctx, ev)
}

// RecentHistory возвращает копию кольцевого буфера субъекта (для снапшота
// доказательств инцидента)
func (m *Manager) RecentHistory(subjectID string) []models.LocationPing {
	m.mu.RLock()
	p := m.pipelines[subjectID]
	m.mu.RUnlock()
	if p == nil {
		return nil
	}
	p.histMu.Lock()
	defer p.histMu.Unlock()
	out := make([]models.LocationPing, len(p.history))
	copy(out, p.history)
	return out
}

func (m *Manager) pipeline(ctx context.Context, subjectID string) (*pipeline, error) {
	m.mu.RLock()
	p, ok := m.pipelines[subjectID]
	m.mu.RUnlock()
	if ok {
		return p, nil
	}

	// Существование субъекта проверяем один раз, при создании пайплайна
	subject, err := m.directory.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownSubject, subjectID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok = m.pipelines[subjectID]; ok {
		return p, nil
	}
	p = &pipeline{
		subjectID: subjectID,
		ch:        make(chan models.LocationPing, 64),
	}
	m.pipelines[subjectID] = p
	m.detector.SetTrackingOptIn(subjectID, subject.TrackingOptIn)
	go m.run(p)

	m.logger.WithField("subject_id", subjectID).Debug("Subject pipeline started")
	return p, nil
}

func (m *Manager) run(p *pipeline) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case ping := <-p.ch:
			m.process(p, ping)
		}
	}
}

func (m *Manager) process(p *pipeline, ping models.LocationPing) {
	p.histMu.Lock()
	// Дедупликация повторной доставки того же отчёта
	if n := len(p.history); n > 0 {
		last := p.history[n-1]
		if last.CapturedAt.Equal(ping.CapturedAt) && last.Latitude == ping.Latitude && last.Longitude == ping.Longitude {
			p.histMu.Unlock()
			return
		}
	}
	// Опоздавшие пинги принимаются, но исключаются из расчётов скорости
	var prev *models.LocationPing
	if p.lastInOrder != nil && ping.CapturedAt.Before(p.lastInOrder.CapturedAt) {
		ping.OutOfOrder = true
		metrics.PingsOutOfOrderTotal.Inc()
	} else {
		prev = p.lastInOrder
		copied := ping
		p.lastInOrder = &copied
	}
	p.history = append(p.history, ping)
	if len(p.history) > m.cfg.PingHistorySize {
		p.history = p.history[len(p.history)-m.cfg.PingHistorySize:]
	}
	p.histMu.Unlock()

	log := m.logger.WithField("subject_id", p.subjectID)

	transition, err := m.evaluator.Evaluate(&ping)
	if err != nil {
		// Ошибка одного пинга локальна, конвейер продолжает работу
		log.WithError(err).Warn("Geofence evaluation rejected ping")
		return
	}

	var events []models.AnomalyEvent
	if transition != nil {
		metrics.ZoneTransitionsTotal.Inc()
		if err := m.events.AppendZoneTransition(m.ctx, transition); err != nil {
			log.WithError(err).Error("Failed to persist zone transition")
		}
		if transition.ToZone != nil {
			if zoneType, ok := m.evaluator.ZoneType(*transition.ToZone); ok {
				events = append(events, m.detector.OnTransition(transition, zoneType)...)
			}
		}
	}
	events = append(events, m.detector.OnPing(prev, &ping)...)

	for _, ev := range events {
		m.forwardAnomaly(m.ctx, ev)
	}
}

func (m *Manager) forwardAnomaly(ctx context.Context, ev models.AnomalyEvent) {
	metrics.AnomaliesTotal.WithLabelValues(string(ev.Kind)).Inc()
	if err := m.events.AppendAnomaly(ctx, &ev); err != nil {
		m.logger.WithError(err).Error("Failed to persist anomaly event")
	}
	if _, err := m.sink.TriggerAnomaly(ctx, ev); err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"subject_id": ev.SubjectID,
			"kind":       ev.Kind,
		}).Error("Failed to open incident for anomaly")
	}
}
