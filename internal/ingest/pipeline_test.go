package ingest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/anomaly"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/geo"
	"github.com/shenikar/tourist_safety_system/internal/geofence"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyZoneSource struct{}

func (emptyZoneSource) ListZones(_ context.Context) ([]*models.Zone, error) {
	return nil, nil
}

// fakeSink записывает переданные оркестратору триггеры
type fakeSink struct {
	mu        sync.Mutex
	anomalies []models.AnomalyEvent
	manual    []string
}

func (s *fakeSink) TriggerAnomaly(_ context.Context, ev models.AnomalyEvent) (*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = append(s.anomalies, ev)
	return &models.Incident{ID: uuid.New()}, nil
}

func (s *fakeSink) TriggerManual(_ context.Context, subjectID string, _ models.LatLng) (*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual = append(s.manual, subjectID)
	return &models.Incident{ID: uuid.New()}, nil
}

func (s *fakeSink) anomalyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.anomalies)
}

type fakeDirectory struct {
	unknown map[string]bool
	optOut  map[string]bool
}

func (d *fakeDirectory) GetSubject(_ context.Context, subjectID string) (*models.Subject, error) {
	if d.unknown[subjectID] {
		return nil, fmt.Errorf("subject %s not found", subjectID)
	}
	return &models.Subject{ID: subjectID, TrackingOptIn: !d.optOut[subjectID]}, nil
}

// fakeEventLog - журнал событий в памяти
type fakeEventLog struct {
	mu          sync.Mutex
	transitions []*models.ZoneTransition
	anomalies   []*models.AnomalyEvent
}

func (l *fakeEventLog) AppendZoneTransition(_ context.Context, tr *models.ZoneTransition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, tr)
	return nil
}

func (l *fakeEventLog) AppendAnomaly(_ context.Context, ev *models.AnomalyEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.anomalies = append(l.anomalies, ev)
	return nil
}

func (l *fakeEventLog) anomalyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.anomalies)
}

type fakeGate struct{}

func (fakeGate) HasOpenIncident(_ string, _ models.AnomalyKind) bool { return false }

func newTestManager(t *testing.T, directory *fakeDirectory) (*Manager, *fakeSink, *fakeEventLog) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		PingHistorySize:         5,
		HysteresisConfirmations: 2,
		SpeedThresholdKmh:       200,
		SpeedMinElapsed:         10 * time.Second,
		SpeedMaxAccuracy:        50,
		ClusterRadiusMeters:     1000,
		ClusterWindow:           time.Hour,
		ClusterMinSubjects:      3,
		ViolationWindow:         2 * time.Hour,
		ViolationCount:          3,
	}

	index := geo.NewIndex(emptyZoneSource{}, logger)
	require.NoError(t, index.Refresh(context.Background()))
	evaluator := geofence.NewEvaluator(index, cfg, logger)
	detector := anomaly.NewDetector(cfg, fakeGate{}, logger)

	sink := &fakeSink{}
	events := &fakeEventLog{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewManager(ctx, cfg, evaluator, detector, sink, directory, events, logger), sink, events
}

func locationPing(subjectID string, lat, lng float64, at time.Time) models.LocationPing {
	return models.LocationPing{
		SubjectID:      subjectID,
		Latitude:       lat,
		Longitude:      lng,
		AccuracyRadius: 10,
		CapturedAt:     at,
	}
}

func TestReport_InvalidCoordinates(t *testing.T) {
	// Подготовка
	manager, _, _ := newTestManager(t, &fakeDirectory{})

	// Действие
	err := manager.Report(context.Background(), locationPing("s1", 95, 0, time.Now()))

	// Проверки
	assert.ErrorIs(t, err, models.ErrInvalidLocation)
}

func TestReport_UnknownSubject(t *testing.T) {
	// Подготовка
	manager, _, _ := newTestManager(t, &fakeDirectory{unknown: map[string]bool{"ghost": true}})

	// Действие
	err := manager.Report(context.Background(), locationPing("ghost", 1, 1, time.Now()))

	// Проверки
	assert.ErrorIs(t, err, models.ErrUnknownSubject)
}

func TestReport_HistoryRingAndDedup(t *testing.T) {
	// Подготовка
	manager, _, _ := newTestManager(t, &fakeDirectory{})
	ctx := context.Background()
	now := time.Now()
	lat := func(i int) float64 { return float64(i) * 0.0001 }

	// Действие: семь пингов при кольце на пять
	for i := 0; i < 7; i++ {
		ping := locationPing("s1", lat(i), 0, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, manager.Report(ctx, ping))
	}

	// Проверки: в буфере остаются пять новейших
	assert.Eventually(t, func() bool {
		h := manager.RecentHistory("s1")
		return len(h) == 5 && h[4].Latitude == lat(6)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, lat(2), manager.RecentHistory("s1")[0].Latitude)

	// Повторная доставка последнего пинга дедуплицируется
	require.NoError(t, manager.Report(ctx, locationPing("s1", lat(6), 0, now.Add(6*time.Minute))))
	require.NoError(t, manager.Report(ctx, locationPing("s1", lat(7), 0, now.Add(7*time.Minute))))
	assert.Eventually(t, func() bool {
		h := manager.RecentHistory("s1")
		return h[4].Latitude == lat(7) && h[3].Latitude == lat(6)
	}, time.Second, 5*time.Millisecond)
}

func TestReport_OutOfOrderFlagged(t *testing.T) {
	// Подготовка
	manager, _, _ := newTestManager(t, &fakeDirectory{})
	ctx := context.Background()
	now := time.Now()

	// Действие: второй пинг старше первого по времени захвата
	require.NoError(t, manager.Report(ctx, locationPing("s1", 0.001, 0, now)))
	require.NoError(t, manager.Report(ctx, locationPing("s1", 0.002, 0, now.Add(-time.Minute))))

	// Проверки: опоздавший принят, но помечен
	assert.Eventually(t, func() bool {
		h := manager.RecentHistory("s1")
		return len(h) == 2 && h[1].OutOfOrder && !h[0].OutOfOrder
	}, time.Second, 5*time.Millisecond)
}

func TestReport_HighSpeedAnomalyForwarded(t *testing.T) {
	// Подготовка
	manager, sink, events := newTestManager(t, &fakeDirectory{})
	ctx := context.Background()
	now := time.Now()

	// Действие: скачок ~5.5 км за минуту
	require.NoError(t, manager.Report(ctx, locationPing("s1", 0, 0, now)))
	require.NoError(t, manager.Report(ctx, locationPing("s1", 0.05, 0, now.Add(time.Minute))))

	// Проверки: аномалия зажурналирована и передана оркестратору
	assert.Eventually(t, func() bool {
		return sink.anomalyCount() == 1 && events.anomalyCount() == 1
	}, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, models.AnomalyHighSpeed, sink.anomalies[0].Kind)
}

func TestReportManualTrigger(t *testing.T) {
	// Подготовка
	manager, sink, _ := newTestManager(t, &fakeDirectory{unknown: map[string]bool{"ghost": true}})
	ctx := context.Background()
	loc := models.LatLng{Latitude: 10, Longitude: 20}

	// Действие
	incident, err := manager.ReportManualTrigger(ctx, "s1", loc)

	// Проверки
	require.NoError(t, err)
	require.NotNil(t, incident)
	assert.Equal(t, []string{"s1"}, sink.manual)

	// Невалидные координаты и неизвестный субъект отклоняются
	_, err = manager.ReportManualTrigger(ctx, "s1", models.LatLng{Latitude: 95, Longitude: 0})
	assert.ErrorIs(t, err, models.ErrInvalidLocation)
	_, err = manager.ReportManualTrigger(ctx, "ghost", loc)
	assert.ErrorIs(t, err, models.ErrUnknownSubject)
}
