package anomaly

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGate - управляемая заглушка проверки открытых инцидентов
type stubGate struct {
	open map[models.AnomalyKind]bool
}

func (g *stubGate) HasOpenIncident(_ string, kind models.AnomalyKind) bool {
	return g.open[kind]
}

func newTestDetector(gate *stubGate) *Detector {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		SpeedThresholdKmh:   200,
		SpeedMinElapsed:     10 * time.Second,
		SpeedMaxAccuracy:    50,
		InactivityThreshold: 30 * time.Minute,
		ViolationWindow:     2 * time.Hour,
		ViolationCount:      3,
		ClusterRadiusMeters: 1000,
		ClusterWindow:       time.Hour,
		ClusterMinSubjects:  3,
	}
	return NewDetector(cfg, gate, logger)
}

func pingAt(subjectID string, lat, lng float64, at time.Time) *models.LocationPing {
	return &models.LocationPing{
		SubjectID:      subjectID,
		Latitude:       lat,
		Longitude:      lng,
		AccuracyRadius: 10,
		CapturedAt:     at,
	}
}

func TestOnPing_HighSpeedDetected(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()

	// Действие: ~5.5 км за 60 секунд - около 330 км/ч
	prev := pingAt("s1", 0, 0, now)
	curr := pingAt("s1", 0.05, 0, now.Add(time.Minute))
	events := detector.OnPing(prev, curr)

	// Проверки
	require.Len(t, events, 1)
	assert.Equal(t, models.AnomalyHighSpeed, events[0].Kind)
	assert.Equal(t, models.SeverityCritical, events[0].Severity)
	require.NotNil(t, events[0].Evidence.HighSpeed)
	assert.Greater(t, events[0].Evidence.HighSpeed.SpeedKmh, 200.0)
}

func TestOnPing_NormalSpeedIgnored(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()

	// Действие: ~550 метров за 60 секунд - около 33 км/ч
	events := detector.OnPing(pingAt("s1", 0, 0, now), pingAt("s1", 0.005, 0, now.Add(time.Minute)))

	// Проверки
	assert.Empty(t, events)
}

func TestOnPing_GuardsSuppressSpeedCheck(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()

	// Слишком короткий интервал между пингами
	events := detector.OnPing(pingAt("s1", 0, 0, now), pingAt("s1", 0.05, 0, now.Add(2*time.Second)))
	assert.Empty(t, events)

	// Низкая уверенность GPS
	prev := pingAt("s2", 0, 0, now)
	curr := pingAt("s2", 0.05, 0, now.Add(time.Minute))
	curr.AccuracyRadius = 120
	assert.Empty(t, detector.OnPing(prev, curr))

	// Опоздавший пинг исключается из расчётов скорости
	prev = pingAt("s3", 0, 0, now)
	curr = pingAt("s3", 0.05, 0, now.Add(time.Minute))
	curr.OutOfOrder = true
	assert.Empty(t, detector.OnPing(prev, curr))

	// Нет предыдущего пинга
	assert.Empty(t, detector.OnPing(nil, pingAt("s4", 0.05, 0, now)))
}

func TestOnPing_OpenIncidentSuppressesReemission(t *testing.T) {
	// Подготовка: инцидент по скорости уже открыт
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{models.AnomalyHighSpeed: true}})
	now := time.Now()

	// Действие
	events := detector.OnPing(pingAt("s1", 0, 0, now), pingAt("s1", 0.05, 0, now.Add(time.Minute)))

	// Проверки
	assert.Empty(t, events)
}

func TestOnTransition_RepeatedViolation(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()
	zoneID := uuid.New()

	transition := func(at time.Time) *models.ZoneTransition {
		return &models.ZoneTransition{SubjectID: "s1", ToZone: &zoneID, OccurredAt: at}
	}

	// Действие: первые два входа в restricted-зону ниже порога
	assert.Empty(t, detector.OnTransition(transition(now), models.ZoneRestricted))
	assert.Empty(t, detector.OnTransition(transition(now.Add(10*time.Minute)), models.ZoneRestricted))

	// Третий вход в окне - аномалия средней серьёзности
	events := detector.OnTransition(transition(now.Add(20*time.Minute)), models.ZoneRestricted)
	require.Len(t, events, 1)
	assert.Equal(t, models.AnomalyRepeatedViolation, events[0].Kind)
	assert.Equal(t, models.SeverityMedium, events[0].Severity)
	require.NotNil(t, events[0].Evidence.RepeatedViolation)
	assert.Equal(t, 3, events[0].Evidence.RepeatedViolation.Count)

	// Четвёртый вход - серьёзность растёт
	events = detector.OnTransition(transition(now.Add(30*time.Minute)), models.ZoneRestricted)
	require.Len(t, events, 1)
	assert.Equal(t, models.SeverityHigh, events[0].Severity)
}

func TestOnTransition_SafeZoneIgnored(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	zoneID := uuid.New()

	// Действие
	events := detector.OnTransition(&models.ZoneTransition{
		SubjectID:  "s1",
		ToZone:     &zoneID,
		OccurredAt: time.Now(),
	}, models.ZoneSafe)

	// Проверки
	assert.Empty(t, events)
}

func TestOnTransition_EntriesOutsideWindowExpire(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()
	zoneID := uuid.New()

	transition := func(at time.Time) *models.ZoneTransition {
		return &models.ZoneTransition{SubjectID: "s1", ToZone: &zoneID, OccurredAt: at}
	}

	// Два старых входа выпадают из двухчасового окна
	assert.Empty(t, detector.OnTransition(transition(now.Add(-3*time.Hour)), models.ZoneRestricted))
	assert.Empty(t, detector.OnTransition(transition(now.Add(-150*time.Minute)), models.ZoneRestricted))

	// Действие: третий вход, но в окне он один
	events := detector.OnTransition(transition(now), models.ZoneRestricted)

	// Проверки
	assert.Empty(t, events)
}

func TestOnManualTrigger_AreaHazardCluster(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()
	loc := models.LatLng{Latitude: 10, Longitude: 20}

	// Действие: три независимых субъекта в радиусе за окно
	assert.Empty(t, detector.OnManualTrigger("s1", loc, now))
	assert.Empty(t, detector.OnManualTrigger("s2", loc, now.Add(time.Minute)))
	events := detector.OnManualTrigger("s3", loc, now.Add(2*time.Minute))

	// Проверки: ровно одна аномалия на кластер
	require.Len(t, events, 1)
	assert.Equal(t, models.AnomalyAreaHazard, events[0].Kind)
	assert.Equal(t, models.SeverityCritical, events[0].Severity)
	require.NotNil(t, events[0].Evidence.AreaHazard)
	assert.Len(t, events[0].Evidence.AreaHazard.Contributors, 3)

	// Четвёртая тревога в том же эпизоде кластера ничего не эмитит
	assert.Empty(t, detector.OnManualTrigger("s4", loc, now.Add(3*time.Minute)))
}

func TestOnManualTrigger_DistantTriggersDoNotCluster(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()

	// Действие: тревоги дальше километра друг от друга
	assert.Empty(t, detector.OnManualTrigger("s1", models.LatLng{Latitude: 10, Longitude: 20}, now))
	assert.Empty(t, detector.OnManualTrigger("s2", models.LatLng{Latitude: 10.05, Longitude: 20}, now.Add(time.Minute)))
	events := detector.OnManualTrigger("s3", models.LatLng{Latitude: 10.1, Longitude: 20}, now.Add(2*time.Minute))

	// Проверки
	assert.Empty(t, events)
}

func TestSweep_InactivityEpisodes(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()
	detector.OnPing(nil, pingAt("s1", 0, 0, now))
	detector.SetTrackingOptIn("s1", true)

	// Молчание короче порога - аномалии нет
	assert.Empty(t, detector.Sweep(now.Add(10*time.Minute)))

	// Действие: молчание дольше порога
	events := detector.Sweep(now.Add(31 * time.Minute))

	// Проверки
	require.Len(t, events, 1)
	assert.Equal(t, models.AnomalyInactivity, events[0].Kind)
	assert.Equal(t, models.SeverityHigh, events[0].Severity)

	// Одна эмиссия на эпизод: повторный свип молчит
	assert.Empty(t, detector.Sweep(now.Add(40*time.Minute)))

	// Новый пинг закрывает эпизод, долгое молчание - критическая серьёзность
	detector.OnPing(nil, pingAt("s1", 0, 0, now.Add(time.Hour)))
	events = detector.Sweep(now.Add(time.Hour + 121*time.Minute))
	require.Len(t, events, 1)
	assert.Equal(t, models.SeverityCritical, events[0].Severity)
}

func TestSweep_StalePingDoesNotRewindLastSeen(t *testing.T) {
	// Подготовка: субъект активно пингует
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()
	detector.OnPing(nil, pingAt("s1", 0, 0, now))
	detector.SetTrackingOptIn("s1", true)

	// Действие: опоздавший пинг с захватом двухчасовой давности
	stale := pingAt("s1", 0.001, 0, now.Add(-2*time.Hour))
	stale.OutOfOrder = true
	detector.OnPing(pingAt("s1", 0, 0, now), stale)

	// Проверки: lastSeen не откатился, свип не видит бездействия
	assert.Empty(t, detector.Sweep(now.Add(time.Second)))
}

func TestSweep_OptOutExcluded(t *testing.T) {
	// Подготовка
	detector := newTestDetector(&stubGate{open: map[models.AnomalyKind]bool{}})
	now := time.Now()
	detector.OnPing(nil, pingAt("s1", 0, 0, now))
	detector.SetTrackingOptIn("s1", false)

	// Действие
	events := detector.Sweep(now.Add(time.Hour))

	// Проверки: без согласия на трекинг свип субъекта не трогает
	assert.Empty(t, events)
}
