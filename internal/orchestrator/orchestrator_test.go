package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore - потокобезопасное хранилище в памяти: колбэки таймеров
// пишут в него из разных горутин
type fakeStore struct {
	mu        sync.Mutex
	incidents map[uuid.UUID]*models.Incident
	attempts  map[uuid.UUID]*models.DispatchAttempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		incidents: make(map[uuid.UUID]*models.Incident),
		attempts:  make(map[uuid.UUID]*models.DispatchAttempt),
	}
}

func (s *fakeStore) CreateIncident(_ context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *incident
	s.incidents[incident.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateIncident(_ context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *incident
	s.incidents[incident.ID] = &cp
	return nil
}

func (s *fakeStore) GetIncident(_ context.Context, id uuid.UUID) (*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	incident, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident with id %s not found", id)
	}
	cp := *incident
	return &cp, nil
}

func (s *fakeStore) ListIncidents(_ context.Context, _, _ int) ([]*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Incident
	for _, incident := range s.incidents {
		cp := *incident
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) ListOpenIncidents(_ context.Context) ([]*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Incident
	for _, incident := range s.incidents {
		if incident.State != models.StateResolved {
			cp := *incident
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateDispatchAttempt(_ context.Context, attempt *models.DispatchAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *attempt
	s.attempts[attempt.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateDispatchAttempt(_ context.Context, attempt *models.DispatchAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *attempt
	s.attempts[attempt.ID] = &cp
	return nil
}

func (s *fakeStore) ListDispatchAttempts(_ context.Context, incidentID uuid.UUID) ([]*models.DispatchAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DispatchAttempt
	for _, attempt := range s.attempts {
		if attempt.IncidentID == incidentID {
			cp := *attempt
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeTransport записывает опубликованные задания
type fakeTransport struct {
	mu   sync.Mutex
	jobs []DispatchJob
}

func (t *fakeTransport) Publish(_ context.Context, job DispatchJob) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = append(t.jobs, job)
	return nil
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

func (t *fakeTransport) list() []DispatchJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]DispatchJob(nil), t.jobs...)
}

// fakeDirectory - каталог субъектов; неизвестные идентификаторы дают ошибку
type fakeDirectory struct {
	unknown map[string]bool
}

func (d *fakeDirectory) GetSubject(_ context.Context, subjectID string) (*models.Subject, error) {
	if d.unknown[subjectID] {
		return nil, fmt.Errorf("subject %s not found", subjectID)
	}
	return &models.Subject{
		ID:                subjectID,
		EmergencyContacts: []string{"+7-900-000-00-01"},
		TrackingOptIn:     true,
	}, nil
}

// fakeTracker - трекер назначений в памяти: архив и строки трекинга
type fakeTracker struct {
	mu       sync.Mutex
	archived []uuid.UUID
	rows     map[uuid.UUID][]*models.ResponderStatus
}

func (a *fakeTracker) ArchiveIncident(_ context.Context, incidentID uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, incidentID)
	return nil
}

func (a *fakeTracker) ListByIncident(_ context.Context, incidentID uuid.UUID) ([]*models.ResponderStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*models.ResponderStatus(nil), a.rows[incidentID]...), nil
}

func (a *fakeTracker) setRows(incidentID uuid.UUID, rows []*models.ResponderStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rows == nil {
		a.rows = make(map[uuid.UUID][]*models.ResponderStatus)
	}
	a.rows[incidentID] = rows
}

func testConfig() *config.Config {
	return &config.Config{
		DispatchWorkers:   4,
		RetryBaseDelay:    10 * time.Millisecond,
		RetryFactor:       2,
		RetryMaxDelay:     50 * time.Millisecond,
		RetryMaxAttempts:  2,
		EscalationTimeout: time.Minute, // в тестах эскалации переопределяется
		TransportTimeout:  time.Second,
		ResponderChannels: map[models.ResponderClass][]string{
			models.ResponderPolice:        {"radio", "sms"},
			models.ResponderAmbulance:     {"radio", "call"},
			models.ResponderTouristPolice: {"radio"},
			models.ResponderContacts:      {"sms"},
			models.ResponderGeneral:       {"radio"},
		},
	}
}

func newTestOrchestrator(cfg *config.Config) (*Orchestrator, *fakeStore, *fakeTransport, *fakeTracker) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	store := newFakeStore()
	transport := &fakeTransport{}
	tracker := &fakeTracker{}
	o := New(cfg, store, transport, &fakeDirectory{}, nil, nil, tracker, logger)
	return o, store, transport, tracker
}

func inactivityEvent(subjectID string) models.AnomalyEvent {
	return models.AnomalyEvent{
		SubjectID:  subjectID,
		Kind:       models.AnomalyInactivity,
		Severity:   models.SeverityHigh,
		DetectedAt: time.Now().UTC(),
	}
}

func incidentAttempts(t *testing.T, o *Orchestrator, id uuid.UUID) []*models.DispatchAttempt {
	t.Helper()
	status, err := o.Status(context.Background(), id)
	require.NoError(t, err)
	return status.Attempts
}

func TestTriggerManual_CreatesIncidentAndDispatches(t *testing.T) {
	// Подготовка
	o, _, transport, _ := newTestOrchestrator(testConfig())
	ctx := context.Background()

	// Действие
	incident, err := o.TriggerManual(ctx, "tourist-1", models.LatLng{Latitude: 55.75, Longitude: 37.61})

	// Проверки: ручная тревога требует контакты, полицию и турполицию
	require.NoError(t, err)
	assert.Equal(t, models.OriginManualPanic, incident.Origin)
	assert.Equal(t, models.StateDispatching, incident.State)
	assert.ElementsMatch(t, []models.ResponderClass{
		models.ResponderContacts,
		models.ResponderPolice,
		models.ResponderTouristPolice,
	}, incident.RequiredClasses)
	require.NotNil(t, incident.EvidenceSnapshot.Location)
	assert.Equal(t, []string{"+7-900-000-00-01"}, incident.EvidenceSnapshot.EmergencyContacts)

	// По одному заданию на класс, контактам проставлены адресаты
	assert.Eventually(t, func() bool { return transport.count() == 3 }, time.Second, 5*time.Millisecond)
	for _, job := range transport.list() {
		if job.ResponderClass == models.ResponderContacts {
			assert.Equal(t, []string{"+7-900-000-00-01"}, job.Destinations)
		}
	}
}

func TestTriggerManual_InvalidLocation(t *testing.T) {
	// Подготовка
	o, _, _, _ := newTestOrchestrator(testConfig())

	// Действие
	incident, err := o.TriggerManual(context.Background(), "tourist-1", models.LatLng{Latitude: 95, Longitude: 0})

	// Проверки
	require.ErrorIs(t, err, models.ErrInvalidLocation)
	assert.Nil(t, incident)
}

func TestTrigger_UnknownSubjectReleasesSlot(t *testing.T) {
	// Подготовка
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	store := newFakeStore()
	o := New(testConfig(), store, &fakeTransport{}, &fakeDirectory{unknown: map[string]bool{"ghost": true}}, nil, nil, &fakeTracker{}, logger)
	ctx := context.Background()

	// Действие
	_, err := o.TriggerManual(ctx, "ghost", models.LatLng{Latitude: 1, Longitude: 1})

	// Проверки: отказ каталога не оставляет висящего слота субъекта
	require.ErrorIs(t, err, models.ErrUnknownSubject)
	_, err = o.TriggerManual(ctx, "ghost", models.LatLng{Latitude: 1, Longitude: 1})
	assert.ErrorIs(t, err, models.ErrUnknownSubject)
	assert.Empty(t, store.incidents)
}

func TestTrigger_DuplicateAppendsEvidence(t *testing.T) {
	// Подготовка
	o, _, _, _ := newTestOrchestrator(testConfig())
	ctx := context.Background()
	first, err := o.TriggerAnomaly(ctx, inactivityEvent("tourist-1"))
	require.NoError(t, err)

	// Действие: вторая тревога того же субъекта при открытом инциденте
	second, err := o.TriggerManual(ctx, "tourist-1", models.LatLng{Latitude: 1, Longitude: 1})

	// Проверки: второй инцидент не создаётся, доказательства дописаны
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, second.EvidenceSnapshot.Appended, 1)
	assert.Equal(t, models.OriginManualPanic, second.EvidenceSnapshot.Appended[0].Origin)

	// Ручной триггер расширил требуемые классы
	assert.True(t, second.HasClass(models.ResponderContacts))
	assert.True(t, second.HasClass(models.ResponderPolice))
	assert.True(t, second.HasClass(models.ResponderAmbulance))
}

func TestTrigger_ResolveRaceOpensNewIncident(t *testing.T) {
	// Подготовка
	o, _, transport, _ := newTestOrchestrator(testConfig())
	ctx := context.Background()
	loc := models.LatLng{Latitude: 1, Longitude: 1}
	first, err := o.TriggerManual(ctx, "tourist-1", loc)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return transport.count() == 3 }, time.Second, 5*time.Millisecond)

	// Гонка: append-путь взял ссылку на живой инцидент, резолв успел раньше
	o.mu.RLock()
	li := o.live[first.ID]
	o.mu.RUnlock()
	require.NotNil(t, li)
	require.NoError(t, o.Resolve(ctx, first.ID, "operator-1"))
	jobsBefore := transport.count()

	// Действие
	appended, err := o.appendTrigger(ctx, li, models.OriginManualPanic, nil, &loc)

	// Проверки: в закрытый инцидент ничего не дописано и не разослано
	require.ErrorIs(t, err, errResolvedDuringAppend)
	assert.Nil(t, appended)
	assert.Equal(t, jobsBefore, transport.count())
	status, err := o.Status(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, status.Incident.EvidenceSnapshot.Appended)

	// Новая тревога того же субъекта открывает новый инцидент
	second, err := o.TriggerManual(ctx, "tourist-1", loc)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, models.StateDispatching, second.State)
}

func TestStatus_IncludesResponderTracking(t *testing.T) {
	// Подготовка
	o, _, _, tracker := newTestOrchestrator(testConfig())
	ctx := context.Background()
	incident, err := o.TriggerManual(ctx, "tourist-1", models.LatLng{Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	tracker.setRows(incident.ID, []*models.ResponderStatus{
		{IncidentID: incident.ID, ResponderClass: models.ResponderPolice},
	})

	// Действие
	status, err := o.Status(ctx, incident.ID)

	// Проверки: снимок несёт и попытки доставки, и строки трекинга
	require.NoError(t, err)
	require.Len(t, status.Dispatch, 1)
	assert.Equal(t, models.ResponderPolice, status.Dispatch[0].ResponderClass)

	// После резолва статус читается из хранилища вместе со строками трекинга
	require.NoError(t, o.Resolve(ctx, incident.ID, "operator-1"))
	status, err = o.Status(ctx, incident.ID)
	require.NoError(t, err)
	assert.Len(t, status.Dispatch, 1)
}

func TestHasOpenIncident_TracksTriggerKinds(t *testing.T) {
	// Подготовка
	o, _, _, _ := newTestOrchestrator(testConfig())
	ctx := context.Background()

	assert.False(t, o.HasOpenIncident("tourist-1", models.AnomalyInactivity))

	// Действие
	incident, err := o.TriggerAnomaly(ctx, inactivityEvent("tourist-1"))
	require.NoError(t, err)

	// Проверки: открытый инцидент подавляет только свой вид триггера
	assert.True(t, o.HasOpenIncident("tourist-1", models.AnomalyInactivity))
	assert.False(t, o.HasOpenIncident("tourist-1", models.AnomalyHighSpeed))
	assert.False(t, o.HasOpenIncident("tourist-2", models.AnomalyInactivity))

	// После резолва подавление снимается
	require.NoError(t, o.Resolve(ctx, incident.ID, "operator-1"))
	assert.False(t, o.HasOpenIncident("tourist-1", models.AnomalyInactivity))
}

func TestOnTransportResult_AckPath(t *testing.T) {
	// Подготовка: аномалия бездействия требует только скорую
	o, _, transport, _ := newTestOrchestrator(testConfig())
	ctx := context.Background()
	incident, err := o.TriggerAnomaly(ctx, inactivityEvent("tourist-1"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return transport.count() == 1 }, time.Second, 5*time.Millisecond)
	attempt := incidentAttempts(t, o, incident.ID)[0]

	// Действие: доставка прошла по единственному требуемому классу
	require.NoError(t, o.OnTransportResult(ctx, attempt.ID, models.DispatchSent))

	// Проверки: все классы имеют попытку - ждём подтверждения
	status, err := o.Status(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingAck, status.Incident.State)

	// Подтверждение двигает инцидент вперёд
	require.NoError(t, o.OnTransportResult(ctx, attempt.ID, models.DispatchAcknowledged))
	status, err = o.Status(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAcknowledged, status.Incident.State)
}

func TestOnTransportResult_RetryAndChannelSwitch(t *testing.T) {
	// Подготовка
	o, _, transport, _ := newTestOrchestrator(testConfig())
	ctx := context.Background()
	incident, err := o.TriggerAnomaly(ctx, inactivityEvent("tourist-1"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return transport.count() == 1 }, time.Second, 5*time.Millisecond)

	first := incidentAttempts(t, o, incident.ID)[0]
	assert.Equal(t, "radio", first.Channel)
	assert.Equal(t, 1, first.AttemptNumber)

	// Действие: первая попытка провалилась - ретрай по тому же каналу
	require.NoError(t, o.OnTransportResult(ctx, first.ID, models.DispatchFailed))
	assert.Eventually(t, func() bool {
		return len(incidentAttempts(t, o, incident.ID)) == 2
	}, time.Second, 5*time.Millisecond)

	second := incidentAttempts(t, o, incident.ID)[1]
	assert.Equal(t, "radio", second.Channel)
	assert.Equal(t, 2, second.AttemptNumber)

	// Канал исчерпан - переключение на следующий канал класса
	require.NoError(t, o.OnTransportResult(ctx, second.ID, models.DispatchFailed))
	assert.Eventually(t, func() bool {
		return len(incidentAttempts(t, o, incident.ID)) == 3
	}, time.Second, 5*time.Millisecond)

	third := incidentAttempts(t, o, incident.ID)[2]
	assert.Equal(t, "call", third.Channel)
	assert.Equal(t, 1, third.AttemptNumber)
}

func TestEscalation_ZeroAcksAddsGeneralResponder(t *testing.T) {
	// Подготовка: короткий таймаут эскалации
	cfg := testConfig()
	cfg.EscalationTimeout = 40 * time.Millisecond
	o, _, transport, _ := newTestOrchestrator(cfg)
	ctx := context.Background()
	incident, err := o.TriggerAnomaly(ctx, inactivityEvent("tourist-1"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return transport.count() == 1 }, time.Second, 5*time.Millisecond)
	attempt := incidentAttempts(t, o, incident.ID)[0]

	// Действие: доставлено, но ни одного подтверждения до таймаута
	require.NoError(t, o.OnTransportResult(ctx, attempt.ID, models.DispatchSent))

	// Проверки: инцидент эскалирован, добавлен резервный общий класс
	assert.Eventually(t, func() bool {
		status, err := o.Status(ctx, incident.ID)
		return err == nil && status.Incident.State == models.StateEscalated
	}, time.Second, 5*time.Millisecond)

	status, err := o.Status(ctx, incident.ID)
	require.NoError(t, err)
	assert.True(t, status.Incident.HasClass(models.ResponderGeneral))

	// Позднее подтверждение состояния не откатывает
	require.NoError(t, o.OnTransportResult(ctx, attempt.ID, models.DispatchAcknowledged))
	status, err = o.Status(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateEscalated, status.Incident.State)
}

func TestResolve_Lifecycle(t *testing.T) {
	// Подготовка
	o, store, _, tracker := newTestOrchestrator(testConfig())
	ctx := context.Background()
	incident, err := o.TriggerManual(ctx, "tourist-1", models.LatLng{Latitude: 1, Longitude: 1})
	require.NoError(t, err)

	// Действие
	require.NoError(t, o.Resolve(ctx, incident.ID, "operator-7"))

	// Проверки: состояние терминально, трекинг заархивирован
	stored, err := store.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateResolved, stored.State)
	assert.Equal(t, "operator-7", stored.ResolvedBy)
	require.NotNil(t, stored.ResolvedAt)
	assert.Equal(t, []uuid.UUID{incident.ID}, tracker.archived)

	// Повторный резолв и резолв неизвестного инцидента отклоняются
	assert.ErrorIs(t, o.Resolve(ctx, incident.ID, "operator-7"), models.ErrAlreadyResolved)
	assert.ErrorIs(t, o.Resolve(ctx, uuid.New(), "operator-7"), models.ErrUnknownIncident)

	// Статус зарезолвленного инцидента читается из хранилища
	status, err := o.Status(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateResolved, status.Incident.State)
}

func TestOnTransportResult_UnknownAttempt(t *testing.T) {
	// Подготовка
	o, _, _, _ := newTestOrchestrator(testConfig())

	// Действие
	err := o.OnTransportResult(context.Background(), uuid.New(), models.DispatchSent)

	// Проверки
	assert.ErrorIs(t, err, models.ErrUnknownIncident)
}

func TestRecover_RestoresOpenIncidents(t *testing.T) {
	// Подготовка: открытый инцидент переживает рестарт только в бд
	cfg := testConfig()
	first, store, transport, _ := newTestOrchestrator(cfg)
	ctx := context.Background()
	incident, err := first.TriggerAnomaly(ctx, inactivityEvent("tourist-1"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return transport.count() == 1 }, time.Second, 5*time.Millisecond)

	// Действие: новый оркестратор поднимает состояние из того же хранилища
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	second := New(cfg, store, &fakeTransport{}, &fakeDirectory{}, nil, nil, &fakeTracker{}, logger)
	require.NoError(t, second.Recover(ctx))

	// Проверки: дедупликация и статус работают после восстановления
	assert.True(t, second.HasOpenIncident("tourist-1", models.AnomalyInactivity))
	status, err := second.Status(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, incident.ID, status.Incident.ID)
	assert.Len(t, status.Attempts, 1)
}
