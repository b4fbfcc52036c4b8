package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/geo"
	"github.com/shenikar/tourist_safety_system/internal/metrics"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Store определяет контракт для работы с бд инцидентов и попыток доставки
type Store interface {
	CreateIncident(ctx context.Context, incident *models.Incident) error
	UpdateIncident(ctx context.Context, incident *models.Incident) error
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, page, pageSize int) ([]*models.Incident, error)
	ListOpenIncidents(ctx context.Context) ([]*models.Incident, error)
	CreateDispatchAttempt(ctx context.Context, attempt *models.DispatchAttempt) error
	UpdateDispatchAttempt(ctx context.Context, attempt *models.DispatchAttempt) error
	ListDispatchAttempts(ctx context.Context, incidentID uuid.UUID) ([]*models.DispatchAttempt, error)
}

// DispatchJob - задание транспортному коллаборатору. Ядро решает, что и кому
// отправить; фактическая доставка (SMS, пуш, радио) снаружи.
type DispatchJob struct {
	AttemptID      uuid.UUID             `json:"attempt_id"`
	IncidentID     uuid.UUID             `json:"incident_id"`
	SubjectID      string                `json:"subject_id"`
	ResponderClass models.ResponderClass `json:"responder_class"`
	Channel        string                `json:"channel"`
	Destinations   []string              `json:"destinations,omitempty"`
	Origin         models.IncidentOrigin `json:"origin"`
	Location       *models.LatLng        `json:"location,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Transport - fire-and-forget передача заданий транспортному коллаборатору.
// Оркестратор никогда не блокируется на внешнем I/O: результаты доставки
// приходят асинхронно через OnTransportResult.
type Transport interface {
	Publish(ctx context.Context, job DispatchJob) error
}

// SubjectDirectory - внешний каталог субъектов; читается только в момент
// создания инцидента
type SubjectDirectory interface {
	GetSubject(ctx context.Context, subjectID string) (*models.Subject, error)
}

// HistoryProvider отдаёт недавнюю историю позиций субъекта для снапшота
type HistoryProvider interface {
	RecentHistory(subjectID string) []models.LocationPing
}

// IncidentStatus - снимок состояния инцидента для подписчиков и дашбордов
type IncidentStatus struct {
	Incident *models.Incident          `json:"incident"`
	Attempts []*models.DispatchAttempt `json:"dispatch_attempts"`
	Dispatch []*models.ResponderStatus `json:"dispatch_status"`
}

// StatusNotifier публикует обновления статуса инцидента подписчикам
type StatusNotifier interface {
	PublishStatus(ctx context.Context, status *IncidentStatus)
}

// DispatchTracker - трекер назначений реагирующих: его строки входят в снимок
// статуса, при резолве инцидента они архивируются
type DispatchTracker interface {
	ArchiveIncident(ctx context.Context, incidentID uuid.UUID) error
	ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]*models.ResponderStatus, error)
}

// errResolvedDuringAppend - триггер дождался блокировки инцидента, который
// успел зарезолвиться; вызывающий должен открыть новый инцидент
var errResolvedDuringAppend = errors.New("incident resolved during trigger append")

// liveIncident - открытый инцидент с сериализацией переходов: один инцидент
// никогда не обрабатывает два перехода одновременно (пер-инцидентный мьютекс,
// не глобальная блокировка).
type liveIncident struct {
	mu sync.Mutex

	incident *models.Incident
	attempts map[uuid.UUID]*models.DispatchAttempt
	ordered  []uuid.UUID // порядок создания попыток

	channelIdx       map[models.ResponderClass]int
	attemptedClasses map[models.ResponderClass]bool
	exhausted        map[models.ResponderClass]bool
	triggerKinds     map[models.AnomalyKind]bool

	retryTimers map[uuid.UUID]*time.Timer
	escalation  *time.Timer
	ackSeen     bool
	hardAlerted bool
}

// Orchestrator владеет жизненным циклом инцидентов: создание, рассылка по
// классам реагирующих, ретраи, эскалация, резолв.
type Orchestrator struct {
	cfg       *config.Config
	store     Store
	transport Transport
	directory SubjectDirectory
	history   HistoryProvider
	notifier  StatusNotifier
	tracker   DispatchTracker
	logger    *logrus.Logger

	mu           sync.RWMutex
	live         map[uuid.UUID]*liveIncident
	bySubject    map[string]uuid.UUID
	attemptIndex map[uuid.UUID]uuid.UUID // attempt -> incident

	sem chan struct{} // ограниченный пул воркеров рассылки
}

func New(cfg *config.Config, store Store, transport Transport, directory SubjectDirectory, history HistoryProvider, notifier StatusNotifier, tracker DispatchTracker, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		store:        store,
		transport:    transport,
		directory:    directory,
		history:      history,
		notifier:     notifier,
		tracker:      tracker,
		logger:       logger,
		live:         make(map[uuid.UUID]*liveIncident),
		bySubject:    make(map[string]uuid.UUID),
		attemptIndex: make(map[uuid.UUID]uuid.UUID),
		sem:          make(chan struct{}, cfg.DispatchWorkers),
	}
}

// SetHistoryProvider подключает источник недавней истории пингов.
// Вызывается один раз при сборке приложения, до начала приёма триггеров.
func (o *Orchestrator) SetHistoryProvider(history HistoryProvider) {
	o.history = history
}

// HasOpenIncident сообщает, есть ли у субъекта открытый инцидент с данным
// видом триггера. Используется детектором аномалий для дедупликации.
func (o *Orchestrator) HasOpenIncident(subjectID string, kind models.AnomalyKind) bool {
	o.mu.RLock()
	incID, ok := o.bySubject[subjectID]
	li := o.live[incID]
	o.mu.RUnlock()
	if !ok || li == nil {
		return false
	}
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.triggerKinds[kind]
}

// IncidentExists проверяет существование инцидента (для леджера)
func (o *Orchestrator) IncidentExists(ctx context.Context, id uuid.UUID) bool {
	o.mu.RLock()
	_, ok := o.live[id]
	o.mu.RUnlock()
	if ok {
		return true
	}
	incident, err := o.store.GetIncident(ctx, id)
	return err == nil && incident != nil
}

// TriggerManual обрабатывает ручную тревогу. Повторная тревога субъекта при
// уже открытом инциденте не создаёт второй - доказательства дописываются
// к существующему.
func (o *Orchestrator) TriggerManual(ctx context.Context, subjectID string, loc models.LatLng) (*models.Incident, error) {
	if !geo.ValidCoordinates(loc.Latitude, loc.Longitude) {
		return nil, models.ErrInvalidLocation
	}
	return o.trigger(ctx, subjectID, models.OriginManualPanic, nil, &loc)
}

// TriggerAnomaly обрабатывает квалифицирующую аномалию
func (o *Orchestrator) TriggerAnomaly(ctx context.Context, ev models.AnomalyEvent) (*models.Incident, error) {
	return o.trigger(ctx, ev.SubjectID, models.OriginAnomaly, &ev, nil)
}

func (o *Orchestrator) trigger(ctx context.Context, subjectID string, origin models.IncidentOrigin, ev *models.AnomalyEvent, loc *models.LatLng) (*models.Incident, error) {
	o.mu.Lock()
	if incID, ok := o.bySubject[subjectID]; ok {
		li := o.live[incID]
		o.mu.Unlock()
		incident, err := o.appendTrigger(ctx, li, origin, ev, loc)
		if errors.Is(err, errResolvedDuringAppend) {
			// Инцидент закрылся, пока триггер ждал его блокировку - резолв
			// уже освободил слот субъекта, открываем новый инцидент
			return o.trigger(ctx, subjectID, origin, ev, loc)
		}
		return incident, err
	}
	// Резервируем слот субъекта до создания, чтобы параллельный дубликат
	// не открыл второй инцидент
	incident := &models.Incident{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Origin:    origin,
		State:     models.StateNew,
		CreatedAt: time.Now().UTC(),
	}
	li := &liveIncident{
		incident:         incident,
		attempts:         make(map[uuid.UUID]*models.DispatchAttempt),
		channelIdx:       make(map[models.ResponderClass]int),
		attemptedClasses: make(map[models.ResponderClass]bool),
		exhausted:        make(map[models.ResponderClass]bool),
		triggerKinds:     make(map[models.AnomalyKind]bool),
		retryTimers:      make(map[uuid.UUID]*time.Timer),
	}
	// Свежий li захватываем до публикации в карты, чтобы параллельный
	// дубликат не дописался в ещё не сохранённый инцидент
	li.mu.Lock()
	defer li.mu.Unlock()
	o.live[incident.ID] = li
	o.bySubject[subjectID] = incident.ID
	o.mu.Unlock()

	if err := o.createIncident(ctx, li, origin, ev, loc); err != nil {
		o.mu.Lock()
		delete(o.live, incident.ID)
		delete(o.bySubject, subjectID)
		o.mu.Unlock()
		return nil, err
	}
	return li.incident, nil
}

// createIncident захватывает неизменяемый снапшот доказательств (история
// позиций, триггер, контакты из каталога - читаются только в этот момент)
// и переводит инцидент new -> dispatching.
func (o *Orchestrator) createIncident(ctx context.Context, li *liveIncident, origin models.IncidentOrigin, ev *models.AnomalyEvent, loc *models.LatLng) error {
	incident := li.incident
	log := o.logger.WithFields(logrus.Fields{
		"incident_id": incident.ID,
		"subject_id":  incident.SubjectID,
		"origin":      origin,
	})

	subject, err := o.directory.GetSubject(ctx, incident.SubjectID)
	if err != nil {
		log.WithError(err).Warn("Subject lookup failed on incident creation")
		return fmt.Errorf("%w: %s", models.ErrUnknownSubject, incident.SubjectID)
	}

	var recent []models.LocationPing
	if o.history != nil {
		recent = o.history.RecentHistory(incident.SubjectID)
	}
	snapshot := models.EvidenceSnapshot{
		RecentPings:       recent,
		Trigger:           ev,
		EmergencyContacts: subject.EmergencyContacts,
	}
	if loc != nil {
		snapshot.Location = loc
	} else if n := len(snapshot.RecentPings); n > 0 {
		pt := snapshot.RecentPings[n-1].Point()
		snapshot.Location = &pt
	}
	incident.EvidenceSnapshot = snapshot
	incident.RequiredClasses = requiredClasses(origin, ev)
	if ev != nil {
		li.triggerKinds[ev.Kind] = true
	}

	if err := o.store.CreateIncident(ctx, incident); err != nil {
		return fmt.Errorf("failed to persist incident: %w", err)
	}
	metrics.IncidentsTotal.WithLabelValues(string(origin)).Inc()
	log.WithField("required_classes", incident.RequiredClasses).Info("Incident created")

	o.setState(ctx, li, models.StateDispatching)
	for _, class := range incident.RequiredClasses {
		o.openChannelAttempt(ctx, li, class, 0, 1)
	}
	o.publishStatus(ctx, li)
	return nil
}

// appendTrigger дописывает дубликат триггера к открытому инциденту и
// расширяет требуемые классы, если новый триггер того требует
func (o *Orchestrator) appendTrigger(ctx context.Context, li *liveIncident, origin models.IncidentOrigin, ev *models.AnomalyEvent, loc *models.LatLng) (*models.Incident, error) {
	li.mu.Lock()
	defer li.mu.Unlock()

	// Дописывать можно только в открытый инцидент: после резолва ни новых
	// доказательств, ни новых рассылок
	if li.incident.State == models.StateResolved {
		return nil, errResolvedDuringAppend
	}

	incident := li.incident
	incident.EvidenceSnapshot.Appended = append(incident.EvidenceSnapshot.Appended, models.AppendedTrigger{
		Origin:     origin,
		Anomaly:    ev,
		Location:   loc,
		ReceivedAt: time.Now().UTC(),
	})
	if ev != nil {
		li.triggerKinds[ev.Kind] = true
	}

	for _, class := range requiredClasses(origin, ev) {
		if incident.HasClass(class) {
			continue
		}
		incident.RequiredClasses = append(incident.RequiredClasses, class)
		o.openChannelAttempt(ctx, li, class, 0, 1)
	}

	if err := o.store.UpdateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("failed to append incident evidence: %w", err)
	}
	o.logger.WithFields(logrus.Fields{
		"incident_id": incident.ID,
		"origin":      origin,
	}).Info("Duplicate trigger appended to open incident")
	o.publishStatus(ctx, li)
	return incident, nil
}

// openChannelAttempt создаёт попытку доставки классу по каналу с индексом
// channelIdx и отдаёт её пулу воркеров. Вызывается под li.mu.
func (o *Orchestrator) openChannelAttempt(ctx context.Context, li *liveIncident, class models.ResponderClass, channelIdx, attemptNumber int) {
	channels := o.cfg.ResponderChannels[class]
	if len(channels) == 0 {
		channels = []string{"default"}
	}
	if channelIdx >= len(channels) {
		o.markClassExhausted(ctx, li, class)
		return
	}
	li.channelIdx[class] = channelIdx

	attempt := &models.DispatchAttempt{
		ID:              uuid.New(),
		IncidentID:      li.incident.ID,
		ResponderClass:  class,
		Channel:         channels[channelIdx],
		Status:          models.DispatchQueued,
		AttemptNumber:   attemptNumber,
		LastAttemptedAt: time.Now().UTC(),
	}
	li.attempts[attempt.ID] = attempt
	li.ordered = append(li.ordered, attempt.ID)

	o.mu.Lock()
	o.attemptIndex[attempt.ID] = li.incident.ID
	o.mu.Unlock()

	if err := o.store.CreateDispatchAttempt(ctx, attempt); err != nil {
		o.logger.WithError(err).WithField("incident_id", li.incident.ID).Error("Failed to persist dispatch attempt")
	}

	job := DispatchJob{
		AttemptID:      attempt.ID,
		IncidentID:     li.incident.ID,
		SubjectID:      li.incident.SubjectID,
		ResponderClass: class,
		Channel:        attempt.Channel,
		Origin:         li.incident.Origin,
		Location:       li.incident.EvidenceSnapshot.Location,
		CreatedAt:      attempt.LastAttemptedAt,
	}
	if class == models.ResponderContacts {
		job.Destinations = li.incident.EvidenceSnapshot.EmergencyContacts
	}
	o.publishAsync(job)
}

// publishAsync передаёт задание транспорту из ограниченного пула воркеров.
// Ошибка публикации равносильна отказу доставки этой попытки.
func (o *Orchestrator) publishAsync(job DispatchJob) {
	go func() {
		o.sem <- struct{}{}
		defer func() { <-o.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.TransportTimeout)
		defer cancel()
		if err := o.transport.Publish(ctx, job); err != nil {
			o.logger.WithError(err).WithFields(logrus.Fields{
				"incident_id": job.IncidentID,
				"attempt_id":  job.AttemptID,
			}).Error("Failed to hand dispatch job to transport")
			_ = o.OnTransportResult(context.Background(), job.AttemptID, models.DispatchFailed)
		}
	}()
}

// OnTransportResult - колбэк результата доставки от транспортного коллаборатора
func (o *Orchestrator) OnTransportResult(ctx context.Context, attemptID uuid.UUID, status models.DispatchStatusKind) error {
	o.mu.RLock()
	incID, ok := o.attemptIndex[attemptID]
	li := o.live[incID]
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: dispatch attempt %s", models.ErrUnknownIncident, attemptID)
	}
	if li == nil {
		// Инцидент уже зарезолвлен - поздний результат игнорируем,
		// чтобы не породить дублирующих уведомлений
		o.logger.WithField("attempt_id", attemptID).Debug("Late transport result for resolved incident")
		return nil
	}

	li.mu.Lock()
	defer li.mu.Unlock()

	attempt, ok := li.attempts[attemptID]
	if !ok {
		return fmt.Errorf("%w: dispatch attempt %s", models.ErrUnknownIncident, attemptID)
	}
	if attempt.Status.Terminal() {
		return nil
	}

	attempt.Status = status
	attempt.LastAttemptedAt = time.Now().UTC()
	if err := o.store.UpdateDispatchAttempt(ctx, attempt); err != nil {
		o.logger.WithError(err).WithField("attempt_id", attemptID).Error("Failed to persist dispatch attempt status")
	}
	metrics.DispatchResultsTotal.WithLabelValues(string(status)).Inc()

	// Любой результат означает, что по классу была хотя бы одна попытка
	li.attemptedClasses[attempt.ResponderClass] = true

	switch status {
	case models.DispatchAcknowledged:
		o.onAcknowledged(ctx, li, attempt)
	case models.DispatchFailed:
		o.onFailed(ctx, li, attempt)
	}

	o.maybeAwaitAck(ctx, li)
	o.publishStatus(ctx, li)
	return nil
}

// maybeAwaitAck переводит dispatching -> awaiting_ack, когда по каждому
// требуемому классу была хотя бы одна попытка (успешная или нет)
func (o *Orchestrator) maybeAwaitAck(ctx context.Context, li *liveIncident) {
	if li.incident.State != models.StateDispatching {
		return
	}
	for _, class := range li.incident.RequiredClasses {
		if !li.attemptedClasses[class] {
			return
		}
	}
	o.setState(ctx, li, models.StateAwaitingAck)

	// Таймаут эскалации: ноль подтверждений за отведённое время
	incID := li.incident.ID
	li.escalation = time.AfterFunc(o.cfg.EscalationTimeout, func() {
		o.escalate(incID)
	})
}

// onAcknowledged - первое подтверждение любого требуемого класса двигает весь
// инцидент вперёд; остальные классы продолжают ретраи независимо
func (o *Orchestrator) onAcknowledged(ctx context.Context, li *liveIncident, attempt *models.DispatchAttempt) {
	li.ackSeen = true
	if t, ok := li.retryTimers[attempt.ID]; ok {
		t.Stop()
		delete(li.retryTimers, attempt.ID)
	}
	if li.escalation != nil {
		li.escalation.Stop()
		li.escalation = nil
	}
	// Эскалация монотонна: подтверждение после неё состояния не возвращает
	switch li.incident.State {
	case models.StateDispatching, models.StateAwaitingAck:
		o.setState(ctx, li, models.StateAcknowledged)
	}
	o.logger.WithFields(logrus.Fields{
		"incident_id":     li.incident.ID,
		"responder_class": attempt.ResponderClass,
	}).Info("Dispatch acknowledged")
}

// onFailed планирует ретрай с экспоненциальным бэкоффом; после исчерпания
// попыток канала переключается на следующий канал класса
func (o *Orchestrator) onFailed(ctx context.Context, li *liveIncident, attempt *models.DispatchAttempt) {
	incID := li.incident.ID
	class := attempt.ResponderClass
	delay := retryDelay(o.cfg, attempt.AttemptNumber)

	if attempt.AttemptNumber < o.cfg.RetryMaxAttempts {
		next := attempt.AttemptNumber + 1
		channelIdx := li.channelIdx[class]
		timer := time.AfterFunc(delay, func() {
			o.reopenAttempt(incID, class, channelIdx, next)
		})
		li.retryTimers[attempt.ID] = timer
		return
	}

	// Канал терминально исчерпан - пробуем следующий канал класса
	channels := o.cfg.ResponderChannels[class]
	nextIdx := li.channelIdx[class] + 1
	if nextIdx < len(channels) {
		timer := time.AfterFunc(delay, func() {
			o.reopenAttempt(incID, class, nextIdx, 1)
		})
		li.retryTimers[attempt.ID] = timer
		return
	}

	o.markClassExhausted(ctx, li, class)
}

// reopenAttempt выполняет отложенный ретрай или переключение канала.
// Таймер мог быть отменён подтверждением или резолвом - проверяем живость.
func (o *Orchestrator) reopenAttempt(incID uuid.UUID, class models.ResponderClass, channelIdx, attemptNumber int) {
	o.mu.RLock()
	li := o.live[incID]
	o.mu.RUnlock()
	if li == nil {
		return
	}
	li.mu.Lock()
	defer li.mu.Unlock()
	if li.incident.State == models.StateResolved {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.TransportTimeout)
	defer cancel()
	o.openChannelAttempt(ctx, li, class, channelIdx, attemptNumber)
	o.publishStatus(ctx, li)
}

// markClassExhausted фиксирует исчерпание всех каналов класса. Если после
// эскалации исчерпаны все классы без единого подтверждения - это фатальный
// случай: живая тревога, на которую не пробился ни один канал.
func (o *Orchestrator) markClassExhausted(ctx context.Context, li *liveIncident, class models.ResponderClass) {
	li.exhausted[class] = true
	o.logger.WithFields(logrus.Fields{
		"incident_id":     li.incident.ID,
		"responder_class": class,
	}).Warn("All channels exhausted for responder class")

	if li.ackSeen || li.hardAlerted || li.incident.State != models.StateEscalated {
		return
	}
	for _, c := range li.incident.RequiredClasses {
		if !li.exhausted[c] {
			return
		}
	}
	li.hardAlerted = true
	metrics.HardAlertsTotal.Inc()
	o.logger.WithFields(logrus.Fields{
		"incident_id": li.incident.ID,
		"subject_id":  li.incident.SubjectID,
	}).Error("HARD ALERT: no responder channel succeeded for a live emergency")
}

// escalate срабатывает по таймауту awaiting_ack без единого подтверждения.
// Эскалация монотонна: расширяет классы резервным и никогда не откатывается.
func (o *Orchestrator) escalate(incID uuid.UUID) {
	o.mu.RLock()
	li := o.live[incID]
	o.mu.RUnlock()
	if li == nil {
		return
	}
	li.mu.Lock()
	defer li.mu.Unlock()

	if li.ackSeen || li.incident.State != models.StateAwaitingAck {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.TransportTimeout)
	defer cancel()

	o.setState(ctx, li, models.StateEscalated)
	o.logger.WithFields(logrus.Fields{
		"incident_id": incID,
		"timeout":     o.cfg.EscalationTimeout.String(),
	}).Warn("Incident escalated: zero acknowledgements within timeout")

	if !li.incident.HasClass(models.ResponderGeneral) {
		li.incident.RequiredClasses = append(li.incident.RequiredClasses, models.ResponderGeneral)
		o.openChannelAttempt(ctx, li, models.ResponderGeneral, 0, 1)
	}
	if err := o.store.UpdateIncident(ctx, li.incident); err != nil {
		o.logger.WithError(err).WithField("incident_id", incID).Error("Failed to persist escalated incident")
	}
	o.publishStatus(ctx, li)
}

// Resolve - единственный способ закрыть инцидент: явное внешнее действие.
// Система никогда не закрывает тревогу молча.
func (o *Orchestrator) Resolve(ctx context.Context, incID uuid.UUID, resolvedBy string) error {
	o.mu.RLock()
	li := o.live[incID]
	o.mu.RUnlock()
	if li == nil {
		incident, err := o.store.GetIncident(ctx, incID)
		if err != nil || incident == nil {
			return fmt.Errorf("%w: %s", models.ErrUnknownIncident, incID)
		}
		return fmt.Errorf("%w: %s", models.ErrAlreadyResolved, incID)
	}

	li.mu.Lock()
	defer li.mu.Unlock()

	if li.incident.State == models.StateResolved {
		return fmt.Errorf("%w: %s", models.ErrAlreadyResolved, incID)
	}

	// Все отложенные ретраи гасим немедленно, чтобы после резолва
	// не ушло ни одного дублирующего уведомления
	for id, t := range li.retryTimers {
		t.Stop()
		delete(li.retryTimers, id)
	}
	if li.escalation != nil {
		li.escalation.Stop()
		li.escalation = nil
	}

	now := time.Now().UTC()
	li.incident.ResolvedAt = &now
	li.incident.ResolvedBy = resolvedBy
	o.setState(ctx, li, models.StateResolved)
	if err := o.store.UpdateIncident(ctx, li.incident); err != nil {
		return fmt.Errorf("failed to persist resolved incident: %w", err)
	}

	if err := o.tracker.ArchiveIncident(ctx, incID); err != nil {
		o.logger.WithError(err).WithField("incident_id", incID).Error("Failed to archive responder tracking rows")
	}

	o.mu.Lock()
	delete(o.live, incID)
	delete(o.bySubject, li.incident.SubjectID)
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"incident_id": incID,
		"resolved_by": resolvedBy,
	}).Info("Incident resolved")
	o.publishStatus(ctx, li)
	return nil
}

// Status возвращает снимок состояния инцидента
func (o *Orchestrator) Status(ctx context.Context, incID uuid.UUID) (*IncidentStatus, error) {
	o.mu.RLock()
	li := o.live[incID]
	o.mu.RUnlock()

	if li != nil {
		li.mu.Lock()
		defer li.mu.Unlock()
		return o.snapshotLocked(ctx, li), nil
	}

	incident, err := o.store.GetIncident(ctx, incID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownIncident, incID)
	}
	attempts, err := o.store.ListDispatchAttempts(ctx, incID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatch attempts: %w", err)
	}
	status := &IncidentStatus{Incident: incident, Attempts: attempts}
	o.attachDispatch(ctx, status)
	return status, nil
}

// List возвращает список инцидентов с пагинацией
func (o *Orchestrator) List(ctx context.Context, page, pageSize int) ([]*models.Incident, error) {
	return o.store.ListIncidents(ctx, page, pageSize)
}

// setState выполняет переход конечного автомата. Вызывается под li.mu.
func (o *Orchestrator) setState(ctx context.Context, li *liveIncident, state models.IncidentState) {
	li.incident.State = state
	metrics.IncidentTransitionsTotal.WithLabelValues(string(state)).Inc()
	if err := o.store.UpdateIncident(ctx, li.incident); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"incident_id": li.incident.ID,
			"state":       state,
		}).Error("Failed to persist incident state")
	}
}

// snapshotLocked собирает копию статуса. Вызывается под li.mu.
func (o *Orchestrator) snapshotLocked(ctx context.Context, li *liveIncident) *IncidentStatus {
	incidentCopy := *li.incident
	attempts := make([]*models.DispatchAttempt, 0, len(li.ordered))
	for _, id := range li.ordered {
		if a, ok := li.attempts[id]; ok {
			attemptCopy := *a
			attempts = append(attempts, &attemptCopy)
		}
	}
	status := &IncidentStatus{Incident: &incidentCopy, Attempts: attempts}
	o.attachDispatch(ctx, status)
	return status
}

// attachDispatch дополняет снимок статуса строками трекинга реагирующих
func (o *Orchestrator) attachDispatch(ctx context.Context, status *IncidentStatus) {
	if o.tracker == nil {
		return
	}
	rows, err := o.tracker.ListByIncident(ctx, status.Incident.ID)
	if err != nil {
		o.logger.WithError(err).WithField("incident_id", status.Incident.ID).Warn("Failed to attach responder tracking rows to status")
		return
	}
	status.Dispatch = rows
}

func (o *Orchestrator) publishStatus(ctx context.Context, li *liveIncident) {
	if o.notifier == nil {
		return
	}
	o.notifier.PublishStatus(ctx, o.snapshotLocked(ctx, li))
}

// Recover поднимает открытые инциденты из бд после рестарта и перевзводит
// таймеры эскалации
func (o *Orchestrator) Recover(ctx context.Context) error {
	open, err := o.store.ListOpenIncidents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open incidents: %w", err)
	}
	for _, incident := range open {
		attempts, err := o.store.ListDispatchAttempts(ctx, incident.ID)
		if err != nil {
			return fmt.Errorf("failed to list dispatch attempts for %s: %w", incident.ID, err)
		}
		li := &liveIncident{
			incident:         incident,
			attempts:         make(map[uuid.UUID]*models.DispatchAttempt),
			channelIdx:       make(map[models.ResponderClass]int),
			attemptedClasses: make(map[models.ResponderClass]bool),
			exhausted:        make(map[models.ResponderClass]bool),
			triggerKinds:     make(map[models.AnomalyKind]bool),
			retryTimers:      make(map[uuid.UUID]*time.Timer),
		}
		if tr := incident.EvidenceSnapshot.Trigger; tr != nil {
			li.triggerKinds[tr.Kind] = true
		}
		for _, a := range attempts {
			li.attempts[a.ID] = a
			li.ordered = append(li.ordered, a.ID)
			if a.Status != models.DispatchQueued {
				li.attemptedClasses[a.ResponderClass] = true
			}
			if a.Status == models.DispatchAcknowledged {
				li.ackSeen = true
			}
		}

		o.mu.Lock()
		o.live[incident.ID] = li
		o.bySubject[incident.SubjectID] = incident.ID
		for id := range li.attempts {
			o.attemptIndex[id] = incident.ID
		}
		o.mu.Unlock()

		if incident.State == models.StateAwaitingAck && !li.ackSeen {
			incID := incident.ID
			li.escalation = time.AfterFunc(o.cfg.EscalationTimeout, func() {
				o.escalate(incID)
			})
		}
	}
	o.logger.WithField("count", len(open)).Info("Recovered open incidents")
	return nil
}
