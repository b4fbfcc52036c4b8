package v1

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/shenikar/tourist_safety_system/internal/orchestrator"
	"github.com/shenikar/tourist_safety_system/internal/service"
	"github.com/shenikar/tourist_safety_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testMocks struct {
	location *mocks.MockLocationService
	incident *mocks.MockIncidentService
	ledger   *mocks.MockLedgerService
	tracker  *mocks.MockTrackerService
	zone     *mocks.MockZoneService
}

func setupTestRouter(t *testing.T) (*gin.Engine, *testMocks) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)

	m := &testMocks{
		location: mocks.NewMockLocationService(ctrl),
		incident: mocks.NewMockIncidentService(ctrl),
		ledger:   mocks.NewMockLedgerService(ctrl),
		tracker:  mocks.NewMockTrackerService(ctrl),
		zone:     mocks.NewMockZoneService(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	handler := NewHandler(m.location, m.incident, m.ledger, m.tracker, m.zone, nil, logger, &config.Config{})
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterPublicRoutes(api)
	handler.RegisterRoutes(api)
	return router, m
}

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestReportLocation(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	body := ReportLocationRequest{
		SubjectID:      "tourist-1",
		Latitude:       55.75,
		Longitude:      37.61,
		AccuracyRadius: 10,
		CapturedAt:     time.Now().UTC(),
	}

	// Ожидания
	m.location.EXPECT().ReportLocation(gomock.Any(), gomock.Any()).Return(nil)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/locations", body)

	// Проверки
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestReportLocation_InvalidBody(t *testing.T) {
	// Подготовка: нет обязательного subject_id
	router, _ := setupTestRouter(t)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/locations", gin.H{"latitude": 1.0, "longitude": 1.0})

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportLocation_UnknownSubject(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	body := ReportLocationRequest{
		SubjectID:  "ghost",
		Latitude:   55.75,
		Longitude:  37.61,
		CapturedAt: time.Now().UTC(),
	}

	// Ожидания
	m.location.EXPECT().ReportLocation(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("%w: ghost", models.ErrUnknownSubject))

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/locations", body)

	// Проверки
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPanic(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	incident := &models.Incident{
		ID:        uuid.New(),
		SubjectID: "tourist-1",
		Origin:    models.OriginManualPanic,
		State:     models.StateDispatching,
		CreatedAt: time.Now().UTC(),
	}

	// Ожидания
	m.location.EXPECT().
		ReportPanic(gomock.Any(), "tourist-1", models.LatLng{Latitude: 55.75, Longitude: 37.61}).
		Return(incident, nil)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/panic", PanicRequest{
		SubjectID: "tourist-1",
		Latitude:  55.75,
		Longitude: 37.61,
	})

	// Проверки
	require.Equal(t, http.StatusCreated, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, incident.ID, resp.ID)
	assert.Equal(t, "manual_panic", resp.Origin)
	assert.Equal(t, "dispatching", resp.State)
}

func TestPanic_InvalidLocation(t *testing.T) {
	// Подготовка: широта вне диапазона режется валидатором
	router, _ := setupTestRouter(t)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/panic", gin.H{
		"subject_id": "tourist-1",
		"latitude":   95.0,
		"longitude":  37.61,
	})

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetIncidentStatus(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	incidentID := uuid.New()
	status := &orchestrator.IncidentStatus{
		Incident: &models.Incident{
			ID:    incidentID,
			State: models.StateAwaitingAck,
		},
		Attempts: []*models.DispatchAttempt{
			{ID: uuid.New(), ResponderClass: models.ResponderPolice, Channel: "radio", Status: models.DispatchSent, AttemptNumber: 1},
		},
		Dispatch: []*models.ResponderStatus{
			{IncidentID: incidentID, ResponderClass: models.ResponderPolice},
		},
	}

	// Ожидания
	m.incident.EXPECT().GetStatus(gomock.Any(), incidentID).Return(status, nil)

	// Действие
	w := performRequest(router, http.MethodGet, "/api/v1/incidents/"+incidentID.String()+"/status", nil)

	// Проверки
	require.Equal(t, http.StatusOK, w.Code)
	var resp IncidentStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "awaiting_ack", resp.Incident.State)
	require.Len(t, resp.Attempts, 1)
	assert.Equal(t, "radio", resp.Attempts[0].Channel)
	require.Len(t, resp.Dispatch, 1)
	assert.Equal(t, "police", resp.Dispatch[0].ResponderClass)
}

func TestGetIncidentStatus_NotFound(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	incidentID := uuid.New()

	// Ожидания
	m.incident.EXPECT().GetStatus(gomock.Any(), incidentID).
		Return(nil, fmt.Errorf("%w: %s", models.ErrUnknownIncident, incidentID))

	// Действие
	w := performRequest(router, http.MethodGet, "/api/v1/incidents/"+incidentID.String()+"/status", nil)

	// Проверки
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetIncidentStatus_InvalidID(t *testing.T) {
	// Подготовка
	router, _ := setupTestRouter(t)

	// Действие
	w := performRequest(router, http.MethodGet, "/api/v1/incidents/not-a-uuid/status", nil)

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveIncident(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	incidentID := uuid.New()

	// Ожидания
	m.incident.EXPECT().ResolveIncident(gomock.Any(), incidentID, "operator-1").Return(nil)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/incidents/"+incidentID.String()+"/resolve", ResolveIncidentRequest{ResolvedBy: "operator-1"})

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResolveIncident_AlreadyResolved(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	incidentID := uuid.New()

	// Ожидания
	m.incident.EXPECT().ResolveIncident(gomock.Any(), incidentID, "operator-1").
		Return(fmt.Errorf("%w: %s", models.ErrAlreadyResolved, incidentID))

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/incidents/"+incidentID.String()+"/resolve", ResolveIncidentRequest{ResolvedBy: "operator-1"})

	// Проверки
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVerifyResponder(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	incidentID := uuid.New()
	signature := []byte("signature-bytes")
	rec := &models.VerificationRecord{
		IncidentID:  incidentID,
		ResponderID: "officer-1",
		VerifiedAt:  time.Now().UTC(),
		PriorHash:   "00",
		RecordHash:  "ff",
	}

	// Ожидания
	m.ledger.EXPECT().VerifyResponder(gomock.Any(), incidentID, "officer-1", signature).Return(rec, nil)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/incidents/"+incidentID.String()+"/verify", VerifyResponderRequest{
		ResponderID: "officer-1",
		Signature:   base64.StdEncoding.EncodeToString(signature),
	})

	// Проверки
	require.Equal(t, http.StatusCreated, w.Code)
	var resp VerificationRecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "officer-1", resp.ResponderID)
	assert.Equal(t, "ff", resp.RecordHash)
}

func TestVerifyResponder_InvalidSignature(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	incidentID := uuid.New()

	// Ожидания
	m.ledger.EXPECT().VerifyResponder(gomock.Any(), incidentID, "officer-1", gomock.Any()).
		Return(nil, fmt.Errorf("%w: responder officer-1", models.ErrInvalidSignature))

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/incidents/"+incidentID.String()+"/verify", VerifyResponderRequest{
		ResponderID: "officer-1",
		Signature:   base64.StdEncoding.EncodeToString([]byte("bad")),
	})

	// Проверки
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyResponder_MalformedSignature(t *testing.T) {
	// Подготовка: не-base64 подпись режется валидатором
	router, _ := setupTestRouter(t)
	incidentID := uuid.New()

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/incidents/"+incidentID.String()+"/verify", gin.H{
		"responder_id": "officer-1",
		"signature":    "not base64!!!",
	})

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetResponderChain(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	chain := []*models.VerificationRecord{
		{IncidentID: uuid.New(), ResponderID: "officer-1", VerifiedAt: time.Now().UTC()},
		{IncidentID: uuid.New(), ResponderID: "officer-1", VerifiedAt: time.Now().UTC()},
	}

	// Ожидания
	m.ledger.EXPECT().ResponderChain(gomock.Any(), "officer-1").Return(chain, true, nil)

	// Действие
	w := performRequest(router, http.MethodGet, "/api/v1/responders/officer-1/chain", nil)

	// Проверки
	require.Equal(t, http.StatusOK, w.Code)
	var resp ResponderChainResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Len(t, resp.Records, 2)
}

func TestUpdateResponderPosition(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	incidentID := uuid.New()
	loc := models.LatLng{Latitude: 55.75, Longitude: 37.61}
	eta := time.Now().UTC().Add(10 * time.Minute)
	status := &models.ResponderStatus{
		IncidentID:       incidentID,
		ResponderClass:   models.ResponderPolice,
		CurrentLocation:  &loc,
		EstimatedArrival: &eta,
	}

	// Ожидания
	m.tracker.EXPECT().UpdatePosition(gomock.Any(), incidentID, models.ResponderPolice, loc).Return(status, nil)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/incidents/"+incidentID.String()+"/dispatch/position", ResponderPositionRequest{
		ResponderClass: "police",
		Latitude:       55.75,
		Longitude:      37.61,
	})

	// Проверки
	require.Equal(t, http.StatusOK, w.Code)
	var resp ResponderStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "police", resp.ResponderClass)
	require.NotNil(t, resp.EstimatedArrival)
}

func TestConfirmResponderArrival_AlreadyArrived(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	incidentID := uuid.New()

	// Ожидания
	m.tracker.EXPECT().ConfirmArrival(gomock.Any(), incidentID, models.ResponderAmbulance, gomock.Any()).
		Return(nil, fmt.Errorf("%w: incident %s", models.ErrAlreadyArrived, incidentID))

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/incidents/"+incidentID.String()+"/dispatch/arrival", ResponderPositionRequest{
		ResponderClass: "ambulance",
		Latitude:       55.75,
		Longitude:      37.61,
	})

	// Проверки
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateResponderPosition_UnknownClass(t *testing.T) {
	// Подготовка
	router, _ := setupTestRouter(t)
	incidentID := uuid.New()

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/incidents/"+incidentID.String()+"/dispatch/position", gin.H{
		"responder_class": "firefighters",
		"latitude":        55.75,
		"longitude":       37.61,
	})

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransportResult(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	attemptID := uuid.New()

	// Ожидания
	m.incident.EXPECT().ReportTransportResult(gomock.Any(), attemptID, models.DispatchAcknowledged).Return(nil)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/transport/result", TransportResultRequest{
		AttemptID: attemptID,
		Status:    "acknowledged",
	})

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransportResult_InvalidStatus(t *testing.T) {
	// Подготовка
	router, _ := setupTestRouter(t)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/transport/result", gin.H{
		"attempt_id": uuid.New().String(),
		"status":     "lost",
	})

	// Проверки
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshZones(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)

	// Ожидания
	m.zone.EXPECT().RefreshZones(gomock.Any()).Return(7, nil)

	// Действие
	w := performRequest(router, http.MethodPost, "/api/v1/zones/refresh", nil)

	// Проверки
	require.Equal(t, http.StatusOK, w.Code)
	var resp ZoneRefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Zones)
}

func TestGetStats(t *testing.T) {
	// Подготовка
	router, m := setupTestRouter(t)
	stats := &service.Stats{
		IncidentsByState: map[string]int{"resolved": 3, "dispatching": 1},
		AnomaliesByKind:  map[string]int{"high_speed": 2},
	}

	// Ожидания
	m.incident.EXPECT().GetStats(gomock.Any()).Return(stats, nil)

	// Действие
	w := performRequest(router, http.MethodGet, "/api/v1/stats", nil)

	// Проверки
	require.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.IncidentsByState["resolved"])
	assert.Equal(t, 2, resp.AnomaliesByKind["high_speed"])
}

func TestHealthCheck(t *testing.T) {
	// Подготовка
	router, _ := setupTestRouter(t)

	// Действие
	w := performRequest(router, http.MethodGet, "/api/v1/system/health", nil)

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthCheck_PublicWithoutAPIKey(t *testing.T) {
	// Подготовка: роутер собран как в приложении, с проверкой API-ключа
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	handler := NewHandler(
		mocks.NewMockLocationService(ctrl),
		mocks.NewMockIncidentService(ctrl),
		mocks.NewMockLedgerService(ctrl),
		mocks.NewMockTrackerService(ctrl),
		mocks.NewMockZoneService(ctrl),
		nil, logger, &config.Config{},
	)
	cfg := &config.Config{APIKeys: []string{"test-key"}}
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterPublicRoutes(api)
	api.Use(APIKeyAuthMiddleware(cfg, logger))
	handler.RegisterRoutes(api)

	// Действие и проверки: health отвечает без ключа
	w := performRequest(router, http.MethodGet, "/api/v1/system/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Защищённые маршруты без ключа закрыты
	w = performRequest(router, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
