package v1

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/shenikar/tourist_safety_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	locationService service.LocationService
	incidentService service.IncidentService
	ledgerService   service.LedgerService
	trackerService  service.TrackerService
	zoneService     service.ZoneService
	subscriber      StatusSubscriber
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(
	locationService service.LocationService,
	incidentService service.IncidentService,
	ledgerService service.LedgerService,
	trackerService service.TrackerService,
	zoneService service.ZoneService,
	subscriber StatusSubscriber,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		locationService: locationService,
		incidentService: incidentService,
		ledgerService:   ledgerService,
		trackerService:  trackerService,
		zoneService:     zoneService,
		subscriber:      subscriber,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// respondDomainError транслирует доменные ошибки в HTTP-статусы
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidLocation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid location"})
	case errors.Is(err, models.ErrUnknownSubject):
		c.JSON(http.StatusNotFound, gin.H{"error": "subject not found"})
	case errors.Is(err, models.ErrUnknownIncident):
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
	case errors.Is(err, models.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
	case errors.Is(err, models.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "incident already resolved"})
	case errors.Is(err, models.ErrAlreadyArrived):
		c.JSON(http.StatusConflict, gin.H{"error": "responder already arrived"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// @Summary Report a location ping
// @Description Accept a location ping from a tracked subject. Requires API key.
// @Tags Locations
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param ping body ReportLocationRequest true "Location ping"
// @Success 202 "Accepted"
// @Failure 400 {object} map[string]string "Invalid request body or coordinates"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Subject not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /locations [post]
func (h *Handler) reportLocation(c *gin.Context) {
	var input ReportLocationRequest
	log := h.logger.WithField("method", "reportLocation")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.locationService.ReportLocation(c.Request.Context(), DTOToLocationPing(input)); err != nil {
		log.WithError(err).Warn("Failed to report location")
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// @Summary Trigger a manual panic
// @Description Open (or append to) an incident for a subject pressing the panic button. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param panic body PanicRequest true "Panic trigger"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or coordinates"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Subject not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /panic [post]
func (h *Handler) panic(c *gin.Context) {
	var input PanicRequest
	log := h.logger.WithField("method", "panic")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.locationService.ReportPanic(c.Request.Context(), input.SubjectID, models.LatLng{
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to open panic incident")
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(incident))
}

// @Summary Get a list of incidents
// @Description Get a paginated list of all incidents. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(20)
// @Success 200 {array} IncidentResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident status
// @Description Get the current state of an incident with its dispatch attempts and responder tracking rows. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentStatusResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/status [get]
func (h *Handler) getIncidentStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getIncidentStatus").WithField("id", id)

	status, err := h.incidentService.GetStatus(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to get incident status from service")
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusToIncidentStatusResponse(status))
}

// @Summary Resolve an incident
// @Description Resolve an incident and archive its responder tracking rows. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param resolve body ResolveIncidentRequest true "Resolve request"
// @Success 200 "OK"
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Incident already resolved"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/resolve [post]
func (h *Handler) resolveIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "resolveIncident").WithField("id", id)

	var input ResolveIncidentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.incidentService.ResolveIncident(c.Request.Context(), id, input.ResolvedBy); err != nil {
		log.WithError(err).Warn("Failed to resolve incident in service")
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// @Summary Verify a responder for an incident
// @Description Validate a responder signature and append a record to the responder verification chain. Requires API key.
// @Tags Ledger
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param verify body VerifyResponderRequest true "Verification request"
// @Success 201 {object} VerificationRecordResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized or invalid signature"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/verify [post]
func (h *Handler) verifyResponder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "verifyResponder").WithField("id", id)

	var input VerifyResponderRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	signature, err := base64.StdEncoding.DecodeString(input.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature encoding"})
		return
	}

	rec, err := h.ledgerService.VerifyResponder(c.Request.Context(), id, input.ResponderID, signature)
	if err != nil {
		log.WithError(err).Warn("Failed to verify responder in service")
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToVerificationRecordResponse(rec))
}

// @Summary Get a responder verification chain
// @Description Get the full verification chain of a responder together with an integrity check. Requires API key.
// @Tags Ledger
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Responder ID"
// @Success 200 {object} ResponderChainResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /responders/{id}/chain [get]
func (h *Handler) getResponderChain(c *gin.Context) {
	responderID := c.Param("id")
	log := h.logger.WithField("method", "getResponderChain").WithField("responder_id", responderID)

	chain, valid, err := h.ledgerService.ResponderChain(c.Request.Context(), responderID)
	if err != nil {
		log.WithError(err).Error("Failed to get responder chain from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	records := make([]*VerificationRecordResponse, len(chain))
	for i, rec := range chain {
		records[i] = ModelToVerificationRecordResponse(rec)
	}
	c.JSON(http.StatusOK, ResponderChainResponse{
		ResponderID: responderID,
		Valid:       valid,
		Records:     records,
	})
}

// @Summary Update a responder position
// @Description Update the position of a dispatched responder and recompute its ETA. Requires API key.
// @Tags Tracking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param position body ResponderPositionRequest true "Responder position"
// @Success 200 {object} ResponderStatusResponse
// @Failure 400 {object} map[string]string "Invalid incident ID, request body or coordinates"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Responder already arrived or incident resolved"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/dispatch/position [post]
func (h *Handler) updateResponderPosition(c *gin.Context) {
	h.applyResponderUpdate(c, "updateResponderPosition", h.trackerService.UpdatePosition)
}

// @Summary Confirm a responder arrival
// @Description Confirm that a dispatched responder arrived at the incident location. Terminal for the assignment. Requires API key.
// @Tags Tracking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param position body ResponderPositionRequest true "Responder position"
// @Success 200 {object} ResponderStatusResponse
// @Failure 400 {object} map[string]string "Invalid incident ID, request body or coordinates"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Responder already arrived or incident resolved"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/dispatch/arrival [post]
func (h *Handler) confirmResponderArrival(c *gin.Context) {
	h.applyResponderUpdate(c, "confirmResponderArrival", h.trackerService.ConfirmArrival)
}

type responderUpdateFunc func(ctx context.Context, incidentID uuid.UUID, class models.ResponderClass, loc models.LatLng) (*models.ResponderStatus, error)

func (h *Handler) applyResponderUpdate(c *gin.Context, method string, apply responderUpdateFunc) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", method).WithField("id", id)

	var input ResponderPositionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := apply(c.Request.Context(), id, models.ResponderClass(input.ResponderClass), models.LatLng{
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to apply responder update in service")
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelToResponderStatusResponse(status))
}

// @Summary List responder assignments
// @Description List tracking rows of all responders dispatched for an incident. Requires API key.
// @Tags Tracking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {array} ResponderStatusResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/dispatch [get]
func (h *Handler) listResponderAssignments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "listResponderAssignments").WithField("id", id)

	statuses, err := h.trackerService.ListAssignments(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Error("Failed to list responder assignments from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelsToResponderStatusResponses(statuses))
}

// @Summary Report a transport delivery result
// @Description Callback endpoint for the transport gateway to report delivery, acknowledgement or failure of a dispatch attempt. Requires API key.
// @Tags Transport
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param result body TransportResultRequest true "Transport result"
// @Success 200 "OK"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /transport/result [post]
func (h *Handler) transportResult(c *gin.Context) {
	var input TransportResultRequest
	log := h.logger.WithField("method", "transportResult")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.incidentService.ReportTransportResult(c.Request.Context(), input.AttemptID, models.DispatchStatusKind(input.Status)); err != nil {
		log.WithError(err).Error("Failed to apply transport result in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusOK)
}

// @Summary Refresh the zone snapshot
// @Description Reload the zone catalogue from the database into the in-memory index. Requires API key.
// @Tags Admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} ZoneRefreshResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /zones/refresh [post]
func (h *Handler) refreshZones(c *gin.Context) {
	log := h.logger.WithField("method", "refreshZones")

	count, err := h.zoneService.RefreshZones(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to refresh zones in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ZoneRefreshResponse{Zones: count})
}

// @Summary Get system statistics
// @Description Get incident counts by state and anomaly counts by kind. Requires API key.
// @Tags Admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StatsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")

	stats, err := h.incidentService.GetStats(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to get stats from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, StatsResponse{
		IncidentsByState: stats.IncidentsByState,
		AnomaliesByKind:  stats.AnomaliesByKind,
	})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
