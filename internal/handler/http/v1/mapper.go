package v1

import (
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/shenikar/tourist_safety_system/internal/orchestrator"
)

// DTOToLocationPing преобразует DTO пинга в доменную модель
func DTOToLocationPing(dto ReportLocationRequest) models.LocationPing {
	return models.LocationPing{
		SubjectID:      dto.SubjectID,
		Latitude:       dto.Latitude,
		Longitude:      dto.Longitude,
		AccuracyRadius: dto.AccuracyRadius,
		CapturedAt:     dto.CapturedAt,
	}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	classes := make([]string, len(model.RequiredClasses))
	for i, c := range model.RequiredClasses {
		classes[i] = string(c)
	}
	return &IncidentResponse{
		ID:              model.ID,
		SubjectID:       model.SubjectID,
		Origin:          string(model.Origin),
		State:           string(model.State),
		RequiredClasses: classes,
		CreatedAt:       model.CreatedAt,
		ResolvedAt:      model.ResolvedAt,
		ResolvedBy:      model.ResolvedBy,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

// ModelToDispatchAttemptResponse преобразует попытку доставки в DTO
func ModelToDispatchAttemptResponse(model *models.DispatchAttempt) *DispatchAttemptResponse {
	return &DispatchAttemptResponse{
		ID:              model.ID,
		ResponderClass:  string(model.ResponderClass),
		Channel:         model.Channel,
		Status:          string(model.Status),
		AttemptNumber:   model.AttemptNumber,
		LastAttemptedAt: model.LastAttemptedAt,
	}
}

// StatusToIncidentStatusResponse преобразует снимок статуса инцидента в DTO
func StatusToIncidentStatusResponse(status *orchestrator.IncidentStatus) *IncidentStatusResponse {
	attempts := make([]*DispatchAttemptResponse, len(status.Attempts))
	for i, a := range status.Attempts {
		attempts[i] = ModelToDispatchAttemptResponse(a)
	}
	return &IncidentStatusResponse{
		Incident: ModelToIncidentResponse(status.Incident),
		Attempts: attempts,
		Dispatch: ModelsToResponderStatusResponses(status.Dispatch),
	}
}

// ModelToVerificationRecordResponse преобразует запись верификации в DTO
func ModelToVerificationRecordResponse(model *models.VerificationRecord) *VerificationRecordResponse {
	return &VerificationRecordResponse{
		IncidentID:  model.IncidentID,
		ResponderID: model.ResponderID,
		VerifiedAt:  model.VerifiedAt,
		PriorHash:   model.PriorHash,
		RecordHash:  model.RecordHash,
	}
}

// ModelToResponderStatusResponse преобразует строку трекинга в DTO
func ModelToResponderStatusResponse(model *models.ResponderStatus) *ResponderStatusResponse {
	resp := &ResponderStatusResponse{
		IncidentID:       model.IncidentID,
		ResponderClass:   string(model.ResponderClass),
		EstimatedArrival: model.EstimatedArrival,
		ArrivedAt:        model.ArrivedAt,
		Archived:         model.Archived,
	}
	if model.CurrentLocation != nil {
		lat := model.CurrentLocation.Latitude
		lon := model.CurrentLocation.Longitude
		resp.Latitude = &lat
		resp.Longitude = &lon
	}
	return resp
}

// ModelsToResponderStatusResponses преобразует слайс строк трекинга в слайс DTO
func ModelsToResponderStatusResponses(models []*models.ResponderStatus) []*ResponderStatusResponse {
	responses := make([]*ResponderStatusResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToResponderStatusResponse(model)
	}
	return responses
}
