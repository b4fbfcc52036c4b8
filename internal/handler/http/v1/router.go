package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterPublicRoutes регистрирует маршруты, доступные без API-ключа.
// Вызывается до навешивания APIKeyAuthMiddleware на группу.
func (h *Handler) RegisterPublicRoutes(api *gin.RouterGroup) {
	api.GET("/system/health", h.healthCheck)
}

// RegisterRoutes регистрирует защищённые маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Приём телеметрии и ручных тревог
	api.POST("/locations", h.reportLocation)
	api.POST("/panic", h.panic)

	// Маршруты инцидентов
	incidents := api.Group("/incidents")
	{
		incidents.GET("", h.listIncidents)
		incidents.GET("/:id/status", h.getIncidentStatus)
		incidents.GET("/:id/events", h.streamIncidentStatus)
		incidents.POST("/:id/resolve", h.resolveIncident)
		incidents.POST("/:id/verify", h.verifyResponder)
		incidents.GET("/:id/dispatch", h.listResponderAssignments)
		incidents.POST("/:id/dispatch/position", h.updateResponderPosition)
		incidents.POST("/:id/dispatch/arrival", h.confirmResponderArrival)
	}

	// Цепочки верификации реагирующих
	api.GET("/responders/:id/chain", h.getResponderChain)

	// Колбэк транспортного шлюза
	api.POST("/transport/result", h.transportResult)

	// Админские маршруты
	api.POST("/zones/refresh", h.refreshZones)
	api.GET("/stats", h.getStats)
}
