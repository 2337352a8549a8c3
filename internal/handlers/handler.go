package handlers

import (
	"poolconnect/internal/logger"
	"poolconnect/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	gatherer prometheus.Gatherer
}

// Option configures optional handler dependencies.
type Option func(*Handler)

// WithGatherer exposes the registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	h.registerAPIRoutes(router)

	// Directory stream over WebSocket on the same port.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		h.registerTimerRoutes(api)
		h.registerDeviceRoutes(api)
		api.GET("/directory", h.getDirectory)
		api.GET("/logs", h.getLogs)
	}
}

func (h *Handler) registerTimerRoutes(api *gin.RouterGroup) {
	flex := api.Group("/timers/flex")
	{
		flex.GET("", h.listTimers)
		flex.POST("", h.createTimer)
		flex.GET("/:id", h.getTimer)
		flex.PUT("/:id", h.updateTimer)
		flex.DELETE("/:id", h.deleteTimer)
		flex.POST("/:id/toggle", h.toggleTimer)
	}
	scenarios := api.Group("/timers/scenarios")
	{
		scenarios.GET("", h.listScenarios)
		scenarios.POST("/:key", h.createFromScenario)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	api.GET("/sensors", h.getSensors)
	api.GET("/relays", h.getRelays)
	api.POST("/relay", h.setRelay)

	dev := api.Group("/device")
	{
		dev.POST("/sensors", h.overrideSensors)
		dev.GET("/outputs", h.getOutputs)
		dev.POST("/buzzer", h.setBuzzerMode)
	}
}
