package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/irfndi/tanya-ai-go/internal/api/handlers"
	"github.com/irfndi/tanya-ai-go/internal/logging"
	"github.com/irfndi/tanya-ai-go/internal/middleware"
)

// Handlers groups everything SetupRoutes mounts. Nil handlers leave their
// routes unregistered.
type Handlers struct {
	Health   *handlers.HealthHandler
	PPG      *handlers.PPGHandler
	WhatsApp *handlers.WhatsAppHandler
	Voice    *handlers.VoiceHandler
	Tools    *handlers.ToolsHandler
	Cleanup  *handlers.CleanupHandler
}

// NewRouter builds the engine with the shared middleware stack.
func NewRouter(serviceName string, allowedOrigins []string, logger *logging.StandardLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(allowedOrigins)))
	router.Use(middleware.Tracing(serviceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = allowedOrigins
	return cfg
}

func SetupRoutes(router *gin.Engine, h Handlers, admin *middleware.AdminMiddleware) {
	if h.Health != nil {
		router.GET("/health", h.Health.Health)
		router.GET("/health/details", h.Health.Details)
	}

	if h.PPG != nil {
		router.POST("/analyze_ppg", h.PPG.Analyze)
	}

	// Twilio webhooks
	if h.WhatsApp != nil {
		router.POST("/whatsapp", h.WhatsApp.Webhook)
		router.GET("/injury-stats", h.WhatsApp.InjuryStats)
	}
	if h.Voice != nil {
		router.POST("/incoming", h.Voice.IncomingCall)
		router.GET("/getToken", h.Voice.GetToken)
	}

	v1 := router.Group("/api/v1")
	v1.Use(admin.RequireAdminAuth())
	{
		if h.Tools != nil {
			tools := v1.Group("/tools")
			tools.GET("", h.Tools.List)
			tools.POST("/:name", h.Tools.Invoke)
		}
		if h.Cleanup != nil {
			v1.POST("/admin/cleanup", h.Cleanup.TriggerCleanup)
		}
	}
}
