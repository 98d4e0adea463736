package route

import (
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"syncline/internal/config"
	"syncline/internal/gateway/handler"
	"syncline/internal/gateway/middleware"
)

type HealthHandler interface {
	Ping(c *gin.Context)
	Health(c *gin.Context)
}

type MutationHandler interface {
	Apply(c *gin.Context)
}

type EventsHandler interface {
	Stream(c *gin.Context)
}

func SetupRouter(
	log *zap.Logger,
	cfg *config.GatewayConfig,
	healthHdl HealthHandler,
	mutationHdl MutationHandler,
	eventsHdl EventsHandler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	router := gin.Default()

	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS(cfg.HTTPServer.CORS))

	router.HandleMethodNotAllowed = true
	router.NoMethod(handler.NoMethod)
	router.NoRoute(handler.NoRoute)

	basePath := router.Group(cfg.HTTPServer.BasePath)

	basePath.GET("/ping", healthHdl.Ping)
	basePath.GET("/health", healthHdl.Health)

	jwtAuth := middleware.JWTAuth([]byte(cfg.HTTPServer.JWT.Secret))

	tenantPath := basePath.Group("/:tenant", jwtAuth)

	// The websocket stream is long-lived, so the request timeout applies to
	// the mutation surface only.
	mutations := tenantPath.Group("/mutations", middleware.RequestTimeout(cfg.HTTPServer.Timeout.Request))
	mutations.POST("/*endpoint", mutationHdl.Apply)
	mutations.PUT("/*endpoint", mutationHdl.Apply)
	mutations.DELETE("/*endpoint", mutationHdl.Apply)

	tenantPath.GET("/events/ws", eventsHdl.Stream)

	return router
}
