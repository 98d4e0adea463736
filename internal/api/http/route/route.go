package route

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QueueHandler interface {
	Enqueue(c *gin.Context)
	ListPending(c *gin.Context)
	ListFailed(c *gin.Context)
	Requeue(c *gin.Context)
	Discard(c *gin.Context)
}

type SyncHandler interface {
	Pause(c *gin.Context)
	Resume(c *gin.Context)
	Drain(c *gin.Context)
	Status(c *gin.Context)
}

// SetupRouter builds the daemon's local API. It binds to loopback in the
// default config; there is no auth of its own.
func SetupRouter(log *zap.Logger, requestTimeout time.Duration, queueHdl QueueHandler, syncHdl SyncHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	router := gin.Default()

	router.Use(timeoutMiddleware(requestTimeout))

	router.HandleMethodNotAllowed = true

	api := router.Group("/api")

	queuePath := api.Group("/queue")
	queuePath.POST("", queueHdl.Enqueue)
	queuePath.GET("/:tenant/pending", queueHdl.ListPending)
	queuePath.GET("/:tenant/failed", queueHdl.ListFailed)
	queuePath.POST("/records/:id/requeue", queueHdl.Requeue)
	queuePath.DELETE("/records/:id", queueHdl.Discard)

	syncPath := api.Group("/sync")
	syncPath.POST("/pause", syncHdl.Pause)
	syncPath.POST("/resume", syncHdl.Resume)
	syncPath.POST("/drain", syncHdl.Drain)
	syncPath.GET("/status", syncHdl.Status)

	return router
}

func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()

			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
