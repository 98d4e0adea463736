package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReplayControl interface {
	Pause()
	Resume()
	DrainAll(ctx context.Context)
}

type ConnectivityStatus interface {
	Online() bool
}

type SyncHandler struct {
	log     *zap.Logger
	engine  ReplayControl
	monitor ConnectivityStatus
}

func NewSyncHandler(log *zap.Logger, engine ReplayControl, monitor ConnectivityStatus) *SyncHandler {
	return &SyncHandler{
		log:     log,
		engine:  engine,
		monitor: monitor,
	}
}

// Pause halts drain activity without losing queued state.
func (h *SyncHandler) Pause(c *gin.Context) {
	h.engine.Pause()
	h.log.Info("Sync paused by operator")

	c.JSON(http.StatusOK, ResponseWithMessage{
		Status:  StatusSuccess,
		Message: "sync paused",
	})
}

// Resume lifts a pause.
func (h *SyncHandler) Resume(c *gin.Context) {
	h.engine.Resume()
	h.log.Info("Sync resumed by operator")

	c.JSON(http.StatusOK, ResponseWithMessage{
		Status:  StatusSuccess,
		Message: "sync resumed",
	})
}

// Drain triggers an immediate drain pass for every tenant with pending
// records.
func (h *SyncHandler) Drain(c *gin.Context) {
	go h.engine.DrainAll(context.WithoutCancel(c.Request.Context()))

	c.JSON(http.StatusAccepted, ResponseWithMessage{
		Status:  StatusSuccess,
		Message: "drain triggered",
	})
}

// Status reports the connectivity state.
func (h *SyncHandler) Status(c *gin.Context) {
	state := "OFFLINE"
	if h.monitor.Online() {
		state = "ONLINE"
	}

	c.JSON(http.StatusOK, ResponseWithData{
		Status: StatusSuccess,
		Data:   gin.H{"connectivity": state},
	})
}
