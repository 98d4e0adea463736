package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"syncline/internal/apperrors"
	"syncline/internal/model"
)

type QueueManager interface {
	Enqueue(ctx context.Context, req model.EnqueueRequest) (uuid.UUID, error)
	ListPending(ctx context.Context, tenantID string) ([]model.QueueRecord, error)
	ListFailed(ctx context.Context, tenantID string) ([]model.QueueRecord, error)
	Requeue(ctx context.Context, id uuid.UUID) error
	Remove(ctx context.Context, id uuid.UUID) error
}

type QueueHandler struct {
	log   *zap.Logger
	queue QueueManager
}

func NewQueueHandler(log *zap.Logger, queue QueueManager) *QueueHandler {
	return &QueueHandler{
		log:   log,
		queue: queue,
	}
}

// Enqueue durably persists a mutation and returns its id. Validation and
// durability failures surface synchronously so the UI never reports a false
// success.
func (h *QueueHandler) Enqueue(c *gin.Context) {
	ctx := c.Request.Context()

	var req model.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ResponseWithMessage{
			Status:  StatusErr,
			Message: err.Error(),
		})
		return
	}

	id, err := h.queue.Enqueue(ctx, req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrTenantIDMissing) ||
			errors.Is(err, apperrors.ErrEndpointMissing) ||
			errors.Is(err, apperrors.ErrInvalidMethod) {
			status = http.StatusBadRequest
		}

		c.JSON(status, ResponseWithMessage{
			Status:  StatusErr,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, ResponseWithData{
		Status: StatusSuccess,
		Data:   gin.H{"id": id.String()},
	})
}

// ListPending returns the tenant's pending records in replay order.
func (h *QueueHandler) ListPending(c *gin.Context) {
	h.list(c, h.queue.ListPending)
}

// ListFailed returns the tenant's terminally failed records awaiting manual
// resolution.
func (h *QueueHandler) ListFailed(c *gin.Context) {
	h.list(c, h.queue.ListFailed)
}

// Requeue moves a failed record back into the pending queue.
func (h *QueueHandler) Requeue(c *gin.Context) {
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	if err := h.queue.Requeue(c.Request.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrRecordNotFailed) {
			status = http.StatusConflict
		}

		c.JSON(status, ResponseWithMessage{
			Status:  StatusErr,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ResponseWithMessage{
		Status:  StatusSuccess,
		Message: "record requeued",
	})
}

// Discard removes a record, e.g. a pending or failed item the user gave up
// on. Idempotent.
func (h *QueueHandler) Discard(c *gin.Context) {
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	if err := h.queue.Remove(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, ResponseWithMessage{
			Status:  StatusErr,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ResponseWithMessage{
		Status:  StatusSuccess,
		Message: "record discarded",
	})
}

func (h *QueueHandler) list(c *gin.Context, fetch func(ctx context.Context, tenantID string) ([]model.QueueRecord, error)) {
	tenantID := c.Param("tenant")

	records, err := fetch(c.Request.Context(), tenantID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrTenantIDMissing) {
			status = http.StatusBadRequest
		}

		c.JSON(status, ResponseWithMessage{
			Status:  StatusErr,
			Message: err.Error(),
		})
		return
	}

	if records == nil {
		records = []model.QueueRecord{}
	}

	c.JSON(http.StatusOK, ResponseWithData{
		Status: StatusSuccess,
		Data:   records,
	})
}

func (h *QueueHandler) recordID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ResponseWithMessage{
			Status:  StatusErr,
			Message: "invalid record id",
		})

		return uuid.Nil, false
	}

	return id, true
}
