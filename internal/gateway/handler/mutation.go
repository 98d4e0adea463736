package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"syncline/internal/model"
)

type MutationService interface {
	Apply(ctx context.Context, tenantID, endpoint string, method model.Method, idempotencyKey string, payload json.RawMessage) (*model.MutationResponse, error)
}

type MutationHandler struct {
	log *zap.Logger
	svc MutationService
}

func NewMutationHandler(log *zap.Logger, svc MutationService) *MutationHandler {
	return &MutationHandler{
		log: log,
		svc: svc,
	}
}

// Apply handles POST/PUT/DELETE on /:tenant/mutations/*endpoint. The HTTP
// verb maps back to the queue's CREATE/UPDATE/DELETE method; the endpoint
// path segment is opaque. An Idempotency-Key header is mandatory.
func (h *MutationHandler) Apply(c *gin.Context) {
	ctx := c.Request.Context()

	tenantID, err := TenantFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ResponseWithMessage{
			Status:  StatusNotPermitted,
			Message: err.Error(),
		})
		return
	}

	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		c.JSON(http.StatusBadRequest, ResponseWithMessage{
			Status:  StatusErr,
			Message: "Idempotency-Key header is required",
		})
		return
	}

	method, ok := mutationMethod(c.Request.Method)
	if !ok {
		c.JSON(http.StatusMethodNotAllowed, ResponseWithMessage{
			Status:  StatusErr,
			Message: "unsupported mutation verb",
		})
		return
	}

	endpoint := strings.TrimPrefix(c.Param("endpoint"), "/")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, ResponseWithMessage{
			Status:  StatusErr,
			Message: "endpoint path is required",
		})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ResponseWithMessage{
			Status:  StatusErr,
			Message: err.Error(),
		})
		return
	}

	if len(payload) > 0 && !json.Valid(payload) {
		c.JSON(http.StatusBadRequest, ResponseWithMessage{
			Status:  StatusErr,
			Message: "payload must be valid JSON",
		})
		return
	}

	resp, err := h.svc.Apply(ctx, tenantID, endpoint, method, key, payload)
	if err != nil {
		h.log.Error("Failed to apply mutation",
			zap.String("tenant_id", tenantID),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)

		c.JSON(http.StatusInternalServerError, ResponseWithMessage{
			Status:  StatusErr,
			Message: "failed to apply mutation",
		})
		return
	}

	status := http.StatusCreated
	if !resp.Applied {
		status = http.StatusOK
	}

	c.JSON(status, resp)
}

func mutationMethod(verb string) (model.Method, bool) {
	switch verb {
	case http.MethodPost:
		return model.MethodCreate, true
	case http.MethodPut:
		return model.MethodUpdate, true
	case http.MethodDelete:
		return model.MethodDelete, true
	default:
		return "", false
	}
}
