package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"syncline/internal/apperrors"
	"syncline/internal/model"
)

const (
	StatusErr          = "error"
	StatusSuccess      = "success"
	StatusNotAvailable = "not available"
	StatusNotPermitted = "not permitted"
	StatusOK           = "ok"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// ResponseWithData is the generic success envelope carrying a payload.
type ResponseWithData struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// ResponseWithMessage carries only a human-readable message.
type ResponseWithMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TenantFromContext reads the tenant id the auth middleware stored.
func TenantFromContext(c *gin.Context) (string, error) {
	value, exists := c.Get(model.TenantIDKey)
	if !exists {
		return "", apperrors.ErrContextValueDoesNotExist
	}

	tenantID, ok := value.(string)
	if !ok || tenantID == "" {
		return "", apperrors.ErrContextValueInvalidType
	}

	return tenantID, nil
}

func NoMethod(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, ResponseWithMessage{
		Status:  StatusNotAvailable,
		Message: "method not allowed on this endpoint",
	})
}

func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, ResponseWithMessage{
		Status:  StatusNotAvailable,
		Message: "page not found",
	})
}
