package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"syncline/internal/gateway/handler"
	"syncline/internal/model"
	"syncline/pkg/jwt"
)

// JWTAuth validates the bearer token and pins the session to the tenant the
// token carries. When the route has a :tenant path parameter it must match
// the token; cross-tenant access is rejected outright.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string

		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.ResponseWithMessage{
				Status:  handler.StatusNotPermitted,
				Message: "missing access token",
			})

			return
		}

		tenantID, err := jwt.ValidateToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.ResponseWithMessage{
				Status:  handler.StatusNotPermitted,
				Message: "invalid or expired token",
			})

			return
		}

		if pathTenant := c.Param("tenant"); pathTenant != "" && pathTenant != tenantID {
			c.AbortWithStatusJSON(http.StatusForbidden, handler.ResponseWithMessage{
				Status:  handler.StatusNotPermitted,
				Message: "token tenant does not match requested tenant",
			})

			return
		}

		c.Set(model.TenantIDKey, tenantID)

		c.Next()
	}
}
