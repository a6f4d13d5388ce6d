package api

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

// CustomRecoveryMiddleware turns a panic into a 500 with the uniform error
// body. Panic details are only returned outside production.
func CustomRecoveryMiddleware(logger observability.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered", map[string]interface{}{
					"error":      fmt.Sprintf("%v", err),
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
					"request_id": requestID(c),
					"stack":      string(debug.Stack()),
				})

				message := "An internal server error occurred"
				if !production {
					message = fmt.Sprintf("Internal server error: %v", err)
				}
				abortWithError(c, http.StatusInternalServerError, message)
			}
		}()
		c.Next()
	}
}
