package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// abortWithError writes the uniform error body and stops the handler chain
func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Status: statusError, Message: message})
}

// respondError maps err onto its HTTP status and logs server-side failures
func respondError(c *gin.Context, logger observability.Logger, action string, err error) {
	status := commonerrors.HTTPStatus(err)
	_ = c.Error(err)

	fields := map[string]interface{}{
		"error":      err.Error(),
		"path":       c.Request.URL.Path,
		"request_id": requestID(c),
	}
	if upstream := commonerrors.UpstreamStatus(err); upstream != 0 {
		fields["upstream_status"] = upstream
	}
	if status >= http.StatusInternalServerError {
		logger.Error(action+" failed", fields)
	} else {
		logger.Warn(action+" rejected", fields)
	}

	abortWithError(c, status, err.Error())
}
