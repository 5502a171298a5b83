package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
)

// writeServiceError maps a verdictservice error to an HTTP response.
// Fatal pipeline error kinds (spec.md §7) are reported as 500; everything
// else that reaches this layer is treated as an unexpected failure.
func writeServiceError(c *gin.Context, err error) {
	var perr *pipelineerr.Error
	if errors.As(err, &perr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    perr.Kind,
			"message": perr.Error(),
		})
		return
	}

	slog.Error("unexpected service error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "internal server error"})
}
