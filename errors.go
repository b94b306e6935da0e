package main

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/utils"
	"github.com/gin-gonic/gin"
)

// respondError maps the models error taxonomy onto HTTP statuses. Unknown
// errors become an opaque 500 unless DEBUG_ERRORS=true exposes the detail.
func respondError(c *gin.Context, moduleName, funcName string, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, utils.ErrorForbidden):
		c.JSON(http.StatusForbidden, gin.H{"detail": err.Error()})
	case errors.Is(err, utils.ErrorConflict),
		errors.Is(err, utils.ErrorInsufficientStock),
		errors.Is(err, utils.ErrorInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	default:
		config.LogError(config.GetLogger(), moduleName, funcName, "unhandled error", c.Request.URL.Path, err)
		if strings.EqualFold(os.Getenv("DEBUG_ERRORS"), "true") {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}

func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": utils.ProcessValidationErrors(err)})
}
