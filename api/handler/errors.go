package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/nade"
)

// respondError writes the HTTP response for a domain error. Validation and
// conflict messages are shown to the client; internal errors are not.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, nade.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, nade.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, nade.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, nade.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
