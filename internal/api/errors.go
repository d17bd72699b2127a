package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"canteen/internal/lifecycle"
)

// writeError maps the engine's error taxonomy onto HTTP statuses. Guard
// violations carry their message through; anything unclassified is logged
// and reported as a generic internal error.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrValidation), errors.Is(err, lifecycle.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, lifecycle.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	default:
		log.Printf("api: internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
