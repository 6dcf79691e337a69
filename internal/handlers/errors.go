package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"photomarket/api/internal/repository"
	"photomarket/api/internal/service"
)

// writeServiceError maps lifecycle failures onto HTTP statuses. Anything
// unrecognized is a 500 and gets logged by the caller.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPhotoNotFound), errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadySold):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSelfPurchase),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidListing),
		errors.Is(err, service.ErrInvalidUpload),
		errors.Is(err, service.ErrPaymentRejected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, service.ErrNotPurchased):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStorageRelease):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
