package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"photomarket/api/internal/service"
)

// Checkout hands the client the hosted payment page URL for a listing. The
// actual charge happens off-site; the client reports back via Purchase.
func (h HandlerSet) Checkout(c *gin.Context) {
	if h.cfg.Payment.CheckoutURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "checkout_unavailable"})
		return
	}

	photo, err := h.photos.GetByID(c.Request.Context(), c.Param("photoId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if photo.Sold {
		c.JSON(http.StatusConflict, gin.H{"error": service.ErrAlreadySold.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkoutUrl": service.CheckoutURL(h.cfg.Payment, photo)})
}

type purchaseRequest struct {
	PaymentID string  `json:"paymentId" binding:"required"`
	Method    string  `json:"paymentMethod"`
	Amount    float64 `json:"amount"`
}

func (h HandlerSet) Purchase(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	photo, err := h.photoService.Purchase(c.Request.Context(), c.Param("photoId"), user, service.PaymentRequest{
		PaymentID: req.PaymentID,
		Method:    req.Method,
		Amount:    req.Amount,
	})
	if err != nil {
		h.log.Warn().Err(err).
			Str("photo_id", c.Param("photoId")).
			Str("buyer_id", user.ID).
			Msg("purchase failed")
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "purchase completed",
		"photo":   toPhotoResponse(photo),
	})
}
