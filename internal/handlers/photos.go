package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"photomarket/api/internal/models"
	"photomarket/api/internal/service"
)

func (h HandlerSet) UploadPhoto(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo_required"})
		return
	}
	defer file.Close()

	price := 0.0
	if p := c.PostForm("price"); p != "" {
		parsed, err := strconv.ParseFloat(p, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_price"})
			return
		}
		price = parsed
	}

	var tags []string
	if raw := c.PostForm("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	photo, err := h.photoService.Upload(c.Request.Context(), service.UploadInput{
		Seller:      user,
		File:        file,
		Header:      header,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    models.Category(c.PostForm("category")),
		Tags:        tags,
		Price:       price,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", user.ID).Msg("upload rejected")
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"photo": toPhotoResponse(photo)})
}

func (h HandlerSet) BrowsePhotos(c *gin.Context) {
	limit := 50
	offset := 0
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	photos, err := h.listingService.Browse(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toPhotoResponses(photos)})
}

func (h HandlerSet) FeaturedPhotos(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}

	photos, err := h.listingService.Featured(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toPhotoResponses(photos)})
}

func (h HandlerSet) PhotosByCategory(c *gin.Context) {
	includeSold := c.Query("includeSold") == "true"

	photos, err := h.listingService.ByCategory(c.Request.Context(), models.Category(c.Param("category")), includeSold)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toPhotoResponses(photos)})
}

func (h HandlerSet) SearchPhotos(c *gin.Context) {
	includeSold := c.Query("includeSold") == "true"

	photos, err := h.listingService.Search(c.Request.Context(), c.Query("q"), includeSold)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toPhotoResponses(photos)})
}

func (h HandlerSet) GetPhoto(c *gin.Context) {
	photoID := c.Param("photoId")

	photo, err := h.photos.GetByID(c.Request.Context(), photoID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	// A failed view bump never fails the read.
	if err := h.photoService.RecordView(c.Request.Context(), photoID); err != nil {
		h.log.Debug().Err(err).Str("photo_id", photoID).Msg("view bump failed")
	}

	c.JSON(http.StatusOK, gin.H{"photo": toPhotoResponse(photo)})
}

func (h HandlerSet) MyPhotos(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	photos, err := h.listingService.BySeller(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toPhotoResponses(photos)})
}

func (h HandlerSet) PurchasedPhotos(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	photos, err := h.listingService.Purchased(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toPhotoResponses(photos)})
}

type updatePriceRequest struct {
	Price float64 `json:"price"`
}

func (h HandlerSet) UpdatePrice(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	photo, err := h.photoService.UpdatePrice(c.Request.Context(), c.Param("photoId"), user.ID, req.Price)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"photo": toPhotoResponse(photo)})
}

func (h HandlerSet) DeletePhoto(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.photoService.Delete(c.Request.Context(), c.Param("photoId"), user.ID); err != nil {
		h.log.Warn().Err(err).Str("photo_id", c.Param("photoId")).Msg("delete failed")
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "photo deleted"})
}

func (h HandlerSet) ToggleLike(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	liked, count, err := h.photoService.ToggleLike(c.Request.Context(), c.Param("photoId"), user.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked, "likesCount": count})
}

type reportRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h HandlerSet) ReportPhoto(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, active, err := h.photoService.Report(c.Request.Context(), c.Param("photoId"), user.ID, req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reportCount": count, "isActive": active})
}

func (h HandlerSet) DownloadPhoto(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	url, err := h.photoService.DownloadURL(c.Request.Context(), c.Param("photoId"), user)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
