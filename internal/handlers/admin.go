package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"photomarket/api/internal/models"
)

const (
	statsCacheKey = "admin:stats"
	statsCacheTTL = 30 * time.Second
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
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

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, toUserResponse(user))
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

type userStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active suspended"`
}

func (h HandlerSet) AdminSetUserStatus(c *gin.Context) {
	var req userStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.Param("userId")
	if err := h.users.UpdateStatus(c.Request.Context(), userID, models.UserStatus(req.Status)); err != nil {
		writeServiceError(c, err)
		return
	}

	h.log.Info().Str("user_id", userID).Str("status", req.Status).Msg("user status changed")
	c.JSON(http.StatusOK, gin.H{"userId": userID, "status": req.Status})
}

type statsResponse struct {
	TotalPhotos  int64   `json:"totalPhotos"`
	SoldPhotos   int64   `json:"soldPhotos"`
	TotalUsers   int64   `json:"totalUsers"`
	TotalRevenue float64 `json:"totalRevenue"`
}

func (h HandlerSet) AdminStats(c *gin.Context) {
	ctx := c.Request.Context()

	if cached, err := h.cache.Get(ctx, statsCacheKey).Bytes(); err == nil {
		var stats statsResponse
		if json.Unmarshal(cached, &stats) == nil {
			c.JSON(http.StatusOK, stats)
			return
		}
	} else if !errors.Is(err, redis.Nil) {
		h.log.Warn().Err(err).Msg("stats cache read failed")
	}

	photoStats, err := h.photos.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	userCount, err := h.users.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stats := statsResponse{
		TotalPhotos:  photoStats.TotalPhotos,
		SoldPhotos:   photoStats.SoldPhotos,
		TotalUsers:   userCount,
		TotalRevenue: photoStats.TotalRevenue,
	}

	if payload, err := json.Marshal(stats); err == nil {
		if err := h.cache.Set(ctx, statsCacheKey, payload, statsCacheTTL).Err(); err != nil {
			h.log.Warn().Err(err).Msg("stats cache write failed")
		}
	}

	c.JSON(http.StatusOK, stats)
}

type bulkDeleteRequest struct {
	PhotoIDs []string `json:"photoIds" binding:"required,min=1"`
}

// AdminBulkDeletePhotos releases each blob before dropping its record.
// Photos whose blob could not be released are kept and reported back so the
// operation can be retried for just those.
func (h HandlerSet) AdminBulkDeletePhotos(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted := make([]string, 0, len(req.PhotoIDs))
	failed := make([]string, 0)
	for _, id := range req.PhotoIDs {
		if err := h.photoService.AdminDelete(c.Request.Context(), id); err != nil {
			h.log.Error().Err(err).Str("photo_id", id).Msg("bulk delete: photo skipped")
			failed = append(failed, id)
			continue
		}
		deleted = append(deleted, id)
	}

	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"deleted": deleted, "failed": failed})
}
