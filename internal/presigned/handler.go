package presigned

import (
	"errors"
	"net/http"
	"time"

	"github.com/abduss/treedrive/internal/auth"
	"github.com/abduss/treedrive/internal/file"
	"github.com/abduss/treedrive/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/files/:fileID/link", h.GenerateDownloadURL)
}

func (h *Handler) GenerateDownloadURL(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		ttl, err = time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
	}

	link, err := h.service.DownloadURL(c.Request.Context(), userID, fileID, ttl)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTTL):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, file.ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		default:
			logger.From(c).Error("presign failed", zap.Stringer("file_id", fileID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create link"})
		}
		return
	}

	c.JSON(http.StatusOK, link)
}
