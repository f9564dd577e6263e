package file

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/abduss/treedrive/internal/auth"
	"github.com/abduss/treedrive/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRoutes mounts file operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/folders/:folderID/files", handler.uploadFiles)
	group.GET("/files/:fileID", handler.getFile)
	group.GET("/files/:fileID/download", handler.downloadFile)
	group.PUT("/files/:fileID/move", handler.moveFile)
	group.DELETE("/files/:fileID", handler.deleteFile)
}

type httpHandler struct {
	service *Service
}

type moveFileRequest struct {
	TargetFolderID string `json:"target_folder_id" binding:"required,uuid"`
}

func (h *httpHandler) uploadFiles(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	folderID, err := uuid.Parse(c.Param("folderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder id"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with files field is required"})
		return
	}

	stored, err := h.service.Upload(c.Request.Context(), userID, folderID, form.File["files"])
	if err != nil {
		writeError(c, err, "failed to upload files")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"files": stored})
}

func (h *httpHandler) getFile(c *gin.Context) {
	userID, fileID, ok := fileRequest(c)
	if !ok {
		return
	}

	meta, err := h.service.Get(c.Request.Context(), userID, fileID)
	if err != nil {
		writeError(c, err, "failed to load file")
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	userID, fileID, ok := fileRequest(c)
	if !ok {
		return
	}

	meta, reader, err := h.service.Download(c.Request.Context(), userID, fileID)
	if err != nil {
		writeError(c, err, "failed to download file")
		return
	}
	defer reader.Close()

	c.Header("Content-Type", meta.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.Name))
	c.Header("Content-Length", fmt.Sprintf("%d", meta.SizeBytes))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, reader); err != nil {
		logger.From(c).Warn("download interrupted", zap.Stringer("file_id", fileID), zap.Error(err))
	}
}

func (h *httpHandler) moveFile(c *gin.Context) {
	userID, fileID, ok := fileRequest(c)
	if !ok {
		return
	}

	var req moveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_folder_id must be a folder id"})
		return
	}

	moved, err := h.service.Move(c.Request.Context(), userID, fileID, uuid.MustParse(req.TargetFolderID))
	if err != nil {
		writeError(c, err, "failed to move file")
		return
	}
	c.JSON(http.StatusOK, moved)
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	userID, fileID, ok := fileRequest(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, fileID); err != nil {
		writeError(c, err, "failed to delete file")
		return
	}

	c.Status(http.StatusNoContent)
}

func fileRequest(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}
	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, fileID, true
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case errors.Is(err, ErrFolderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
	case errors.Is(err, ErrAlreadyInFolder):
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is already in target folder"})
	case errors.Is(err, ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
	case errors.Is(err, ErrNoFiles):
		c.JSON(http.StatusBadRequest, gin.H{"error": "files field is required"})
	default:
		logger.From(c).Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
