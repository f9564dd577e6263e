package folder

import (
	"errors"
	"net/http"

	"github.com/abduss/treedrive/internal/auth"
	"github.com/abduss/treedrive/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRoutes mounts folder operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.GET("/folders", handler.getRoot)
	group.POST("/folders", handler.createFolder)
	group.GET("/folders/:folderID", handler.getFolder)
	group.GET("/folders/:folderID/tree", handler.getTree)
	group.PUT("/folders/:folderID/move", handler.moveFolder)
	group.DELETE("/folders/:folderID", handler.deleteFolder)
}

type httpHandler struct {
	service *Service
}

type createFolderRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID string `json:"parent_id"`
}

type moveFolderRequest struct {
	TargetFolderID string `json:"target_folder_id" binding:"required"`
}

func (h *httpHandler) getRoot(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listing, err := h.service.GetRoot(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *httpHandler) createFolder(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": ReasonInvalidName})
		return
	}

	var parentID uuid.UUID
	if req.ParentID == "" {
		root, err := h.service.EnsureRoot(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		parentID = root.ID
	} else {
		id, err := uuid.Parse(req.ParentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent id"})
			return
		}
		parentID = id
	}

	created, err := h.service.CreateFolder(c.Request.Context(), userID, req.Name, parentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) getFolder(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	folderID, ok := folderParam(c)
	if !ok {
		return
	}

	listing, err := h.service.GetFolder(c.Request.Context(), userID, folderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *httpHandler) getTree(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	folderID, ok := folderParam(c)
	if !ok {
		return
	}

	nodes, err := h.service.Subtree(c.Request.Context(), userID, folderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": nodes})
}

func (h *httpHandler) moveFolder(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	folderID, ok := folderParam(c)
	if !ok {
		return
	}

	var req moveFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_folder_id is required"})
		return
	}
	targetID, err := uuid.Parse(req.TargetFolderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target folder id"})
		return
	}

	moved, err := h.service.Move(c.Request.Context(), userID, folderID, targetID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, moved)
}

func (h *httpHandler) deleteFolder(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	folderID, ok := folderParam(c)
	if !ok {
		return
	}

	result, err := h.service.Delete(c.Request.Context(), userID, folderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func folderParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("folderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder id"})
		return uuid.Nil, false
	}
	return id, true
}

// StatusFor maps a folder error to its HTTP status.
func StatusFor(err error) int {
	rej, ok := AsRejection(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch rej.Reason {
	case ReasonNotFound, ReasonTargetNotFound, ReasonParentNotFound:
		return http.StatusNotFound
	case ReasonNameTaken:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeError(c *gin.Context, err error) {
	if rej, ok := AsRejection(err); ok {
		// validation detail is useful to the caller; other rejections use the fixed message
		msg := rej.Message
		if errors.Is(err, ErrInvalidName) {
			msg = err.Error()
		}
		c.JSON(StatusFor(err), gin.H{"error": msg, "reason": rej.Reason})
		return
	}

	logger.From(c).Error("folder request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
