package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// FileInfo lists a project file without its content
type FileInfo struct {
	Path           string    `json:"path"`
	Hash           string    `json:"hash"`
	Size           int       `json:"size"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// ListFiles godoc
// @Summary List files
// @Description List project files in path order
// @Tags files
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {array} FileInfo
// @Security BearerAuth
// @Router /sessions/{id}/files [get]
func (h *Handler) ListFiles(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	keys := sess.Store.Keys()
	out := make([]FileInfo, 0, len(keys))
	for _, p := range keys {
		rec, ok := sess.Store.Get(p)
		if !ok {
			continue
		}
		out = append(out, FileInfo{Path: rec.Path, Hash: rec.Hash, Size: len(rec.Content), LastModifiedAt: rec.LastModifiedAt})
	}
	c.JSON(http.StatusOK, out)
}

// GetFile godoc
// @Summary Read file
// @Description Read one project file. The ETag is the content hash.
// @Tags files
// @Produce json
// @Param id path string true "Session ID"
// @Param path path string true "File path"
// @Success 200 {object} models.FileRecord
// @Success 304
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id}/files/{path} [get]
func (h *Handler) GetFile(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	p := filePath(c)
	rec, ok := sess.Store.Get(p)
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "File not found: " + p, Code: models.ErrCodeNotFound})
		return
	}

	etag := `"` + rec.Hash + `"`
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("ETag", etag)
	c.JSON(http.StatusOK, rec)
}

// PutFileRequest carries editor content
type PutFileRequest struct {
	Content *string `json:"content" binding:"required"`
}

// PutFile godoc
// @Summary Write file
// @Description Store an editor change to one file
// @Tags files
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param path path string true "File path"
// @Param request body PutFileRequest true "File content"
// @Success 200 {object} models.FileRecord
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id}/files/{path} [put]
func (h *Handler) PutFile(c *gin.Context) {
	var req PutFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	rec, err := h.sessions.WriteFile(c.Request.Context(), c.Param("id"), filePath(c), *req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("ETag", `"`+rec.Hash+`"`)
	c.JSON(http.StatusOK, rec)
}

// UploadFilesRequest replaces the whole project
type UploadFilesRequest struct {
	Files map[string]string `json:"files" binding:"required"`
}

// UploadFiles godoc
// @Summary Upload project
// @Description Replace every project file
// @Tags files
// @Accept json
// @Param id path string true "Session ID"
// @Param request body UploadFilesRequest true "Files by path"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id}/files [post]
func (h *Handler) UploadFiles(c *gin.Context) {
	var req UploadFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	if err := h.sessions.UploadFiles(c.Request.Context(), c.Param("id"), req.Files); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func filePath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}
