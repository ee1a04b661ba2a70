package gateway

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bizmatters/agent-builder/code-editor/internal/auth"
	"github.com/bizmatters/agent-builder/code-editor/internal/conversation"
	"github.com/bizmatters/agent-builder/code-editor/internal/filestore"
	"github.com/bizmatters/agent-builder/code-editor/internal/models"
	"github.com/bizmatters/agent-builder/code-editor/internal/orchestration"
	"github.com/bizmatters/agent-builder/code-editor/internal/pipeline"
	"github.com/bizmatters/agent-builder/code-editor/internal/provider"
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	sessions   *orchestration.Service
	jwtManager *auth.JWTManager
	tokenTTL   time.Duration
}

// NewHandler creates a new gateway handler
func NewHandler(sessions *orchestration.Service, jwtManager *auth.JWTManager, tokenTTL time.Duration) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Handler{
		sessions:   sessions,
		jwtManager: jwtManager,
		tokenTTL:   tokenTTL,
	}
}

// RegisterRoutes mounts the session API on api. Everything under
// /sessions/:id requires a token scoped to that session.
func RegisterRoutes(api *gin.RouterGroup, h *Handler, stream *SessionStream) {
	api.GET("/providers", h.ListProviders)
	api.POST("/sessions", h.CreateSession)

	session := api.Group("/sessions/:id")
	session.Use(auth.RequireAuth(h.jwtManager), auth.RequireSessionAccess("id"))

	session.GET("", h.GetSession)
	session.DELETE("", h.ResetSession)
	session.PUT("/settings", h.UpdateSettings)
	session.POST("/token", h.RefreshToken)

	session.GET("/files", h.ListFiles)
	session.POST("/files", h.UploadFiles)
	session.GET("/files/*path", h.GetFile)
	session.PUT("/files/*path", h.PutFile)
	session.GET("/analysis", h.GetAnalysis)

	session.GET("/messages", h.ListMessages)
	session.POST("/messages", h.SubmitMessage)
	session.POST("/approve", h.Approve)
	session.POST("/reject", h.Reject)
	session.GET("/proposals", h.ListProposals)

	session.POST("/preview", h.RunPreview)

	api.GET("/ws/sessions/:id", auth.RequireAuth(h.jwtManager), auth.RequireSessionAccess("id"), stream.StreamSession)
}

// ProviderResponse describes a selectable provider
type ProviderResponse struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	DefaultModel string `json:"default_model"`
}

// ListProviders godoc
// @Summary List providers
// @Description List the model providers a session can use
// @Tags providers
// @Produce json
// @Success 200 {array} ProviderResponse
// @Router /providers [get]
func (h *Handler) ListProviders(c *gin.Context) {
	profiles := h.sessions.Providers()
	out := make([]ProviderResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, ProviderResponse{ID: p.ID, DisplayName: p.DisplayName, DefaultModel: p.DefaultModel})
	}
	c.JSON(http.StatusOK, out)
}

// CreateSessionRequest represents a session creation request
type CreateSessionRequest struct {
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	APIKey   string            `json:"api_key"`
	Files    map[string]string `json:"files"`
}

// CreateSessionResponse carries the new session id and its token
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse describes a session; the API key is never returned
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	HasAPIKey bool      `json:"has_api_key"`
	FileCount int       `json:"file_count"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSession godoc
// @Summary Create session
// @Description Start an editing session with the uploaded project files
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest true "Session settings and files"
// @Success 201 {object} CreateSessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	sess, err := h.sessions.CreateSession(c.Request.Context(), orchestration.CreateSessionRequest{
		Provider: req.Provider,
		Model:    req.Model,
		APIKey:   req.APIKey,
		Files:    req.Files,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.jwtManager.GenerateToken(c.Request.Context(), sess.ID, []string{auth.RoleEditor}, h.tokenTTL)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to generate token","session_id":"%s","error":"%v"}`, sess.ID, err)
		_ = h.sessions.DeleteSession(sess.ID)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token", Code: models.ErrCodeInternalError})
		return
	}

	c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: sess.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokenTTL).UTC(),
	})
}

// GetSession godoc
// @Summary Get session
// @Description Get the conversation state and settings of a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id} [get]
func (h *Handler) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	settings := sess.Controller.Settings()
	c.JSON(http.StatusOK, SessionResponse{
		SessionID: sess.ID,
		State:     string(sess.Controller.State()),
		Provider:  settings.Provider,
		Model:     settings.Model,
		HasAPIKey: strings.TrimSpace(settings.APIKey) != "",
		FileCount: sess.Store.Len(),
		Messages:  len(sess.Controller.Messages()),
		CreatedAt: sess.CreatedAt,
	})
}

// ResetSession godoc
// @Summary Reset session
// @Description Discard the project files and the conversation
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id} [delete]
func (h *Handler) ResetSession(c *gin.Context) {
	if err := h.sessions.ResetSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateSettingsRequest selects the provider for later turns. An empty
// api_key keeps the current key when the provider is unchanged.
type UpdateSettingsRequest struct {
	Provider string `json:"provider" binding:"required"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
}

// UpdateSettings godoc
// @Summary Update settings
// @Description Change provider, model or API key
// @Tags sessions
// @Accept json
// @Param id path string true "Session ID"
// @Param request body UpdateSettingsRequest true "Provider settings"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id}/settings [put]
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	err := h.sessions.UpdateSettings(c.Param("id"), conversation.Settings{
		Provider: req.Provider,
		Model:    req.Model,
		APIKey:   req.APIKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TokenResponse carries a refreshed token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshToken godoc
// @Summary Refresh token
// @Description Issue a new token for the session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} TokenResponse
// @Security BearerAuth
// @Router /sessions/{id}/token [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	token, err := h.jwtManager.RefreshToken(c.Request.Context(), auth.ExtractToken(c.Request), h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid or expired token", Code: models.ErrCodeUnauthorized})
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: time.Now().Add(h.tokenTTL).UTC()})
}

// GetAnalysis godoc
// @Summary Analyze project
// @Description Framework, dependencies, shallow issues and scores for the project
// @Tags files
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.AnalysisSnapshot
// @Security BearerAuth
// @Router /sessions/{id}/analysis [get]
func (h *Handler) GetAnalysis(c *gin.Context) {
	snap, err := h.sessions.Analyze(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// RunPreview godoc
// @Summary Run preview
// @Description Build a preview with the simulated pipeline or the sandbox runtime
// @Tags preview
// @Produce json
// @Param id path string true "Session ID"
// @Param mode query string false "simulated or runtime"
// @Success 200 {object} pipeline.PreviewResult
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id}/preview [post]
func (h *Handler) RunPreview(c *gin.Context) {
	result, err := h.sessions.RunPreview(c.Request.Context(), c.Param("id"), c.Query("mode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// session resolves the :id session or writes the error response
func (h *Handler) session(c *gin.Context) (*orchestration.Session, bool) {
	sess, err := h.sessions.GetSession(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return sess, true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: message, Code: models.ErrCodeInvalidRequest})
}

// respondError maps service errors to status codes
func respondError(c *gin.Context, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, orchestration.ErrSessionNotFound):
		status, code = http.StatusNotFound, models.ErrCodeNotFound
	case errors.Is(err, conversation.ErrBusy):
		status, code = http.StatusConflict, models.ErrCodeBusy
	case errors.Is(err, conversation.ErrNoPendingChanges):
		status, code = http.StatusConflict, models.ErrCodeNoPendingChanges
	case errors.Is(err, provider.ErrUnknownProvider):
		status, code = http.StatusBadRequest, models.ErrCodeUnknownProvider
	case errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, filestore.ErrEmptyPath),
		errors.Is(err, pipeline.ErrUnknownMode):
		status, code = http.StatusBadRequest, models.ErrCodeInvalidRequest
	default:
		log.Printf(`{"level":"error","message":"Request failed","path":"%s","error":"%v"}`, c.Request.URL.Path, err)
		c.Error(err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error", Code: models.ErrCodeInternalError})
		return
	}

	c.JSON(status, models.ErrorResponse{Error: err.Error(), Code: code})
}
