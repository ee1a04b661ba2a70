package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SubmitMessageRequest is one user turn
type SubmitMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// SubmitMessage godoc
// @Summary Submit message
// @Description Run one conversation turn. Provider and apply failures are reported in the result, not as HTTP errors.
// @Tags conversation
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body SubmitMessageRequest true "User message"
// @Success 200 {object} conversation.TurnResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id}/messages [post]
func (h *Handler) SubmitMessage(c *gin.Context) {
	var req SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}

	result, err := sess.Controller.Submit(c.Request.Context(), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMessages godoc
// @Summary List messages
// @Description The conversation log in order
// @Tags conversation
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {array} models.ConversationMessage
// @Security BearerAuth
// @Router /sessions/{id}/messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Controller.Messages())
}

// Approve godoc
// @Summary Approve changes
// @Description Apply the changes held for approval
// @Tags conversation
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} conversation.TurnResult
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id}/approve [post]
func (h *Handler) Approve(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	result, err := sess.Controller.Approve(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reject godoc
// @Summary Reject changes
// @Description Discard the changes held for approval
// @Tags conversation
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.ConversationMessage
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /sessions/{id}/reject [post]
func (h *Handler) Reject(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	msg, err := sess.Controller.Reject(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// ListProposals godoc
// @Summary List proposals
// @Description Audit trail of proposed change batches for the session
// @Tags conversation
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {array} models.Proposal
// @Security BearerAuth
// @Router /sessions/{id}/proposals [get]
func (h *Handler) ListProposals(c *gin.Context) {
	proposals, err := h.sessions.ListProposals(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if proposals == nil {
		c.JSON(http.StatusOK, []struct{}{})
		return
	}
	c.JSON(http.StatusOK, proposals)
}
