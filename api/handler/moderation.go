package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/nade"
)

// ModerationHandler serves the moderator queues and status decisions.
// Every route is behind RequireRole(moderator).
type ModerationHandler struct {
	nades *nade.Repository
	feed  *FeedHub
}

func NewModerationHandler(nades *nade.Repository, feed *FeedHub) *ModerationHandler {
	return &ModerationHandler{nades: nades, feed: feed}
}

// Pending handles GET /moderation/pending.
func (h *ModerationHandler) Pending(c *gin.Context) {
	h.list(c, h.nades.GetPending)
}

// Declined handles GET /moderation/declined.
func (h *ModerationHandler) Declined(c *gin.Context) {
	h.list(c, h.nades.GetDeclined)
}

// Deleted handles GET /moderation/deleted.
func (h *ModerationHandler) Deleted(c *gin.Context) {
	h.list(c, h.nades.GetDeleted)
}

func (h *ModerationHandler) list(c *gin.Context, get func(context.Context) ([]*nade.Nade, error)) {
	nades, err := get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nades)
}

type setStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	StatusInfo string `json:"statusInfo" binding:"max=500"`
	// Slug may be assigned in the same step as accepting.
	Slug *string `json:"slug"`
}

// SetStatus handles PATCH /moderation/nades/:id/status. Accepting a nade
// for the first time restamps createdAt so it enters the recent list at
// the top.
func (h *ModerationHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	existing, err := h.nades.GetByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	status := nade.Status(req.Status)
	patch := nade.Patch{
		Status:     &status,
		StatusInfo: &req.StatusInfo,
		Slug:       req.Slug,
	}
	opts := nade.UpdateOptions{
		SetNewUpdatedAt: true,
		SetNewCreatedAt: existing.Status == nade.StatusPending && status == nade.StatusAccepted,
	}
	n, err := h.nades.Update(ctx, existing.ID, patch, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	h.feed.Broadcast(EventNadeStatus, n)
	c.JSON(http.StatusOK, n)
}

type setOwnerRequest struct {
	UserID   string `json:"userId"   binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
	Avatar   string `json:"avatar"`
}

func (r setOwnerRequest) owner() nade.Owner {
	return nade.Owner{UserID: r.UserID, Nickname: r.Nickname, Avatar: r.Avatar}
}

// SetOwner handles PATCH /moderation/nades/:id/owner and reattributes a
// single nade.
func (h *ModerationHandler) SetOwner(c *gin.Context) {
	var req setOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	owner := req.owner()
	n, err := h.nades.Update(c.Request.Context(), c.Param("id"), nade.Patch{Owner: &owner}, nade.UpdateOptions{})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

type userOwnerRequest struct {
	Nickname string `json:"nickname" binding:"required"`
	Avatar   string `json:"avatar"`
}

// SetUserOwner handles PUT /moderation/users/:userId/owner. It rewrites the
// denormalized profile on every nade the user owns.
func (h *ModerationHandler) SetUserOwner(c *gin.Context) {
	var req userOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := c.Param("userId")
	count, err := h.nades.UpdateOwnerAcrossItems(c.Request.Context(), userID, nade.Owner{
		UserID:   userID,
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

// Purge handles DELETE /moderation/nades/:id and removes a nade for good,
// together with its favorites and comments.
func (h *ModerationHandler) Purge(c *gin.Context) {
	if err := h.nades.Purge(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
