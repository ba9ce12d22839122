package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/engagement"
)

// EngagementHandler serves favorites and comments.
type EngagementHandler struct {
	favorites *engagement.Favorites
	comments  *engagement.Comments
}

func NewEngagementHandler(favorites *engagement.Favorites, comments *engagement.Comments) *EngagementHandler {
	return &EngagementHandler{favorites: favorites, comments: comments}
}

// ── Favorites ─────────────────────────────────────────────────────────────────

// AddFavorite handles POST /nades/:id/favorite.
func (h *EngagementHandler) AddFavorite(c *gin.Context) {
	fav, err := h.favorites.Add(c.Request.Context(), claimsFromCtx(c).UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fav)
}

// RemoveFavorite handles DELETE /nades/:id/favorite.
func (h *EngagementHandler) RemoveFavorite(c *gin.Context) {
	if err := h.favorites.Remove(c.Request.Context(), claimsFromCtx(c).UserID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListFavorites handles GET /favorites for the calling user.
func (h *EngagementHandler) ListFavorites(c *gin.Context) {
	favs, err := h.favorites.ListByUser(c.Request.Context(), claimsFromCtx(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, favs)
}

// ── Comments ──────────────────────────────────────────────────────────────────

type commentRequest struct {
	Message string `json:"message" binding:"required"`
}

// ListComments handles GET /nades/:id/comments.
func (h *EngagementHandler) ListComments(c *gin.Context) {
	comments, err := h.comments.ListForNade(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// AddComment handles POST /nades/:id/comments.
func (h *EngagementHandler) AddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment, err := h.comments.Add(c.Request.Context(), engagement.CommentInput{
		NadeID:  c.Param("id"),
		Author:  ownerOf(claimsFromCtx(c)),
		Message: req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// UpdateComment handles PATCH /comments/:id.
func (h *EngagementHandler) UpdateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment, err := h.comments.Update(c.Request.Context(), c.Param("id"), req.Message, callerOf(claimsFromCtx(c)))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DeleteComment handles DELETE /comments/:id.
func (h *EngagementHandler) DeleteComment(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), c.Param("id"), callerOf(claimsFromCtx(c))); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
