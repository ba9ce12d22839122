package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/media"
	"github.com/csgonades/nade-api/nade"
	"github.com/csgonades/nade-api/vidmeta"
)

// VideoLookup resolves video metadata for submissions.
type VideoLookup interface {
	Lookup(ctx context.Context, videoID string) (*vidmeta.Metadata, error)
}

// ImageStore persists uploaded lineup images.
type ImageStore interface {
	Save(ctx context.Context, data []byte, contentType string) (string, error)
}

// NadeHandler serves the public nade API and owner edits.
type NadeHandler struct {
	nades  *nade.Repository
	videos VideoLookup
	images ImageStore
	feed   *FeedHub
}

// NewNadeHandler wires the handler. videos and images may be nil, in which
// case submissions keep no video metadata and image uploads are rejected.
func NewNadeHandler(nades *nade.Repository, videos VideoLookup, images ImageStore, feed *FeedHub) *NadeHandler {
	return &NadeHandler{nades: nades, videos: videos, images: images, feed: feed}
}

// ── Read ──────────────────────────────────────────────────────────────────────

// List handles GET /nades. With a map it returns that map's listing,
// optionally narrowed by type; without one it returns the recent list.
func (h *NadeHandler) List(c *gin.Context) {
	mode := nade.GameMode(c.Query("gameMode"))
	ctx := c.Request.Context()

	if m := c.Query("map"); m != "" {
		nades, err := h.nades.GetByFilter(ctx, nade.Filter{
			Map:      m,
			Type:     nade.Type(c.Query("type")),
			GameMode: mode,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, nades)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		limit = n
	}
	nades, err := h.nades.GetAll(ctx, limit, mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nades)
}

// Get handles GET /nades/:id. Nades that are not public are only shown to
// their owner and moderators.
func (h *NadeHandler) Get(c *gin.Context) {
	n, err := h.nades.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondVisible(c, n)
}

// GetBySlug handles GET /nades/slug/:slug.
func (h *NadeHandler) GetBySlug(c *gin.Context) {
	n, err := h.nades.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondVisible(c, n)
}

func (h *NadeHandler) respondVisible(c *gin.Context, n *nade.Nade) {
	if n.Status != nade.StatusAccepted && !canManage(claimsFromCtx(c), n) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, n)
}

// ListByUser handles GET /users/:userId/nades. Owners and moderators see
// every nade the user has; everyone else only sees accepted ones.
func (h *NadeHandler) ListByUser(c *gin.Context) {
	userID := c.Param("userId")
	nades, err := h.nades.GetByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	claims := claimsFromCtx(c)
	if claims == nil || (claims.UserID != userID && !claims.IsModerator()) {
		public := nades[:0]
		for _, n := range nades {
			if n.Status == nade.StatusAccepted {
				public = append(public, n)
			}
		}
		nades = public
	}
	c.JSON(http.StatusOK, nades)
}

// ── Create ────────────────────────────────────────────────────────────────────

type createNadeRequest struct {
	Map         string `json:"map"      binding:"required"`
	Type        string `json:"type"     binding:"required"`
	GameMode    string `json:"gameMode"`
	Movement    string `json:"movement"`
	Technique   string `json:"technique"`
	Title       string `json:"title"    binding:"max=100"`
	Description string `json:"description" binding:"max=2000"`
	VideoID     string `json:"videoId"`
	// Image is a data URL or bare base64.
	Image string `json:"image"`
}

// Create handles POST /nades. New nades wait in the moderation queue.
func (h *NadeHandler) Create(c *gin.Context) {
	var req createNadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	in := nade.CreateInput{
		Map:         req.Map,
		Type:        nade.Type(req.Type),
		GameMode:    nade.GameMode(req.GameMode),
		Movement:    nade.Movement(req.Movement),
		Technique:   nade.Technique(req.Technique),
		Title:       req.Title,
		Description: req.Description,
		Owner:       ownerOf(claimsFromCtx(c)),
	}
	video, ok := h.resolveVideo(c, req.VideoID)
	if !ok {
		return
	}
	in.Video = video
	if req.Image != "" {
		url, ok := h.storeImage(c, req.Image)
		if !ok {
			return
		}
		in.ImageURL = url
	}

	n, err := h.nades.Save(ctx, in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.feed.Broadcast(EventNadeCreated, n)
	c.JSON(http.StatusCreated, n)
}

// resolveVideo looks up metadata for a submitted video. An unknown video is
// rejected; an unreachable video host only costs the metadata.
func (h *NadeHandler) resolveVideo(c *gin.Context, videoID string) (nade.Video, bool) {
	video := nade.Video{ID: videoID}
	if videoID == "" || h.videos == nil {
		return video, true
	}
	md, err := h.videos.Lookup(c.Request.Context(), videoID)
	switch {
	case err == nil:
		video.ThumbnailURL = md.ThumbnailURL
		video.DurationSeconds = md.DurationSeconds
	case errors.Is(err, vidmeta.ErrVideoNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "video not found"})
		return video, false
	default:
		slog.Warn("video metadata unavailable, storing video without it", "video", videoID, "error", err)
	}
	return video, true
}

func (h *NadeHandler) storeImage(c *gin.Context, raw string) (string, bool) {
	if h.images == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image uploads are disabled"})
		return "", false
	}
	data, ct, err := media.DecodeImage([]byte(raw), "")
	switch {
	case errors.Is(err, media.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image is too large"})
		return "", false
	case err != nil:
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "image must be an image"})
		return "", false
	}
	url, err := h.images.Save(c.Request.Context(), data, ct)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
		return "", false
	}
	return url, true
}

// ── Update ────────────────────────────────────────────────────────────────────

type updateNadeRequest struct {
	Map         *string `json:"map"`
	Type        *string `json:"type"`
	GameMode    *string `json:"gameMode"`
	Movement    *string `json:"movement"`
	Technique   *string `json:"technique"`
	Title       *string `json:"title"       binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	VideoID     *string `json:"videoId"`
	Image       *string `json:"image"`
	// Slug is moderator-only. Status changes go through moderation.
	Slug *string `json:"slug"`
}

// Update handles PATCH /nades/:id. Owners may edit content; the slug is
// reserved for moderators. An owner editing a declined nade sends it
// back to the moderation queue.
func (h *NadeHandler) Update(c *gin.Context) {
	var req updateNadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	claims := claimsFromCtx(c)

	existing, err := h.nades.GetByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !canManage(claims, existing) || (req.Slug != nil && !claims.IsModerator()) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	patch := nade.Patch{
		Map:         req.Map,
		Title:       req.Title,
		Description: req.Description,
		Slug:        req.Slug,
	}
	if req.Type != nil {
		patch.Type = ptrTo(nade.Type(*req.Type))
	}
	if req.GameMode != nil {
		patch.GameMode = ptrTo(nade.GameMode(*req.GameMode))
	}
	if req.Movement != nil {
		patch.Movement = ptrTo(nade.Movement(*req.Movement))
	}
	if req.Technique != nil {
		patch.Technique = ptrTo(nade.Technique(*req.Technique))
	}
	if req.VideoID != nil && *req.VideoID != existing.Video.ID {
		video, ok := h.resolveVideo(c, *req.VideoID)
		if !ok {
			return
		}
		patch.Video = &video
	}
	if req.Image != nil {
		url, ok := h.storeImage(c, *req.Image)
		if !ok {
			return
		}
		patch.ImageURL = &url
	}
	if !claims.IsModerator() && existing.Status == nade.StatusDeclined {
		patch.Status = ptrTo(nade.StatusPending)
	}

	n, err := h.nades.Update(ctx, existing.ID, patch, nade.UpdateOptions{SetNewUpdatedAt: true})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// ── Delete ────────────────────────────────────────────────────────────────────

// Delete handles DELETE /nades/:id.
func (h *NadeHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	existing, err := h.nades.GetByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !canManage(claimsFromCtx(c), existing) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if err := h.nades.Delete(ctx, existing.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Vote ──────────────────────────────────────────────────────────────────────

type voteRequest struct {
	NadeA  string `json:"nadeA"  binding:"required"`
	NadeB  string `json:"nadeB"  binding:"required"`
	Winner string `json:"winner" binding:"required"`
}

// Vote handles POST /nades/vote.
func (h *NadeHandler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.nades.Vote(c.Request.Context(), nade.VoteInput{
		NadeA:  req.NadeA,
		NadeB:  req.NadeB,
		Winner: req.Winner,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ── Profile ───────────────────────────────────────────────────────────────────

// SyncProfile handles POST /me/nades/profile. It copies the nickname and
// avatar from the caller's token onto every nade they own.
func (h *NadeHandler) SyncProfile(c *gin.Context) {
	claims := claimsFromCtx(c)
	count, err := h.nades.UpdateOwnerAcrossItems(c.Request.Context(), claims.UserID, ownerOf(claims))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

func ptrTo[T any](v T) *T { return &v }
