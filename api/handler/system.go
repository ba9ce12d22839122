package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/nade"
)

// Pinger checks that the document store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerState reports the state of an outbound circuit breaker.
type BreakerState interface {
	State() string
}

type SystemHandler struct {
	db     Pinger
	nades  *nade.Repository
	videos BreakerState
	feed   *FeedHub
}

// NewSystemHandler wires the handler. videos may be nil when video lookups
// are disabled.
func NewSystemHandler(db Pinger, nades *nade.Repository, videos BreakerState, feed *FeedHub) *SystemHandler {
	return &SystemHandler{db: db, nades: nades, videos: videos, feed: feed}
}

// HealthLive handles GET /health and always returns 200.
// Used as a liveness probe by container orchestrators.
func (h *SystemHandler) HealthLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HealthReady handles GET /ready and checks store connectivity.
// Used as a readiness probe: returns 503 if the store is unreachable.
func (h *SystemHandler) HealthReady(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// CacheStats handles GET /cache/stats. Besides the hit counters it reports
// the video lookup breaker and how many moderators watch the feed.
func (h *SystemHandler) CacheStats(c *gin.Context) {
	stats := h.nades.Stats()
	videoState := "disabled"
	if h.videos != nil {
		videoState = h.videos.State()
	}
	c.JSON(http.StatusOK, gin.H{
		"items":        stats.Items,
		"lists":        stats.Lists,
		"videoLookups": videoState,
		"feedClients":  h.feed.Len(),
	})
}
