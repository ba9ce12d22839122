package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/csgonades/nade-api/api/handler"
	"github.com/csgonades/nade-api/api/middleware"
	"github.com/csgonades/nade-api/auth"
	"github.com/csgonades/nade-api/config"
	"github.com/csgonades/nade-api/engagement"
	"github.com/csgonades/nade-api/media"
	"github.com/csgonades/nade-api/nade"
	"github.com/csgonades/nade-api/vidmeta"
)

// corsMiddleware returns a gin-contrib/cors middleware configured with the
// site's allowed origins. Credentialed origins from ExternalURL + CORSOrigins
// are accepted with credentials. Unknown origins receive a wildcard
// Allow-Origin without credentials so public listings still work.
func corsMiddleware(cfg config.Config) gin.HandlerFunc {
	allowed := buildAllowedOrigins(cfg.ExternalURL)
	for _, o := range cfg.CORSOrigins {
		allowed[strings.ToLower(o)] = true
	}

	return cors.New(cors.Config{
		AllowOriginWithContextFunc: func(c *gin.Context, origin string) bool {
			if !allowed[strings.ToLower(origin)] {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Writer.Header().Del("Access-Control-Allow-Credentials")
			}
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Accept-Encoding", "Authorization", "User-Agent", "X-Requested-With", "X-Request-Id", "Cache-Control", "Pragma"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	})
}

// Deps are the services the router exposes. Videos and Images may be nil.
type Deps struct {
	Store     handler.Pinger
	Nades     *nade.Repository
	Favorites *engagement.Favorites
	Comments  *engagement.Comments
	Videos    *vidmeta.Client
	Images    *media.DiskStore
	Auth      *auth.Manager
	Feed      *handler.FeedHub
}

// NewRouter builds the API handler. The returned func stops the write
// limiter's cleanup goroutine.
func NewRouter(deps Deps, cfg config.Config) (http.Handler, func()) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics(), corsMiddleware(cfg))

	writeMW, stopLimiter := middleware.WriteRateLimiter(cfg)

	// Typed nil pointers must not end up inside the handler interfaces.
	var (
		videos  handler.VideoLookup
		breaker handler.BreakerState
		images  handler.ImageStore
	)
	if deps.Videos != nil {
		videos, breaker = deps.Videos, deps.Videos
	}
	if deps.Images != nil {
		images = deps.Images
		r.Static("/images", deps.Images.Dir())
	}

	nadeH := handler.NewNadeHandler(deps.Nades, videos, images, deps.Feed)
	modH := handler.NewModerationHandler(deps.Nades, deps.Feed)
	engH := handler.NewEngagementHandler(deps.Favorites, deps.Comments)
	systemH := handler.NewSystemHandler(deps.Store, deps.Nades, breaker, deps.Feed)

	requireAuth := middleware.Auth(deps.Auth)
	moderator := middleware.RequireRole(auth.RoleModerator)

	// --- Public (claims are attached when present) ---
	pub := r.Group("/")
	pub.Use(middleware.OptionalAuth(deps.Auth))
	{
		pub.GET("/nades", nadeH.List)
		pub.GET("/nades/:id", nadeH.Get)
		pub.GET("/nades/slug/:slug", nadeH.GetBySlug)
		pub.GET("/nades/:id/comments", engH.ListComments)
		pub.GET("/users/:userId/nades", nadeH.ListByUser)
	}

	// --- Authenticated writes ---
	priv := r.Group("/")
	priv.Use(requireAuth, writeMW)
	{
		priv.POST("/nades", nadeH.Create)
		priv.PATCH("/nades/:id", nadeH.Update)
		priv.DELETE("/nades/:id", nadeH.Delete)
		priv.POST("/nades/vote", nadeH.Vote)
		priv.POST("/me/nades/profile", nadeH.SyncProfile)

		priv.POST("/nades/:id/favorite", engH.AddFavorite)
		priv.DELETE("/nades/:id/favorite", engH.RemoveFavorite)
		priv.POST("/nades/:id/comments", engH.AddComment)
		priv.PATCH("/comments/:id", engH.UpdateComment)
		priv.DELETE("/comments/:id", engH.DeleteComment)
	}
	r.GET("/favorites", requireAuth, engH.ListFavorites)

	// --- Moderation ---
	mod := r.Group("/moderation")
	mod.Use(requireAuth, moderator)
	{
		mod.GET("/pending", modH.Pending)
		mod.GET("/declined", modH.Declined)
		mod.GET("/deleted", modH.Deleted)
		mod.PATCH("/nades/:id/status", modH.SetStatus)
		mod.PATCH("/nades/:id/owner", modH.SetOwner)
		mod.DELETE("/nades/:id", modH.Purge)
		mod.PUT("/users/:userId/owner", modH.SetUserOwner)

		// Browsers cannot set headers on websockets; the token may arrive
		// as a query parameter.
		mod.GET("/feed", handler.FeedHandler(deps.Feed))
	}

	r.GET("/cache/stats", requireAuth, moderator, systemH.CacheStats)

	// Health probes and metrics are unauthenticated.
	r.GET("/health", systemH.HealthLive)
	r.GET("/ready", systemH.HealthReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return r, stopLimiter
}

// buildAllowedOrigins returns a set of lower-cased origin strings that are
// allowed to make credentialed cross-origin requests. It derives the origins
// from the configured ExternalURL and also includes its http/https counterpart
// so that both schemes work during development.
func buildAllowedOrigins(externalURL string) map[string]bool {
	origins := make(map[string]bool)
	if externalURL == "" {
		return origins
	}
	parsed, err := url.Parse(externalURL)
	if err != nil {
		origins[strings.ToLower(externalURL)] = true
		return origins
	}
	// Origin = scheme://host (no trailing slash, no path).
	origin := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	origins[origin] = true
	// Also allow the opposite scheme so http and https both work.
	switch parsed.Scheme {
	case "https":
		origins["http://"+strings.ToLower(parsed.Host)] = true
	case "http":
		origins["https://"+strings.ToLower(parsed.Host)] = true
	}
	return origins
}
