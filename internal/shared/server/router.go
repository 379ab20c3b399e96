package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"renovix-backend/internal/analysis"
	"renovix-backend/internal/chat"
	"renovix-backend/internal/sessions"
	"renovix-backend/internal/shared/config"
	"renovix-backend/internal/shared/metrics"
	"renovix-backend/internal/shared/server/middleware"
	"renovix-backend/internal/shared/server/respond"
	"renovix-backend/internal/uploads"
)

// RouterDeps carries the handlers the router mounts. Bootstrap builds
// them; tests can assemble a subset.
type RouterDeps struct {
	Config          config.Config
	SessionHandler  *sessions.Handler
	UploadHandler   *uploads.Handler
	AnalysisHandler *analysis.Handler
	ChatHandler     *chat.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(),
		middleware.RateLimit(rateLimits()),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())
	registerMeRoutes(api)

	if deps.SessionHandler != nil {
		deps.SessionHandler.RegisterRoutes(api)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterRoutes(api)
	}

	return r
}

// rateLimits throttles the endpoints that fan out to the model gateway
// or write objects. Reads stay unlimited.
func rateLimits() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"ANALYZE": {Rate: 0.2, Burst: 3},
			"CHAT":    {Rate: 1, Burst: 5},
			"UPLOAD":  {Rate: 0.5, Burst: 5},
		},
		GroupFor: func(c *gin.Context) string {
			switch {
			case c.Request.Method != http.MethodPost:
				return ""
			case c.FullPath() == "/api/v1/analyze":
				return "ANALYZE"
			case c.FullPath() == "/api/v1/chat/stream":
				return "CHAT"
			case c.FullPath() == "/api/v1/sessions/:id/upload":
				return "UPLOAD"
			default:
				return ""
			}
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
