package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/wirechat-room/internal/auth"
	"github.com/vovakirdan/wirechat-room/internal/config"
	"github.com/vovakirdan/wirechat-room/internal/core"
	"github.com/vovakirdan/wirechat-room/internal/metrics"
	"github.com/vovakirdan/wirechat-room/internal/store"
)

// Deps are the services the HTTP layer routes to.
type Deps struct {
	Auth    *auth.Service
	Store   store.Store
	Manager *core.Manager
	Hub     *Hub
}

// Server is the HTTP server plus the resources its routes own.
type Server struct {
	*http.Server
	limiter *rateLimiter
}

// NewServer builds an HTTP server with the REST, upload, metrics and WebSocket routes.
func NewServer(cfg config.Config, deps Deps, logger *zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	limiter := newRateLimiter(rate.Limit(cfg.AuthRatePerSecond), cfg.AuthRateBurst, 2*time.Minute)
	limiter.startGC(30 * time.Second)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static(UploadsPath, cfg.UploadDir)

	apiHandlers := NewAPIHandlers(deps.Auth, deps.Store, cfg.HistoryLimit, logger)
	userHandlers := NewUserHandlers(deps.Manager)
	uploadHandlers := NewUploadHandlers(deps.Store, deps.Manager, cfg.UploadDir, cfg.MaxUploadBytes, cfg.NormalizedExtensions(), logger)
	wsHandler := NewWSHandler(deps.Auth, deps.Manager, deps.Hub, logger)

	api := router.Group("/api")
	{
		public := api.Group("")
		public.Use(limiter.middleware())
		public.POST("/register", apiHandlers.Register)
		public.POST("/login", apiHandlers.Login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(deps.Auth, logger))
		protected.GET("/messages", apiHandlers.Messages)
		protected.GET("/users/online", userHandlers.Online)
		protected.POST("/upload", uploadHandlers.Upload)
	}

	router.GET("/ws", wsHandler.Handle)

	return &Server{
		Server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		limiter: limiter,
	}
}

// Stop releases resources owned by the routes. It does not stop the listener.
func (s *Server) Stop() {
	s.limiter.Stop()
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
