package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/auth"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/auth/middleware"
	authservice "github.com/Mr-Infect/SSI-management-systemv2/internal/auth/service"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/conf"
	fileservice "github.com/Mr-Infect/SSI-management-systemv2/internal/file/service"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/logger"
)

// HTTPServer HTTP server wrapper
type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
	log    *logger.Logger
}

// NewHTTPServer creates the HTTP server and registers all routes
func NewHTTPServer(
	cfg *conf.ServerConfig,
	log *logger.Logger,
	jwtManager *auth.JWTManager,
	redisClient *redis.Client,
	authSvc *authservice.AuthService,
	fileSvc *fileservice.FileService,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(log))
	engine.Use(middleware.CORS())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	v1.Use(middleware.APIRateLimiter(redisClient))

	authSvc.RegisterRoutes(v1,
		middleware.LoginRateLimiter(redisClient),
		middleware.RegisterRateLimiter(redisClient))

	fileSvc.RegisterRoutes(v1,
		middleware.JWTAuth(jwtManager),
		middleware.VerificationRateLimiter(redisClient))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &HTTPServer{
		engine: engine,
		server: &http.Server{
			Addr:    addr,
			Handler: engine,
		},
		log: log,
	}
}

// Start starts the HTTP server, blocking until it stops
func (s *HTTPServer) Start() error {
	s.log.Info("starting http server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// LoggerMiddleware logs each request with latency and status
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
