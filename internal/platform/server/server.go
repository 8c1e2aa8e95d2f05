package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zuloanga/Coinorbit/internal/auth"
	"github.com/zuloanga/Coinorbit/internal/ledger/api"
)

// Server wraps the HTTP stack: gin engine, middleware chain, routes.
type Server struct {
	engine *gin.Engine
	logger *zap.Logger
	port   string
	server *http.Server
}

func NewServer(
	logger *zap.Logger,
	cfgPort string,
	cfgMode string,
	jwtManager *auth.JWTManager,
	authHandlers *auth.Handlers,
	ledgerHandler *api.LedgerHandler,
) *Server {
	if cfgMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())

	// Request logging via zap.
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("cost", time.Since(start)),
		)
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	v1 := r.Group("/api/v1")
	{
		// Public: registration and login.
		authHandlers.RegisterRoutes(v1)

		// Everything else requires a valid bearer token.
		authed := v1.Group("")
		authed.Use(auth.Middleware(jwtManager))
		ledgerHandler.RegisterRoutes(authed)

		admin := authed.Group("/admin")
		admin.Use(auth.RequireAdmin())
		ledgerHandler.RegisterAdminRoutes(admin)

		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "UP"})
		})
	}

	return &Server{
		engine: r,
		logger: logger,
		port:   cfgPort,
	}
}

// Run starts the listener and blocks until it stops.
func (s *Server) Run() error {
	s.server = &http.Server{
		Addr:    ":" + s.port,
		Handler: s.engine,
	}
	s.logger.Info("API server started", zap.String("port", s.port))
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
