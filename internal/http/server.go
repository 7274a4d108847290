// Package http wires the public API router and the metrics server.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/tierguard/internal/access"
	"github.com/allisson/tierguard/internal/clock"
	"github.com/allisson/tierguard/internal/config"
	credentialHTTP "github.com/allisson/tierguard/internal/credential/http"
	"github.com/allisson/tierguard/internal/metrics"
)

// readinessTimeout bounds the database ping of the readiness probe.
const readinessTimeout = 2 * time.Second

// Server represents the HTTP server
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server. The router is built by SetupRouter.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterDeps groups what SetupRouter wires into the routes.
type RouterDeps struct {
	Evaluator          access.Evaluator
	CredentialHandler  *credentialHTTP.CredentialHandler
	EntitlementHandler *credentialHTTP.EntitlementHandler
	Clock              clock.Clock
	MetricsProvider    *metrics.Provider
}

// SetupRouter configures the Gin engine with middleware and routes.
// ctx bounds background goroutines owned by middleware.
func (s *Server) SetupRouter(ctx context.Context, cfg *config.Config, deps RouterDeps) {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if cfg.MetricsEnabled && deps.MetricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(deps.MetricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	accessMiddleware := credentialHTTP.AccessMiddleware(deps.Evaluator, deps.Clock, s.logger)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/logout", accessMiddleware, deps.CredentialHandler.LogoutHandler)

		redeem := []gin.HandlerFunc{}
		if cfg.RateLimitRedeemEnabled {
			redeem = append(redeem, credentialHTTP.RedeemRateLimitMiddleware(
				ctx,
				cfg.RateLimitRedeemRequestsPerSec,
				cfg.RateLimitRedeemBurst,
				s.logger,
			))
		}
		redeem = append(redeem, deps.CredentialHandler.RedeemMagicLinkHandler)
		auth.POST("/magic-link/redeem", redeem...)
	}

	entitlements := v1.Group("/entitlements", accessMiddleware)
	{
		entitlements.GET("/me", deps.EntitlementHandler.GetMineHandler)
	}

	s.router = router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready only when the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	database := "ok"
	if s.db == nil {
		database = "error"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.Any("error", err))
			database = "error"
		}
	}

	if database != "ok" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": database},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": database},
	})
}
