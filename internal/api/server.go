package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apimiddleware "github.com/ewhitmore/gpubill/internal/api/middleware"
	"github.com/ewhitmore/gpubill/internal/auth"
	"github.com/ewhitmore/gpubill/internal/billing"
	"github.com/ewhitmore/gpubill/internal/compute"
	"github.com/ewhitmore/gpubill/internal/payments"
	"github.com/ewhitmore/gpubill/internal/pricing"
	"github.com/ewhitmore/gpubill/internal/store"
)

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	AdminAPIKey     string
	AllowedOrigins  []string
	MaxBodySize     string
	RateLimitPerSec float64
	RateLimitBurst  int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            8000,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"http://localhost:3000"},
		MaxBodySize:     "1M",
		RateLimitPerSec: 10,
		RateLimitBurst:  20,
	}
}

// Deps bundles everything the server serves from
type Deps struct {
	Store     *store.Store
	Authority *auth.Authority
	Admitter  *billing.Admitter
	Ledger    *billing.Ledger
	Rates     *pricing.RateCache
	Payments  *payments.Client
	Provider  *compute.Client
}

// Server represents the HTTP API server
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	deps   *Deps
}

// NewServer creates a new API server
func NewServer(config *ServerConfig, deps *Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Disable Echo's default logger, we'll use our own
	e.Logger.SetOutput(io.Discard)

	e.Validator = NewValidator()

	s := &Server{
		echo:   e,
		config: config,
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware stack
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	// Request ID for tracing
	s.echo.Use(middleware.RequestID())

	s.echo.Use(apimiddleware.Logger())

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.config.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, auth.AdminKeyHeader},
	}))

	s.echo.Use(middleware.BodyLimit(s.config.MaxBodySize))

	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 60 * time.Second,
	}))
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	// Health checks (no auth required)
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readyCheck)

	v1 := s.echo.Group("/api/v1")

	// Credential issuance; rate limited since it fronts the signature
	// verification round-trip
	authHandler := NewAuthHandler(s.deps.Payments, s.deps.Authority)
	authGroup := v1.Group("/auth", middleware.RateLimiter(
		middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.config.RateLimitPerSec),
			Burst:     s.config.RateLimitBurst,
			ExpiresIn: 3 * time.Minute,
		})))
	authGroup.POST("/verify", authHandler.Verify)
	authGroup.POST("/admin", authHandler.AdminLogin, auth.RequireAdminKey(s.config.AdminAPIKey))

	requireAuth := auth.RequireAuth(s.deps.Authority)

	// Balance queries
	balanceHandler := NewBalanceHandler(s.deps.Ledger, s.deps.Rates, s.deps.Payments)
	balanceGroup := v1.Group("/balance", requireAuth)
	balanceGroup.GET("", balanceHandler.Get)
	balanceGroup.GET("/address", balanceHandler.DepositAddress)

	// Job launch and queries
	jobHandler := NewJobHandler(s.deps.Admitter, s.deps.Store, s.deps.Provider)
	jobsGroup := v1.Group("/jobs", requireAuth)
	jobsGroup.POST("", jobHandler.Launch)
	jobsGroup.GET("", jobHandler.List)
	jobsGroup.GET("/running", jobHandler.Running)
	jobsGroup.GET("/:id", jobHandler.Get)
	jobsGroup.GET("/:id/logs", jobHandler.Logs)
	jobsGroup.GET("/:id/metrics", jobHandler.Metrics)
}

// healthCheck returns basic health status
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// readyCheck checks if server is ready to handle requests
func (s *Server) readyCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "database unavailable",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance for testing
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
