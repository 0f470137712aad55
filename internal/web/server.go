// Package web serves the dashboard: a JSON API over the dashboard model,
// static chart rendering, saved views and the embedded front end.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/slopezpereyra/icf-visualization-app/internal/config"
	"github.com/slopezpereyra/icf-visualization-app/internal/dashboard"
	"github.com/slopezpereyra/icf-visualization-app/internal/logger"
	"github.com/slopezpereyra/icf-visualization-app/internal/metrics"
	"github.com/slopezpereyra/icf-visualization-app/internal/service"
	"github.com/slopezpereyra/icf-visualization-app/internal/state"
)

// ServiceName is the name the web server registers under.
const ServiceName = "web-server"

// requestIDHeader carries the per-request id.
const requestIDHeader = "X-Request-ID"

//go:embed static/*
var staticFiles embed.FS

var staticContentFS fs.FS

func init() {
	var err error
	staticContentFS, err = fs.Sub(staticFiles, "static")
	if err != nil {
		staticContentFS = staticFiles
	}
}

// Server represents the web server service
type Server struct {
	*service.ServiceBase
	config     *config.WebConfig
	logger     *logger.Logger
	httpServer *http.Server
	listener   net.Listener
	router     *gin.Engine
	routesOnce sync.Once

	dash      *dashboard.Dashboard
	stateMgr  *state.Manager   // Optional, enables saved views and load history
	configSvc *config.Service  // Optional, enables /api/config and chart size defaults
	metrics   *metrics.Metrics // Optional, enables /metrics
	version   string           // Application version
	startTime time.Time        // Server start time for uptime calculation
}

// NewServer creates a new web server service over dash.
func NewServer(cfg *config.WebConfig, dash *dashboard.Dashboard, log *logger.Logger) *Server {
	// Debug mode can be enabled via GIN_MODE environment variable
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestID())
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	return &Server{
		ServiceBase: service.NewServiceBase(ServiceName, log),
		config:      cfg,
		logger:      log,
		router:      router,
		dash:        dash,
		version:     "dev",
		startTime:   time.Now(),
	}
}

// SetVersion sets the application version
func (s *Server) SetVersion(version string) {
	s.version = version
}

// SetStateManager enables the saved view and load history endpoints.
func (s *Server) SetStateManager(mgr *state.Manager) {
	s.stateMgr = mgr
}

// SetConfigService enables the configuration endpoint.
func (s *Server) SetConfigService(svc *config.Service) {
	s.configSvc = svc
}

// SetMetrics enables request metrics and the /metrics endpoint.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Handler returns the router with every route registered. Dependencies
// must be set before the first call.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.setupRoutes)
	return s.router
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.LogInfo("Web server is disabled")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second, // image rendering of large charts
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.LogError("Web server error", err, "address", ln.Addr().String())
		}
	}()

	s.GetStatus().SetStatus(service.StatusRunning)
	s.LogInfo("Web server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the web server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.LogInfo("Stopping web server")
	s.GetStatus().SetStatus(service.StatusStopped)
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes sets up all API routes
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)

		api.GET("/dashboard", s.handleDashboard)
		api.GET("/participants", s.handleParticipants)

		subjects := api.Group("/subjects")
		{
			subjects.GET("", s.handleListSubjects)
			subjects.GET("/:id/series", s.handleSubjectSeries)
			subjects.GET("/:id/trials", s.handleSubjectTrials)
		}

		charts := api.Group("/charts")
		{
			charts.GET("", s.handleListCharts)
			charts.GET("/:name", s.handleChart)
		}

		views := api.Group("/views")
		{
			views.GET("", s.handleListViews)
			views.POST("", s.handleSaveView)
			views.GET("/:id", s.handleGetView)
			views.DELETE("/:id", s.handleDeleteView)
		}

		api.GET("/loads", s.handleListLoads)
		api.GET("/config", s.handleGetConfig)
	}

	s.router.StaticFS("/static", http.FS(staticContentFS))

	// Serve index.html for all non-API routes
	s.router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		content, err := fs.ReadFile(staticContentFS, "index.html")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read index.html"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", content)
	})
}

// requestID tags every request with an id, reusing the caller's if given.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// ginLogger creates a Gin middleware for logging
func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		)
	}
}

// corsMiddleware creates a CORS middleware for local network access
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
