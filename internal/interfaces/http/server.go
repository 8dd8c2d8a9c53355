// Package http provides the HTTP adapter over the application layer. It
// is deliberately thin: handlers bind, delegate and translate errors.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given handlers
func NewServer(config ServerConfig, handlers *Handlers, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: handlers,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		api.POST("/requests", s.handlers.CreateRequest)
		api.GET("/requests", s.handlers.ListRequests)
		api.GET("/requests/export", s.handlers.ExportRequests)
		api.GET("/requests/:id", s.handlers.GetRequest)
		api.POST("/requests/:id/submit", s.handlers.SubmitRequest)
		api.POST("/requests/:id/transition", s.handlers.TransitionRequestStatus)
		api.GET("/requests/:id/actions", s.handlers.RequestActions)
		api.GET("/requests/:id/history", s.handlers.RequestHistory)
		api.POST("/requests/:id/report", s.handlers.SubmitReport)
		api.PUT("/requests/:id/report", s.handlers.CorrectReport)
		api.POST("/requests/:id/report/validation", s.handlers.ValidateReport)
		api.GET("/requests/:id/report/validation", s.handlers.ReportValidationResults)

		api.POST("/reimbursements", s.handlers.CreateReimbursement)
		api.GET("/reimbursements", s.handlers.ListReimbursements)
		api.GET("/reimbursements/:id", s.handlers.GetReimbursement)
		api.POST("/reimbursements/:id/submit", s.handlers.SubmitReimbursement)
		api.POST("/reimbursements/:id/transition", s.handlers.TransitionReimbursementStatus)
		api.GET("/reimbursements/:id/actions", s.handlers.ReimbursementActions)
		api.GET("/reimbursements/:id/history", s.handlers.ReimbursementHistory)

		api.POST("/attachments", s.handlers.UploadAttachment)
		api.GET("/attachments/:id", s.handlers.DownloadAttachment)

		api.POST("/messages", s.handlers.SendMessage)
		api.GET("/conversations/:userId", s.handlers.GetConversation)
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("HTTP server starting", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
