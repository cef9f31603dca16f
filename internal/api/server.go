// Package api exposes the matching engine over a thin HTTP JSON surface.
// Authentication, form rendering and trip CRUD live elsewhere; this layer
// only translates requests into engine calls.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gitlab.com/minqi/travel-standards/internal/logger"
)

// Server is the HTTP adapter around the engine.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
}

// NewServer creates the HTTP server and registers routes.
func NewServer(addr string, handlers *Handlers) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		router:   router,
		handlers: handlers,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}

	router.GET("/healthz", handlers.Health)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/standards/match", handlers.MatchStandards)
		apiGroup.POST("/standards/compute", handlers.ComputeExpenses)
		apiGroup.POST("/standards/match-and-compute", handlers.MatchAndCompute)
		apiGroup.POST("/admin/rates/refresh", handlers.RefreshRates)
	}

	return s
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs each request with zerolog, keeping gin's default
// writer out of the picture.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}
