// Package server exposes the JSON API over gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/pocketvid/pocketvid/internal/config"
	"github.com/pocketvid/pocketvid/internal/job"
)

// Server wires the HTTP surface over a job runtime.
type Server struct {
	logger hclog.Logger
	cfg    *config.Config
	rt     *job.Runtime
	engine *gin.Engine

	// baseCtx parents every worker goroutine started by a handler so
	// shutdown reaches in-flight jobs.
	baseCtx context.Context
}

// New builds the router. workerCtx becomes the parent of all background
// job contexts.
func New(logger hclog.Logger, cfg *config.Config, rt *job.Runtime, workerCtx context.Context) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		logger:  logger.Named("http"),
		cfg:     cfg,
		rt:      rt,
		engine:  gin.New(),
		baseCtx: workerCtx,
	}
	s.engine.Use(gin.Recovery(), s.requestID(), s.accessLog())
	s.routes()
	return s
}

// Handler returns the http handler for serving.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.POST("/convert", s.handleConvert)
		api.GET("/status/:id", s.handleStatus)
		api.GET("/download/:id", s.handleDownload)
		api.GET("/history", s.handleHistory)

		api.POST("/playlist", s.handlePlaylist)
		api.GET("/playlist/:id", s.handlePlaylistStatus)

		api.POST("/split", s.handleSplit)
		api.GET("/split/:id", s.handleSplitStatus)
		api.GET("/split/:id/download/:part", s.handleSplitDownload)

		api.GET("/cookies", s.handleCookieHealth)
		api.POST("/cookies", s.handleCookieUpload)
		api.DELETE("/cookies", s.handleCookieDelete)
	}
}

// requestID tags every request for log correlation.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).String())
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"active_jobs": s.rt.Active.Count(),
		"time":        time.Now().Format(time.RFC3339),
	})
}
