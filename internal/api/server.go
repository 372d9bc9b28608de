// Package api exposes a small read-only HTTP surface over the checker.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"snow-alert/internal/checker"
)

type Server struct {
	router  *gin.Engine
	server  *http.Server
	checker *checker.Checker
	log     *zap.SugaredLogger
	port    int
}

type ServerConfig struct {
	Port    int
	Checker *checker.Checker
	Log     *zap.SugaredLogger
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:  router,
		checker: cfg.Checker,
		log:     cfg.Log,
		port:    cfg.Port,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api/v1")
	{
		api.GET("/status", s.statusHandler)
		api.GET("/forecast", s.forecastHandler)
		api.POST("/check", s.checkHandler)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"checking":  s.checker.IsRunning(),
		"timestamp": time.Now(),
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	res := s.checker.LatestResult()
	if res == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No check has run yet",
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) forecastHandler(c *gin.Context) {
	forecast := s.checker.LatestForecast()
	if forecast == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No forecast fetched yet",
		})
		return
	}
	c.JSON(http.StatusOK, forecast)
}

// checkHandler triggers an immediate check and returns its result.
func (s *Server) checkHandler(c *gin.Context) {
	res := s.checker.RunOnce(c.Request.Context())
	c.JSON(http.StatusOK, res)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.log.Infof("API server starting on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
