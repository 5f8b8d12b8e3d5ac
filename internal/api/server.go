// Package api exposes the scoring service over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/AshishSingh1503/HelixMind/internal/config"
	"github.com/AshishSingh1503/HelixMind/internal/middleware"
	"github.com/AshishSingh1503/HelixMind/internal/service"
	"github.com/AshishSingh1503/HelixMind/internal/storage"
)

// Server is the HTTP front end over the analysis and auth services.
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	server   *http.Server
	auth     *service.AuthService
	analysis *service.AnalysisService
	store    storage.Store
	log      *logrus.Logger
}

// NewServer builds the gin engine with the full middleware chain and
// routes.
func NewServer(cfg *config.Config, auth *service.AuthService, analysis *service.AnalysisService, store storage.Store, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	if cfg.Server.RateLimit > 0 {
		router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}

	s := &Server{
		cfg:      cfg,
		router:   router,
		auth:     auth,
		analysis: analysis,
		store:    store,
		log:      logger,
	}
	s.setupRoutes()
	return s
}

// Router returns the underlying engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving HTTP: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", s.handleRegister)
			auth.POST("/token", s.handleToken)
			auth.GET("/me", middleware.Authenticate(s.auth), s.handleMe)
		}

		analysis := v1.Group("/analysis", middleware.Authenticate(s.auth))
		{
			analysis.POST("/upload", s.handleUpload)
			analysis.GET("/results/:id", s.handleGetResults)
			analysis.GET("/history", s.handleHistory)
			analysis.DELETE("/results/:id", s.handleDelete)
		}
	}
}
