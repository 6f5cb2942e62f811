// Package server exposes the tool-call parsers over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/efortin/vllm-toolparser/pkg/adapter"
	"github.com/efortin/vllm-toolparser/pkg/config"
	"github.com/efortin/vllm-toolparser/pkg/pythonic"
	"github.com/efortin/vllm-toolparser/pkg/stats"
)

const shutdownTimeout = 10 * time.Second

// Server handles parse, extract and streaming session requests
type Server struct {
	cfg       *config.Config
	metrics   *stats.MetricsRecorder
	parsers   map[pythonic.EngineKind]*pythonic.Parser
	extractor *adapter.Extractor
	sessions  *SessionStore
	router    *gin.Engine
}

// New creates a server from a validated configuration
func New(cfg *config.Config, metrics *stats.MetricsRecorder) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if metrics == nil {
		metrics = stats.NewMetricsRecorder()
	}

	opts := cfg.ParserOptions()
	opts.Observer = metrics

	s := &Server{
		cfg:     cfg,
		metrics: metrics,
		parsers: make(map[pythonic.EngineKind]*pythonic.Parser),
	}
	for _, name := range pythonic.EngineNames() {
		engineOpts := opts
		engineOpts.Engine = pythonic.EngineKind(name)
		p, err := pythonic.NewParser(engineOpts)
		if err != nil {
			return nil, err
		}
		s.parsers[engineOpts.Engine] = p
	}
	s.extractor = adapter.NewExtractor(s.parsers[opts.Engine], true, cfg.Debug)

	sessions, err := NewSessionStore(cfg.MaxSessions, opts, metrics)
	if err != nil {
		return nil, err
	}
	s.sessions = sessions

	s.router = s.setupRouter()
	return s, nil
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.metricsMiddleware())
	if len(s.cfg.AllowOrigins) > 0 {
		r.Use(s.corsMiddleware())
	}

	r.GET("/health", s.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/parse", s.ParseHandler)
	v1.POST("/extract", s.ExtractHandler)
	v1.POST("/extract/stream", s.ExtractStreamHandler)

	sessions := v1.Group("/sessions")
	sessions.POST("", s.CreateSessionHandler)
	sessions.POST("/:id/chunks", s.ChunkHandler)
	sessions.GET("/:id/calls", s.CallsHandler)
	sessions.POST("/:id/finish", s.FinishHandler)
	sessions.DELETE("/:id", s.DeleteSessionHandler)

	return r
}

// metricsMiddleware records every request under its route template
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.RecordRequest(
			c.Request.Method,
			path,
			c.Writer.Status(),
			time.Since(start),
			c.Request.ContentLength,
			int64(c.Writer.Size()),
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range s.cfg.AllowOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = s.cfg.AllowOrigins
	}
	return cors.New(cfg)
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the streaming session store
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Run serves on the configured port until ctx is cancelled, then shuts down
// gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[SERVER] Listening on :%s (engine: %s)", s.cfg.Port, s.cfg.Engine)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[SERVER] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
