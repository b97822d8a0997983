package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"holder-tiers/internal/domain"
	"holder-tiers/internal/observability"
	"holder-tiers/internal/pipeline"
	"holder-tiers/internal/storage"
)

// Options configures a Server.
type Options struct {
	Project   string
	Scheduler *Scheduler
	Results   storage.ResultStore        // nil: latest endpoints serve the scheduler's last output
	Snapshots storage.EntrySnapshotStore // nil: history endpoints answer 404
	Hub       *Hub
	Metrics   http.Handler // nil: observability.Handler()
	// Ready reports whether upstream dependencies answer; nil: always ready.
	Ready  func(ctx context.Context) error
	Logger *zap.Logger
}

// Server is the HTTP surface of the scheduler.
type Server struct {
	opts    Options
	engine  *gin.Engine
	started time.Time
	logger  *zap.Logger
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status  string            `json:"status"`
	Project string            `json:"project"`
	Mode    string            `json:"mode"`
	Uptime  string            `json:"uptime"`
	Run     domain.RunContext `json:"run"`
	Clients int               `json:"clients"`
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		opts:    opts,
		engine:  gin.New(),
		started: time.Now(),
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.opts.Metrics == nil {
		s.opts.Metrics = observability.Handler()
	}
	if s.opts.Hub == nil {
		s.opts.Hub = NewHub(s.logger)
	}

	s.engine.Use(gin.Recovery(), requestLogger(s.logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	g := s.engine
	g.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	g.GET("/ready", s.handleReady)
	g.GET("/metrics", gin.WrapH(s.opts.Metrics))
	g.GET("/status", s.handleStatus)
	g.POST("/run", s.handleTrigger)
	g.GET("/ws", s.opts.Hub.ServeWS)

	g.GET("/badges/latest", s.handleLatestBadges)
	lb := g.Group("/leaderboard")
	{
		lb.GET("/latest", s.handleLatestLeaderboard)
		lb.GET("/runs/:runID", s.handleLeaderboardRun)
		lb.GET("/history/:handle", s.handleHandleHistory)
	}
}

func (s *Server) handleReady(c *gin.Context) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
	}
	c.String(http.StatusOK, "ready")
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.opts.Hub.Close()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := StatusResponse{
		Status:  "running",
		Project: s.opts.Project,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Clients: s.opts.Hub.Len(),
	}
	if s.opts.Scheduler != nil {
		resp.Mode = s.opts.Scheduler.Mode()
		resp.Run = s.opts.Scheduler.Status()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTrigger(c *gin.Context) {
	if s.opts.Scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return
	}
	if err := s.opts.Scheduler.Trigger(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
}

func (s *Server) handleLatestBadges(c *gin.Context) {
	if s.opts.Results != nil {
		b, err := s.opts.Results.LatestBadgeResult(c.Request.Context(), s.opts.Project)
		s.respond(c, b, err)
		return
	}
	if out := s.latest(); out != nil && out.Report.Badges != nil {
		c.JSON(http.StatusOK, out.Report.Badges)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": storage.ErrNotFound.Error()})
}

func (s *Server) handleLatestLeaderboard(c *gin.Context) {
	if s.opts.Results != nil {
		lb, err := s.opts.Results.LatestLeaderboard(c.Request.Context(), s.opts.Project)
		s.respond(c, lb, err)
		return
	}
	if out := s.latest(); out != nil && out.Report.Leaderboard != nil {
		c.JSON(http.StatusOK, out.Report.Leaderboard)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": storage.ErrNotFound.Error()})
}

func (s *Server) handleLeaderboardRun(c *gin.Context) {
	if s.opts.Snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rank history disabled"})
		return
	}
	entries, err := s.opts.Snapshots.GetByRun(c.Request.Context(), c.Param("runID"))
	if err == nil && len(entries) == 0 {
		err = storage.ErrNotFound
	}
	s.respond(c, entries, err)
}

func (s *Server) handleHandleHistory(c *gin.Context) {
	if s.opts.Snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rank history disabled"})
		return
	}
	handle := domain.NormalizeHandle(c.Param("handle"))
	entries, err := s.opts.Snapshots.GetHistory(c.Request.Context(), s.opts.Project, handle.String())
	if err == nil && len(entries) == 0 {
		err = storage.ErrNotFound
	}
	s.respond(c, entries, err)
}

func (s *Server) respond(c *gin.Context, body any, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, body)
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("store query failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) latest() *pipeline.Output {
	if s.opts.Scheduler == nil {
		return nil
	}
	return s.opts.Scheduler.Latest()
}
