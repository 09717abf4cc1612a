// Package server exposes calibration data and remote hand-eye sessions
// over an HTTP JSON API built on gin.
//
// Routes:
//
//	GET    /health
//	GET    /metrics, /api/metrics
//	GET    /api/devices
//	GET    /api/devices/:id/intrinsics
//	GET    /api/devices/:id/handeye            ?camera=&limit=
//	POST   /api/devices/:id/handeye
//	GET    /api/devices/:id/handeye/:record
//	GET    /api/devices/:id/joints             ?limit=
//	POST   /api/devices/:id/joints
//	GET    /api/devices/:id/joints/stats       ?limit=
//	GET    /api/devices/:id/session
//	POST   /api/devices/:id/session
//	PUT    /api/devices/:id/session/camera
//	PUT    /api/devices/:id/session/intrinsic
//	PUT    /api/devices/:id/session/notes
//	POST   /api/devices/:id/session/poses
//	DELETE /api/devices/:id/session/poses/:pose
//	POST   /api/devices/:id/session/solve
//	POST   /api/devices/:id/session/save
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Mr-Dark-debug/calibscope/internal/analysis"
	"github.com/Mr-Dark-debug/calibscope/internal/database"
	"github.com/Mr-Dark-debug/calibscope/internal/session"
)

// Config holds configuration for the API server.
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string `json:"addr"`

	// CaptureDelay and SolveDelay are the placeholder latencies of
	// remote sessions.
	CaptureDelay time.Duration `json:"capture_delay"`
	SolveDelay   time.Duration `json:"solve_delay"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8420",
		CaptureDelay:    session.DefaultCaptureDelay,
		SolveDelay:      session.DefaultSolveDelay,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Metrics tracks request and calibration counts.
type Metrics struct {
	Requests       int64 `json:"requests"`
	ErrorCount     int64 `json:"error_count"`
	HandEyeSaved   int64 `json:"handeye_saved"`
	JointsImported int64 `json:"joints_imported"`
	Uptime         int64 `json:"uptime_seconds"`
}

// Server is the HTTP API. It owns one hand-eye session per device.
type Server struct {
	config   Config
	store    database.Store
	analyzer *analysis.Analyzer
	engine   *gin.Engine

	source *session.PlaceholderPoseSource
	solver *session.PlaceholderSolver

	sessMu   sync.Mutex
	sessions map[string]*session.Controller

	metrics Metrics
	started time.Time

	httpSrv  *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a server backed by store. Call Start to listen, or use
// Handler directly.
func New(config Config, store database.Store) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	s := &Server{
		config:   config,
		store:    store,
		analyzer: analysis.NewAnalyzer(store),
		source:   session.NewPlaceholderPoseSource(config.CaptureDelay, nil),
		solver:   session.NewPlaceholderSolver(config.SolveDelay, nil),
		sessions: make(map[string]*session.Controller),
		started:  time.Now(),
	}
	s.engine = s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(&s.metrics), gin.Recovery())

	router.GET("/health", s.health)
	router.GET("/metrics", s.promMetrics)

	api := router.Group("/api")
	api.GET("/metrics", s.jsonMetrics)
	api.GET("/devices", s.listDevices)

	dev := api.Group("/devices/:id", s.loadDevice)
	dev.GET("/intrinsics", s.listIntrinsics)
	dev.GET("/handeye", s.listHandEye)
	dev.POST("/handeye", s.createHandEye)
	dev.GET("/handeye/:record", s.getHandEye)
	dev.GET("/joints", s.listJoints)
	dev.POST("/joints", s.importJoints)
	dev.GET("/joints/stats", s.jointStats)

	sess := dev.Group("/session")
	sess.GET("", s.getSession)
	sess.POST("", s.newSession)
	sess.PUT("/camera", s.selectCamera)
	sess.PUT("/intrinsic", s.selectIntrinsic)
	sess.PUT("/notes", s.setNotes)
	sess.POST("/poses", s.capturePose)
	sess.DELETE("/poses/:pose", s.removePose)
	sess.POST("/solve", s.solve)
	sess.POST("/save", s.save)

	return router
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetDelays changes the placeholder latencies of every session.
func (s *Server) SetDelays(capture, solve time.Duration) {
	s.source.SetDelay(capture)
	s.solver.SetDelay(solve)
	logrus.WithFields(logrus.Fields{
		"capture_delay": capture,
		"solve_delay":   solve,
	}).Info("session delays updated")
}

// Start listens on the configured address and serves until ctx is
// cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("api server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logrus.WithField("addr", listener.Addr().String()).Info("calibscope api listening")
	return nil
}

// Addr returns the address the server listens on, once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server, waiting for in-flight requests.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if s.httpSrv == nil {
			return
		}
		logrus.Info("shutting down calibscope api...")

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		err = s.httpSrv.Shutdown(ctx)
		s.wg.Wait()

		logrus.Info("calibscope api stopped")
	})
	return err
}

// Metrics returns a snapshot of the current metrics.
func (s *Server) Metrics() Metrics {
	return Metrics{
		Requests:       atomic.LoadInt64(&s.metrics.Requests),
		ErrorCount:     atomic.LoadInt64(&s.metrics.ErrorCount),
		HandEyeSaved:   atomic.LoadInt64(&s.metrics.HandEyeSaved),
		JointsImported: atomic.LoadInt64(&s.metrics.JointsImported),
		Uptime:         int64(time.Since(s.started).Seconds()),
	}
}
