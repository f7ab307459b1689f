package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/detect"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/api"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/bootstrap"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/cache"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/params"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/store"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/vision"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDetectorError   = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the defectd application server.
type Server struct {
	config       *Config
	httpServer   *http.Server
	store        store.Store
	cache        cache.Cache
	detectors    *detect.Holder
	paramWatcher *params.Watcher
	pruner       *workers.RetentionPruner
	logger       *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Prepare the directory layout before anything opens files in it
	if _, err := bootstrap.EnsureDirs(cfg.Dirs.Data, cfg.Dirs.Models, cfg.Dirs.Logs); err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
	}

	// Connect to database
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDatabaseError}
	}

	// Result cache: a missing Redis downgrades to pass-through caching
	// rather than failing startup
	var c cache.Cache = cache.NewNoopCache()
	if cfg.Cache.Enabled {
		rc, err := cache.NewRedisCache(context.Background(), cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err != nil {
			logger.Warn("redis unreachable, caching disabled",
				"addr", cfg.Cache.RedisAddr,
				"error", err,
			)
		} else {
			c = rc
			logger.Info("result cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
		}
	} else {
		logger.Info("result cache disabled")
	}

	// Detector with hot-reloadable params
	holder := detect.NewHolder(nil)
	watcher, err := params.NewWatcher(cfg.Detector.ParamsFile, logger, func(p detect.Params, reloadErr error) {
		if reloadErr != nil {
			logger.Error("params reload failed, keeping previous detector", "error", reloadErr)
			return
		}
		det, buildErr := buildDetector(logger, cfg.Detector.Backend, p)
		if buildErr != nil {
			logger.Error("failed to rebuild detector", "error", buildErr)
			return
		}
		holder.Swap(det)
		logger.Info("detector params reloaded", "backend", cfg.Detector.Backend)
	})
	if err != nil {
		s.Close()
		c.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDetectorError}
	}

	det, err := buildDetector(logger, cfg.Detector.Backend, watcher.Current())
	if err != nil {
		watcher.Close()
		s.Close()
		c.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDetectorError}
	}
	holder.Swap(det)

	// HTTP handler
	handler := api.NewHandler(s, c, holder, logger, Version, api.HandlerConfig{
		MaxUploadBytes:   int64(cfg.Detector.MaxUploadMB) << 20,
		MaxBatchFiles:    cfg.Detector.MaxBatchFiles,
		BatchConcurrency: cfg.Detector.BatchConcurrency,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Retention pruner
	var pruner *workers.RetentionPruner
	if cfg.Retention.Enabled {
		pruner = workers.NewRetentionPruner(s, workers.RetentionConfig{
			Interval: cfg.Retention.SweepInterval,
			MaxAge:   cfg.Retention.MaxAge,
		}, logger)
	} else {
		logger.Info("retention pruning disabled")
	}

	return &Server{
		config:       cfg,
		httpServer:   httpServer,
		store:        s,
		cache:        c,
		detectors:    holder,
		paramWatcher: watcher,
		pruner:       pruner,
		logger:       logger,
	}, nil
}

// buildDetector constructs the configured detection backend. When the
// binary was built without the gocv tag the opencv backend falls back to
// native with a warning.
func buildDetector(logger *slog.Logger, backend string, p detect.Params) (detect.Detector, error) {
	switch backend {
	case "opencv":
		det, err := vision.NewDetector(p)
		if errors.Is(err, vision.ErrUnavailable) {
			logger.Warn("opencv backend unavailable, falling back to native", "error", err)
			return detect.NewNativeDetector(p)
		}
		return det, err
	case "native":
		return detect.NewNativeDetector(p)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", backend)
	}
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if s.pruner != nil {
		s.pruner.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.pruner != nil {
		s.pruner.Stop()
	}

	if err := s.paramWatcher.Close(); err != nil {
		s.logger.Error("params watcher close error", "error", err)
	}

	if err := s.cache.Close(); err != nil {
		s.logger.Error("cache close error", "error", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
