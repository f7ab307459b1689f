// Package workers contains background workers for the detection service.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/store"
)

// RetentionConfig configures the retention pruner worker.
type RetentionConfig struct {
	// Interval is the time between prune cycles.
	// Default: 1 hour.
	Interval time.Duration

	// MaxAge is how long inspection records are kept.
	// Default: 30 days.
	MaxAge time.Duration
}

// DefaultRetentionConfig returns the default configuration.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Interval: time.Hour,
		MaxAge:   30 * 24 * time.Hour,
	}
}

// RetentionPruner periodically deletes inspection records older than the
// configured retention window, keeping the database bounded on long-running
// production lines.
type RetentionPruner struct {
	store  store.Store
	config RetentionConfig
	logger *slog.Logger

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRetentionPruner creates a new retention pruner worker.
func NewRetentionPruner(s store.Store, config RetentionConfig, logger *slog.Logger) *RetentionPruner {
	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.MaxAge == 0 {
		config.MaxAge = 30 * 24 * time.Hour
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &RetentionPruner{
		store:  s,
		config: config,
		logger: logger.With("component", "retention_pruner"),
	}
}

// Start begins the pruner background goroutine.
func (p *RetentionPruner) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(1)
	go p.run()

	p.logger.Info("retention pruner started",
		"interval", p.config.Interval,
		"max_age", p.config.MaxAge,
	)
}

// Stop gracefully stops the pruner.
// It waits for an in-progress prune cycle to complete.
func (p *RetentionPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("retention pruner stopped")
}

// run is the main loop that prunes periodically.
func (p *RetentionPruner) run() {
	defer p.wg.Done()

	// Run immediately on start
	p.runCycle()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runCycle()
		}
	}
}

// runCycle executes a single prune cycle.
func (p *RetentionPruner) runCycle() {
	ctx, cancel := context.WithTimeout(p.ctx, p.config.Interval)
	defer cancel()

	cutoff := time.Now().Add(-p.config.MaxAge)

	deleted, err := p.store.DeleteInspectionsBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("prune cycle failed", "error", err)
		return
	}

	if deleted > 0 {
		p.logger.Info("pruned old inspections", "deleted", deleted, "cutoff", cutoff)
	} else {
		p.logger.Debug("nothing to prune", "cutoff", cutoff)
	}
}

// PruneNow runs an immediate prune cycle.
// Useful after retention configuration changes.
func (p *RetentionPruner) PruneNow(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-p.config.MaxAge)
	return p.store.DeleteInspectionsBefore(ctx, cutoff)
}
