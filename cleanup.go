package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type CleanupStats struct {
	LastRun      time.Time `json:"last_run"`
	LastRemoved  int64     `json:"last_removed"`
	TotalRemoved int64     `json:"total_removed"`
	TotalRuns    int64     `json:"total_runs"`
	LastError    string    `json:"last_error,omitempty"`
}

// CleanupScheduler sweeps expired codes on a fixed interval. A failed sweep
// is logged and retried on the next tick; it never brings the process down.
type CleanupScheduler struct {
	service  *VerificationService
	interval time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	stats CleanupStats

	stop chan struct{}
	done chan struct{}
}

func NewCleanupScheduler(service *VerificationService, interval time.Duration, logger *zap.Logger) *CleanupScheduler {
	return &CleanupScheduler{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *CleanupScheduler) Start() {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.runOnce(context.Background())
			case <-c.stop:
				return
			}
		}
	}()
	c.logger.Info("cleanup scheduler started", zap.Duration("interval", c.interval))
}

func (c *CleanupScheduler) Stop() {
	close(c.stop)
	<-c.done
}

// ForceCleanup runs a sweep immediately, outside the ticker. Used by the
// operator endpoint.
func (c *CleanupScheduler) ForceCleanup(ctx context.Context) (int64, error) {
	return c.runOnce(ctx)
}

func (c *CleanupScheduler) Stats() CleanupStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *CleanupScheduler) runOnce(ctx context.Context) (int64, error) {
	removed, err := c.service.CleanupExpiredCodes(ctx)

	c.mu.Lock()
	c.stats.LastRun = time.Now()
	c.stats.TotalRuns++
	if err != nil {
		c.stats.LastError = err.Error()
	} else {
		c.stats.LastError = ""
		c.stats.LastRemoved = removed
		c.stats.TotalRemoved += removed
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("cleanup sweep failed", zap.Error(err))
		return 0, err
	}
	if removed > 0 {
		c.logger.Info("cleanup sweep removed expired codes", zap.Int64("removed", removed))
	}
	return removed, nil
}
