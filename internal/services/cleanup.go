package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// InjuryReportPurger deletes stored injury reports older than a cutoff.
type InjuryReportPurger interface {
	DeleteInjuryReportsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService periodically enforces the injury report retention window.
type CleanupService struct {
	purger    InjuryReportPurger
	retention time.Duration
	interval  time.Duration
	logger    *logrus.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCleanupService(purger InjuryReportPurger, retention, interval time.Duration, logger *logrus.Logger) *CleanupService {
	if interval <= 0 {
		interval = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupService{
		purger:    purger,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start runs one cleanup immediately and then one per interval until Stop.
// A non-positive retention disables cleanup.
func (c *CleanupService) Start() {
	if c.retention <= 0 {
		c.logger.Info("Injury report retention disabled")
		return
	}
	c.logger.WithFields(logrus.Fields{
		"retention": c.retention.String(),
		"interval":  c.interval.String(),
	}).Info("Starting cleanup service")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			if _, err := c.RunCleanup(c.ctx); err != nil {
				c.logger.WithError(err).Warn("Cleanup failed")
			}
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (c *CleanupService) Stop() {
	c.cancel()
	c.wg.Wait()
	c.logger.Info("Cleanup service stopped")
}

// RunCleanup deletes reports older than the retention window.
func (c *CleanupService) RunCleanup(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention)
	n, err := c.purger.DeleteInjuryReportsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup injury reports: %w", err)
	}
	if n > 0 {
		c.logger.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff}).Info("Cleaned up old injury reports")
	}
	return n, nil
}
