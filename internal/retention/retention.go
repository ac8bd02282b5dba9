// Package retention purges threads that have sat idle longer than the
// configured maximum age. Runs fire on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"animbridge/pkg/config"
	"animbridge/pkg/logger"
	"animbridge/pkg/models"
	"animbridge/pkg/store"
)

// Start starts the purge scheduler when retention is enabled and returns a
// cancel func.
func Start(ctx context.Context, cfg config.RetentionConfig, s store.ThreadStore) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}
	if cfg.MaxAge.Duration() <= 0 {
		return nil, fmt.Errorf("retention enabled but max_age is not set")
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "max_age", cfg.MaxAge.Duration().String(), "dry_run", cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr, s)
	return cancel, nil
}

// runScheduler sleeps until the next cron tick and triggers a purge run.
func runScheduler(ctx context.Context, cfg config.RetentionConfig, cronExpr string, s store.ThreadStore) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(cfg, s); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce purges idle threads immediately. Threads still generating are left
// alone regardless of age.
func RunOnce(cfg config.RetentionConfig, s store.ThreadStore) error {
	threads, err := s.List()
	if err != nil {
		return err
	}
	cutoff := time.Now().UTC().Add(-cfg.MaxAge.Duration()).UnixNano()
	purged := 0
	for _, t := range threads {
		if t.Status == models.StatusGenerating {
			continue
		}
		last := t.UpdatedTS
		if last == 0 {
			last = t.CreatedTS
		}
		if last >= cutoff {
			continue
		}
		if cfg.DryRun {
			logger.Info("retention_would_purge", "thread", t.ID, "status", t.Status)
			purged++
			continue
		}
		if err := s.Delete(t.ID); err != nil && err != store.ErrNotFound {
			logger.Error("retention_delete_failed", "thread", t.ID, "error", err)
			continue
		}
		purged++
	}
	logger.Info("retention_run_complete", "examined", len(threads), "purged", purged, "dry_run", cfg.DryRun)
	return nil
}
