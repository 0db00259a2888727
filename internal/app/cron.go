package app

import (
	"context"
	"time"

	"github.com/docverse/core/internal/config"
	"github.com/docverse/core/internal/modules/chat"
	pkgcron "github.com/docverse/core/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, chatSvc *chat.Service, cfg *config.AppConfig, logger *zap.Logger) {
	cronLogger := logger.Named("cron")

	sched.Register(pkgcron.Job{
		Name:        "sweep_stale_generations",
		Description: "Cancel generating messages orphaned by a crash or restart",
		Interval:    time.Minute,
		Fn: func(ctx context.Context) error {
			swept, err := chatSvc.SweepStale(ctx, cfg.Retrieval.StaleGeneratingTTL)
			if err != nil {
				cronLogger.Warn("stale generation sweep failed", zap.Error(err))
				return err
			}
			if swept > 0 {
				cronLogger.Info("stale generations swept", zap.Int64("count", swept))
			}
			return nil
		},
	})
}
