package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"nimbus-hq/ganymede/pkg/config"
)

// Retention prunes archived traces on a cron schedule.
type Retention struct {
	store    *Store
	days     int
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	now func() time.Time
}

// NewRetention builds a retention job from archive configuration.
func NewRetention(store *Store, cfg config.ArchiveConfig) *Retention {
	return &Retention{
		store:    store,
		days:     cfg.RetentionDays,
		schedule: cfg.PruneSchedule,
		logger:   slog.Default().With("component", "archive.retention"),
		now:      time.Now,
	}
}

// Start schedules the prune job. An empty schedule disables pruning.
func (r *Retention) Start() error {
	if r.schedule == "" {
		r.logger.Info("retention pruning disabled (no schedule)")
		return nil
	}

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error("retention prune failed", "error", err)
		}
	}); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("retention pruning scheduled",
		"schedule", r.schedule,
		"retention_days", r.days)
	return nil
}

// Stop halts the scheduler, waiting for a running prune to finish.
func (r *Retention) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce prunes traces past retention immediately and returns how many
// rows were removed.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().AddDate(0, 0, -r.days)
	removed, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.logger.Info("pruned archived traces", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
