package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/parleyhq/parley/internal/transcript"
)

// PruneJob deletes turns older than the retention window.
type PruneJob struct {
	Pruner       transcript.Pruner
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string

	// Now overrides time.Now for testing.
	Now func() time.Time
}

var _ Job = (*PruneJob)(nil)

// Name implements Job.
func (j *PruneJob) Name() string { return "transcript_prune" }

// Schedule implements Job.
func (j *PruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run implements Job.
func (j *PruneJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	cutoff := now().UTC().Add(-j.MaxAge)

	removed, err := j.Pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.Logger.Info("pruned expired turns", "count", removed, "cutoff", cutoff)
	}
	return nil
}
