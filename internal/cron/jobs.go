package cron

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultPruneSchedule runs the dedup prune every five minutes.
const DefaultPruneSchedule = "*/5 * * * *"

// Pruner is the subset of dedup.Store needed by DedupPruneJob.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Counter receives the number of pruned records. prometheus.Counter
// satisfies it.
type Counter interface {
	Add(float64)
}

// DedupPruneJob removes expired idempotency records.
type DedupPruneJob struct {
	Store        Pruner
	Pruned       Counter // optional
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultPruneSchedule
}

var _ Job = (*DedupPruneJob)(nil)

// Name implements Job.
func (j *DedupPruneJob) Name() string { return "dedup_prune" }

// Schedule implements Job.
func (j *DedupPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultPruneSchedule
}

// Run prunes expired records once.
func (j *DedupPruneJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: dedup prune cancelled: %w", err)
	}

	n, err := j.Store.Prune(ctx)
	if err != nil {
		return fmt.Errorf("cron: dedup prune: %w", err)
	}
	if n > 0 {
		if j.Pruned != nil {
			j.Pruned.Add(float64(n))
		}
		if j.Logger != nil {
			j.Logger.Info("cron: pruned dedup records", "count", n)
		}
	}
	return nil
}
