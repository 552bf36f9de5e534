// Package crontest provides fakes for exercising cron jobs.
package crontest

import (
	"context"
	"sync/atomic"

	"github.com/flemzord/tgrelay/internal/cron"
)

// Job is a cron.Job whose behaviour is set per test. Every completed Run
// is reported on Done when the channel is non-nil.
type Job struct {
	ID   string
	Expr string
	Fn   func(ctx context.Context) error
	Done chan<- error

	runs atomic.Int32
}

var _ cron.Job = (*Job)(nil)

func (j *Job) Name() string     { return j.ID }
func (j *Job) Schedule() string { return j.Expr }

func (j *Job) Run(ctx context.Context) error {
	j.runs.Add(1)
	var err error
	if j.Fn != nil {
		err = j.Fn(ctx)
	}
	if j.Done != nil {
		j.Done <- err
	}
	return err
}

// Runs reports how many times Run was called.
func (j *Job) Runs() int { return int(j.runs.Load()) }

// Pruner is a cron.Pruner that returns fixed results.
type Pruner struct {
	Removed int
	Err     error

	calls atomic.Int32
}

var _ cron.Pruner = (*Pruner)(nil)

func (p *Pruner) Prune(ctx context.Context) (int, error) {
	p.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.Removed, p.Err
}

// Calls reports how many times Prune was called.
func (p *Pruner) Calls() int { return int(p.calls.Load()) }
