// Package cron runs periodic maintenance jobs, such as pruning expired
// dedup records, on 5-field cron schedules.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs. Names are unique per scheduler.
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "*/5 * * * *").
	Schedule() string

	// Run executes one tick. It should return promptly once ctx is done.
	Run(ctx context.Context) error
}
