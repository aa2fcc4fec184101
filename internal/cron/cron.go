// Package cron runs gemgram's background maintenance jobs, currently the
// SQLite WAL checkpoint and the periodic metrics report.
package cron

import "context"

// Job is a periodic maintenance task. Modules contribute jobs by registering
// them as services under the "cron.job." prefix; the app wires everything it
// finds there into the scheduler.
type Job interface {
	// Name identifies the job in logs and must be unique per scheduler.
	Name() string

	// Schedule returns a 5-field cron expression, e.g. "*/10 * * * *".
	Schedule() string

	// Run executes one tick. Long-running jobs should honor ctx, which is
	// canceled when the scheduler shuts down.
	Run(ctx context.Context) error
}
