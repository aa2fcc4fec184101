package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/avass/gemgram/internal/cron"
)

const defaultCheckpointSchedule = "*/10 * * * *"

// CheckpointJob periodically truncates the WAL file so it does not grow
// without bound on long-running deployments.
type CheckpointJob struct {
	DB     *sql.DB
	Logger *slog.Logger

	// ScheduleExpr overrides the default checkpoint cadence when set.
	ScheduleExpr string
}

var _ cron.Job = (*CheckpointJob)(nil)

func (j *CheckpointJob) Name() string { return "sqlite_checkpoint" }

func (j *CheckpointJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return defaultCheckpointSchedule
}

// Run issues a truncating WAL checkpoint. Busy is not an error: SQLite
// reports how much of the log it managed to move, and the next run picks
// up the rest.
func (j *CheckpointJob) Run(ctx context.Context) error {
	var busy, logFrames, checkpointed int
	row := j.DB.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err := row.Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("sqlite: wal checkpoint: %w", err)
	}

	if j.Logger != nil {
		j.Logger.Debug("wal checkpoint completed",
			"busy", busy,
			"log_frames", logFrames,
			"checkpointed", checkpointed,
		)
	}

	return nil
}
