// Package reminder is the scheduled entry point: it rotates logs, dispatches
// reminder emails for pending tasks, and cleans up expired data. The same
// runner backs the one-shot cron binary and the in-process scheduler.
package reminder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/core/internal/modules/notifier"
	"github.com/taskflow/core/internal/modules/subscription"
	"github.com/taskflow/core/internal/modules/tasks"
	"github.com/taskflow/core/internal/pkg/applog"
	"github.com/taskflow/core/internal/pkg/logrotate"
)

// rotatedLogMaxAge is how long archived log generations are kept around.
const rotatedLogMaxAge = 30 * 24 * time.Hour

// Runner executes one reminder-and-cleanup pass.
type Runner struct {
	tasks      *tasks.Service
	subs       *subscription.Service
	notifier   *notifier.Notifier
	logger     *zap.Logger
	logDir     string
	rotateSize int64
	rotateKeep int
	out        io.Writer
}

func NewRunner(
	taskSvc *tasks.Service,
	subSvc *subscription.Service,
	nt *notifier.Notifier,
	logger *zap.Logger,
	logDir string,
	rotateSize int64,
	rotateKeep int,
) *Runner {
	return &Runner{
		tasks:      taskSvc,
		subs:       subSvc,
		notifier:   nt,
		logger:     logger,
		logDir:     logDir,
		rotateSize: rotateSize,
		rotateKeep: rotateKeep,
		out:        os.Stdout,
	}
}

// Run performs a full pass. The dispatch phase is isolated so that a failure
// there never skips the cleanup phase; zero pending tasks is a success, not
// an error. The returned error is reserved for catastrophic conditions.
func (r *Runner) Run(ctx context.Context) error {
	started := time.Now()
	fmt.Fprintf(r.out, "reminder run started at %s\n", started.Format("2006-01-02 15:04:05"))
	r.logger.Info("reminder run started")

	r.rotateLogs()
	r.dispatch(ctx)
	r.cleanup()

	r.printStatus()
	fmt.Fprintf(r.out, "reminder run completed in %s\n", time.Since(started).Round(time.Millisecond))
	r.logger.Info("reminder run completed", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (r *Runner) rotateLogs() {
	for _, name := range []string{applog.SystemLog, applog.EmailLog} {
		path := filepath.Join(r.logDir, name)
		if err := logrotate.Rotate(path, r.rotateSize, r.rotateKeep); err != nil {
			r.logger.Warn("log rotation failed", zap.String("log", path), zap.Error(err))
		}
	}
}

func (r *Runner) dispatch(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Fprintf(r.out, "error sending task reminders: %v\n", rec)
			r.logger.Error("reminder dispatch panicked", zap.Any("panic", rec))
		}
	}()

	pending := r.tasks.Pending()
	subscribers := r.subs.ListVerified()

	if len(pending) == 0 {
		fmt.Fprintln(r.out, "no pending tasks found, no emails sent")
		r.logger.Info("no pending tasks found, no emails sent")
		return
	}

	sent, failed := r.notifier.BroadcastReminders(subscribers, pending)
	fmt.Fprintf(r.out, "task reminders sent to %d subscribers (%d failed)\n", sent, failed)
	fmt.Fprintf(r.out, "pending tasks: %d\n", len(pending))
	for _, t := range pending {
		fmt.Fprintf(r.out, "- %s\n", t.Name)
	}
}

func (r *Runner) cleanup() {
	removedTokens := r.notifier.SweepExpiredTokens()
	if removedTokens > 0 {
		fmt.Fprintf(r.out, "removed %d expired unsubscribe tokens\n", removedTokens)
	}

	purged, err := logrotate.PurgeOlderThan(r.logDir, rotatedLogMaxAge)
	if err != nil {
		r.logger.Warn("rotated log purge failed", zap.Error(err))
	} else if purged > 0 {
		fmt.Fprintf(r.out, "removed %d old rotated log files\n", purged)
		r.logger.Info("purged old rotated logs", zap.Int("removed", purged))
	}
}

func (r *Runner) printStatus() {
	all := r.tasks.All()
	pending := r.tasks.Pending()
	fmt.Fprintln(r.out, "=== current system status ===")
	fmt.Fprintf(r.out, "total tasks: %d\n", len(all))
	fmt.Fprintf(r.out, "pending tasks: %d\n", len(pending))
	fmt.Fprintf(r.out, "verified subscribers: %d\n", len(r.subs.ListVerified()))
	fmt.Fprintf(r.out, "pending verifications: %d\n", len(r.subs.ListPending()))
}
