package app

import (
	"context"

	pkgcron "github.com/taskflow/core/internal/pkg/cron"
)

// registerCronJobs wires the scheduled background jobs. Deployments driving
// the cron binary from an external crontab get the same pass through the
// same runner; running both merely repeats an idempotent cleanup.
func (a *App) registerCronJobs() {
	a.sched.Register(pkgcron.Job{
		Name:        "reminders",
		Description: "send pending-task reminders and clean up expired data",
		Interval:    a.cfg.Interval(),
		Fn: func(ctx context.Context) error {
			return a.runner.Run(ctx)
		},
	})
}
