// The cron binary runs one reminder-and-cleanup pass and exits. It is meant
// to be invoked from an external crontab on a fixed cadence, e.g. hourly:
//
//	0 * * * * /usr/local/bin/taskflow-cron --config /etc/taskflow/config.yml
//
// The exit status is non-zero only on catastrophic failure (unusable config,
// data directory or log pipeline); zero pending tasks is a normal run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/taskflow/core/internal/config"
	"github.com/taskflow/core/internal/modules/notifier"
	"github.com/taskflow/core/internal/modules/reminder"
	"github.com/taskflow/core/internal/modules/subscription"
	"github.com/taskflow/core/internal/modules/tasks"
	"github.com/taskflow/core/internal/pkg/applog"
	"github.com/taskflow/core/internal/pkg/mail"
	"github.com/taskflow/core/internal/store"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cron: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := applog.NewLogger(cfg.Paths.Logs, cfg.RotateSize(), cfg.RotateKeep())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	sender, err := mail.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("mail: %w", err)
	}

	nt := notifier.New(st, sender, logger, cfg.BaseURL)
	taskSvc := tasks.NewService(st, logger)
	subSvc := subscription.NewService(st, nt, logger)
	runner := reminder.NewRunner(taskSvc, subSvc, nt, logger,
		cfg.Paths.Logs, cfg.RotateSize(), cfg.RotateKeep())

	if err := runner.Run(context.Background()); err != nil {
		logger.Error("reminder run failed", zap.Error(err))
		return err
	}
	return nil
}
