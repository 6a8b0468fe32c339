package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskflow/core/internal/config"
	"github.com/taskflow/core/internal/middleware"
	"github.com/taskflow/core/internal/modules/notifier"
	"github.com/taskflow/core/internal/modules/reminder"
	"github.com/taskflow/core/internal/modules/subscription"
	"github.com/taskflow/core/internal/modules/tasks"
	pkgcron "github.com/taskflow/core/internal/pkg/cron"
	"github.com/taskflow/core/internal/pkg/mail"
	"github.com/taskflow/core/internal/store"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler

	taskSvc *tasks.Service
	subSvc  *subscription.Service
	runner  *reminder.Runner
}

// New initializes the application: store → services → routes → scheduler.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := st.EnsureDefaults(); err != nil {
		return nil, fmt.Errorf("store: seed defaults: %w", err)
	}

	sender, err := mail.FromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("mail: %w", err)
	}

	nt := notifier.New(st, sender, logger, cfg.BaseURL)
	taskSvc := tasks.NewService(st, logger)
	subSvc := subscription.NewService(st, nt, logger)
	runner := reminder.NewRunner(taskSvc, subSvc, nt, logger,
		cfg.Paths.Logs, cfg.RotateSize(), cfg.RotateKeep())

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New()

	app := &App{
		cfg:     cfg,
		router:  router,
		logger:  logger,
		cancel:  cancel,
		sched:   sched,
		taskSvc: taskSvc,
		subSvc:  subSvc,
		runner:  runner,
	}
	app.registerCronJobs()
	go sched.Start(ctx)
	app.registerRoutes()

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines.
func (a *App) Shutdown() { a.cancel() }
