// -----------------------------------------------------------------------
// Application Wiring - constructs every service with explicit
// dependencies and tears them down in reverse order
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/common"
	"github.com/vellumdocs/vellum/internal/handlers"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
	"github.com/vellumdocs/vellum/internal/processor"
	"github.com/vellumdocs/vellum/internal/services/events"
	"github.com/vellumdocs/vellum/internal/services/inspect"
	jobsvc "github.com/vellumdocs/vellum/internal/services/jobs"
	"github.com/vellumdocs/vellum/internal/services/report"
	"github.com/vellumdocs/vellum/internal/services/scheduler"
	"github.com/vellumdocs/vellum/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB         *badger.BadgerDB
	JobArchive interfaces.JobArchive

	// Services
	EventService     interfaces.EventService
	Registry         *processor.Registry
	Inspector        interfaces.ArtifactInspector
	JobService       interfaces.JobService
	ReportService    interfaces.ReportService
	SchedulerService interfaces.SchedulerService

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	DocumentHandler *handlers.DocumentHandler
	JobHandler      *handlers.JobHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if err := app.initScheduler(); err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	logger.Info().
		Str("processor", cfg.Processor.BaseURL).
		Str("storage", cfg.Storage.Badger.Path).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	db, err := badger.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.DB = db
	a.JobArchive = badger.NewJobArchive(db, a.Logger)

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)

	a.Registry = processor.NewRegistry()
	a.Registry.Register(processor.NewClient(&a.Config.Processor, a.Logger))

	backend, err := a.Registry.Default()
	if err != nil {
		return err
	}

	a.Inspector = inspect.NewInspector(a.Logger)

	a.JobService = jobsvc.NewService(jobsvc.Options{
		Processor: backend,
		Inspector: a.Inspector,
		Archive:   a.JobArchive,
		Events:    a.EventService,
		Policy: jobsvc.BackoffPolicy{
			Interval:    a.Config.Polling.Interval,
			Jitter:      a.Config.Polling.Jitter,
			MaxAttempts: a.Config.Polling.MaxAttempts,
		},
	}, a.Logger)

	a.ReportService = report.NewService(a.Logger)

	a.subscribeLifecycleLogging()

	a.Logger.Debug().
		Strs("processors", a.Registry.Names()).
		Msg("Services initialized")

	return nil
}

// subscribeLifecycleLogging records job lifecycle transitions on the event
// bus so the audit trail exists even with no websocket client connected.
func (a *App) subscribeLifecycleLogging() {
	lifecycle := []interfaces.EventType{
		interfaces.EventJobCreated,
		interfaces.EventJobCompleted,
		interfaces.EventJobFailed,
		interfaces.EventJobRetried,
		interfaces.EventJobsCleared,
	}

	for _, eventType := range lifecycle {
		et := eventType
		err := a.EventService.Subscribe(et, func(ctx context.Context, event interfaces.Event) error {
			logEvent := a.Logger.Info().Str("event", string(et))
			if job, ok := event.Payload.(models.Job); ok {
				logEvent = logEvent.
					Str("job_id", job.ID).
					Str("filename", job.Filename).
					Str("status", string(job.Status))
				if job.Error != "" {
					logEvent = logEvent.Str("error", job.Error)
				}
			}
			logEvent.Msg("Job lifecycle event")
			return nil
		})
		if err != nil {
			a.Logger.Warn().Err(err).Str("event", string(et)).Msg("Lifecycle subscription failed")
		}
	}
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.JobService, a.Config, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.JobService, a.JobArchive, a.ReportService, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.JobService, a.Logger, &a.Config.WebSocket)
}

// initScheduler registers and starts the retention maintenance task
func (a *App) initScheduler() error {
	sched := scheduler.NewService(a.Logger)

	retention := a.Config.Retention
	err := sched.RegisterJob(
		"job-retention",
		retention.Schedule,
		"Purge expired jobs from memory and the archive",
		func() error {
			svc, ok := a.JobService.(*jobsvc.Service)
			if ok {
				purged := svc.PurgeExpiredJobs(retention)
				if purged > 0 {
					a.Logger.Info().Int("purged", purged).Msg("Purged expired in-memory jobs")
				}
			}

			if retention.ArchiveMaxAge > 0 {
				cutoff := time.Now().Add(-retention.ArchiveMaxAge)
				deleted, err := a.JobArchive.PurgeArchivedBefore(context.Background(), cutoff)
				if err != nil {
					return fmt.Errorf("archive purge failed: %w", err)
				}
				if deleted > 0 {
					a.Logger.Info().Int("deleted", deleted).Msg("Purged expired archived jobs")
				}
			}
			return nil
		},
	)
	if err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return err
	}

	a.SchedulerService = sched
	return nil
}

// Close shuts down all services in reverse dependency order
func (a *App) Close() {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler stop failed")
		}
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if a.JobService != nil {
		a.JobService.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Event service close failed")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Database close failed")
		}
	}

	a.Logger.Info().Msg("Application shut down")
}
