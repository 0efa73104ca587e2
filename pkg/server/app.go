package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ZoneScan/internal/scheduler"
	"ZoneScan/pkg/config"
	xhttp "ZoneScan/pkg/http"
	pkgkafka "ZoneScan/pkg/kafka"
	applogger "ZoneScan/pkg/logger"
)

// Closers are released in order on shutdown.
type Closers []io.Closer

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	commands   pkgkafka.MessageHandler
	scheduler  *scheduler.Scheduler
	closers    Closers
}

// New creates a new App. consumer and sched are optional.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	commands pkgkafka.MessageHandler,
	sched *scheduler.Scheduler,
	closers Closers,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		consumer:   consumer,
		commands:   commands,
		scheduler:  sched,
		closers:    closers,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start launches the command consumer, the scheduler and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if a.consumer != nil && a.commands != nil {
		a.consumer.RegisterHandler(a.commands)
		if err := a.consumer.Start(ctx); err != nil {
			return err
		}
		a.log.Info("scan command consumer started", applogger.String("topic", a.commands.Topic()))
	}

	if a.scheduler != nil {
		if err := a.scheduler.Register(a.cfg.Scheduler.DailyScanCron); err != nil {
			return err
		}
		a.scheduler.Start()
		a.log.Info("daily scan scheduled",
			applogger.String("cron", a.cfg.Scheduler.DailyScanCron),
			applogger.Strings("time_frames", a.cfg.Scheduler.TimeFrames),
		)
	}

	return a.httpServer.Start()
}

// Shutdown stops intake first, then releases infrastructure clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
