package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mid "SigPulse/internal/middleware"
	"SigPulse/internal/service/hub"
	"SigPulse/internal/usecase"
	pkgch "SigPulse/pkg/clickhouse"
	"SigPulse/pkg/config"
	xhttp "SigPulse/pkg/http"
	pkgkafka "SigPulse/pkg/kafka"
	applogger "SigPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle: the HTTP server, the
// broadcast hub, the fetch scheduler, the ingest pipeline, and the
// optional Kafka consumer.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	handler    xhttp.Handler
	hub        *hub.Hub
	sched      *usecase.Scheduler
	pipe       *mid.IngestPipeline
	proc       *usecase.SignalProcessor
	consumer   *pkgkafka.Consumer
	kh         *usecase.KafkaSignalsHandler
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	h *hub.Hub,
	sched *usecase.Scheduler,
	pipe *mid.IngestPipeline,
	proc *usecase.SignalProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		logger:   logger,
		handler:  handler,
		hub:      h,
		sched:    sched,
		pipe:     pipe,
		proc:     proc,
		consumer: consumer,
		kh:       kh,
		chClient: chClient,
	}
}

// Run starts every component and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	a.pipe.Start(ctx)
	go a.hub.Run(ctx)
	go a.sched.Run(ctx)
	a.logger.Info("scheduler started",
		applogger.Duration("interval", a.cfg.Scheduler.Interval),
		applogger.Duration("cycle_timeout", a.cfg.Scheduler.CycleTimeout),
	)

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	// canceling the run context already stopped the scheduler and closed
	// the hub's connections

	a.pipe.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// closes the egress publisher and the store
	if a.proc != nil {
		a.proc.Close()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
