package main

import (
	"context"
	"database/sql"
	"errors"
	"os/signal"
	"syscall"
	"time"

	_ "poolconnect/docs"
	"poolconnect/internal/config"
	"poolconnect/internal/device"
	"poolconnect/internal/engine"
	"poolconnect/internal/handlers"
	"poolconnect/internal/logger"
	"poolconnect/internal/repository"
	"poolconnect/internal/repository/db"
	"poolconnect/internal/server"
	"poolconnect/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load("configs", ".")
	if err != nil {
		logger.Get(logger.InfoLevel, logger.FormatConsole).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	conn, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	loc, err := cfg.TimeLocation()
	if err != nil {
		log.Fatalw("invalid scheduler timezone", "err", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// wire dependencies
	repos := repository.NewRepository(conn)
	board := device.NewSimulator(device.Config{
		AmbientC:      cfg.Device.AmbientC,
		WaterC:        cfg.Device.WaterC,
		BuzzerEnabled: cfg.Device.BuzzerEnabled,
	}, log.Named("device"))
	sched := engine.New(board,
		engine.WithLogger(log.Named("scheduler")),
		engine.WithEventSink(repos.EventRepo),
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithSunClock(sunClock(cfg, log)),
		engine.WithLocation(loc),
	)
	services := service.NewService(repos, sched, board, log)
	apiHandler := handlers.NewHandler(services, log, handlers.WithGatherer(reg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loadTimers(ctx, cfg, services, sched, log); err != nil {
		log.Fatalw("failed to load timers", "err", err)
	}

	srv := &server.Server{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		board.Run(gctx, cfg.Device.Tick)
		return nil
	})
	schedDone := make(chan struct{})
	g.Go(func() error {
		defer close(schedDone)
		sched.Run(gctx, cfg.Scheduler.Tick)
		return nil
	})
	g.Go(func() error {
		log.Infow("http_listening", "port", cfg.Port)
		return srv.Run(cfg.Port, apiHandler.InitRoutes())
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(srv, sched, schedDone, log)
	})

	if err := g.Wait(); err != nil {
		log.Errorw("controller stopped with error", "err", err)
	}
	log.Infow("controller stopped")
}

func openDB(cfg config.Config, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening database", "path", cfg.DB.Path)
	return db.InitDB(cfg.DB.Path)
}

func sunClock(cfg config.Config, log *logger.Logger) engine.SunClock {
	if !cfg.Location.Enabled {
		log.Infow("location disabled; using fixed sunrise/sunset")
		return engine.FixedSun{}
	}
	return engine.Almanac{Latitude: cfg.Location.Latitude, Longitude: cfg.Location.Longitude}
}

// loadTimers seeds an empty store and hands the persisted definitions to
// the scheduler before its first tick.
func loadTimers(ctx context.Context, cfg config.Config, services *service.Service, sched *engine.Scheduler, log *logger.Logger) error {
	if _, err := services.Timers.Seed(ctx, cfg.Timers.SeedFile); err != nil {
		log.Warnw("timer seed skipped", "path", cfg.Timers.SeedFile, "err", err)
	}
	defs, err := services.Timers.List(ctx)
	if err != nil {
		return err
	}
	sched.Load(defs)
	return nil
}

// shutdown drains HTTP first, waits for the tick loop to return, then
// releases every relay held by a timer.
func shutdown(srv *server.Server, sched *engine.Scheduler, schedDone <-chan struct{}, log *logger.Logger) error {
	log.Infow("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("server forced to shutdown", "err", err)
	}
	select {
	case <-schedDone:
	case <-ctx.Done():
		log.Errorw("scheduler loop still running at shutdown", "err", ctx.Err())
	}
	sched.Shutdown(ctx)
	return err
}
