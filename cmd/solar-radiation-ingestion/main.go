package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hashicorp/go-multierror"

	httpapi "github.com/i474232898/solar-radiation-ingestion/internal/api/http"
	"github.com/i474232898/solar-radiation-ingestion/internal/config"
	"github.com/i474232898/solar-radiation-ingestion/internal/logger"
	"github.com/i474232898/solar-radiation-ingestion/internal/pipeline"
	"github.com/i474232898/solar-radiation-ingestion/internal/scheduler"
	"github.com/i474232898/solar-radiation-ingestion/internal/solar/providers"
	"github.com/i474232898/solar-radiation-ingestion/internal/store"
)

const serviceName = "solar-radiation-ingestion"

func main() {
	once := flag.Bool("once", false, "run the pipeline once and exit")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.SetLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	db, err := store.Connect(connectCtx, cfg.Database.ConnectionString())
	cancel()
	if err != nil {
		logger.Fatalf("%v", err)
	}

	pg, err := store.NewPostgres(db, cfg.Database.Table)
	if err != nil {
		db.Close()
		logger.Fatalf("%v", err)
	}

	// Shared HTTP client for the upstream API.
	httpClient := &http.Client{
		Timeout: cfg.Source.HTTPTimeout,
	}
	fetcher := providers.NewEnsembleFetcher(httpClient, cfg.Source.BaseURL, cfg.Source.Location)

	registry := pipeline.NewRegistry()
	metrics := pipeline.NewMetrics(registry)
	pipe := pipeline.New(pg, fetcher, pg, metrics)

	if *once {
		os.Exit(runOnce(ctx, pipe, db, cfg.Schedule.RunTimeout))
	}

	history := store.NewMemoryHistory(cfg.HistoryMaxRuns, cfg.HistoryMaxAge)
	runner := scheduler.NewRunner(ctx, pipe, history, cfg.Schedule.RunTimeout)

	sched := scheduler.New(runner, cfg.Schedule.At, cfg.Schedule.Timezone, cfg.Schedule.RunOnStart)
	if err := sched.Start(ctx); err != nil {
		db.Close()
		logger.Fatalf("failed to start scheduler: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service:  serviceName,
		History:  history,
		Runner:   runner,
		Records:  pg,
		Gatherer: registry,
	})

	go func() {
		logger.Infof("listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Errorf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	// ctx is cancelled, so in-flight runs unwind promptly.
	runner.Wait()
	if err := db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		logger.Errorf("error during shutdown: %v", err)
	}
}

// runOnce executes a single run and returns the process exit code.
func runOnce(ctx context.Context, pipe *pipeline.Pipeline, db *sql.DB, timeout time.Duration) int {
	defer db.Close()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := pipe.Run(ctx)
	if err != nil {
		return 1
	}
	logger.Infof("run %s loaded %d of %d records", report.ID, report.Loaded, report.Fetched)
	return 0
}
