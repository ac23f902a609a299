// Package main provides the entrypoint for the route maps report worker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/routemaps/routemaps/internal/config"
	"github.com/routemaps/routemaps/internal/database"
	"github.com/routemaps/routemaps/internal/mapview"
	"github.com/routemaps/routemaps/internal/pdfreport"
	"github.com/routemaps/routemaps/internal/pipeline"
	"github.com/routemaps/routemaps/internal/publish"
	"github.com/routemaps/routemaps/internal/routeplan"
	"github.com/routemaps/routemaps/internal/telematics"
	"github.com/routemaps/routemaps/internal/telemetry"
	"github.com/routemaps/routemaps/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "routemaps-worker"

	once := flag.Bool("once", false, "run one batch immediately and exit")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting route maps report worker")

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Name).
		Msg("database connected")

	plans := routeplan.NewPostgresRepository(pool)
	tracks := telematics.NewPostgresRepository(pool)
	renderer := mapview.NewRenderer(cfg.Map, cfg.Report.StagingDir, log)
	builder := pdfreport.NewAssembler(
		pdfreport.ChromeStarter(cfg.Report.SettleDelay),
		cfg.Report.StagingDir,
		log,
	)

	var publisher pipeline.Publisher
	if cfg.Publisher.Endpoint != "" {
		publisher = publish.NewHTTPPublisher(cfg.Publisher.Endpoint, log)
		log.Info().Str("endpoint", cfg.Publisher.Endpoint).Msg("publisher configured")
	} else {
		log.Warn().Msg("no publish endpoint configured, reports stay local")
	}

	batch := pipeline.New(pipeline.Config{
		SiteID:     cfg.Site.ID,
		Routes:     plans,
		Plans:      plans,
		Telematics: tracks,
		Renderer:   renderer,
		Builder:    builder,
		Publisher:  publisher,
		Logger:     log,
		Tracer:     tp.Tracer,
	})

	if *once || cfg.PubSub.Subscription == "" {
		if err := runOnce(ctx, cfg, batch, log); err != nil {
			log.Fatal().Err(err).Msg("report batch failed")
		}
		return
	}

	runSubscribed(ctx, cfg, batch, log)
}

func runOnce(ctx context.Context, cfg config.Config, batch *pipeline.Pipeline, log zerolog.Logger) error {
	day := cfg.ReportDay(time.Now())
	summary, err := batch.Run(ctx, day)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoRoutes) {
			return fmt.Errorf("nothing to report for site %d on %s: %w", cfg.Site.ID, day.Format("2006-01-02"), err)
		}
		return err
	}

	log.Info().
		Str("run_id", summary.RunID).
		Str("report", summary.ReportPath).
		Msg("report batch finished")
	return nil
}

func runSubscribed(ctx context.Context, cfg config.Config, batch *pipeline.Pipeline, log zerolog.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		Runner:           batch,
		DefaultDay:       func() time.Time { return cfg.ReportDay(time.Now()) },
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer handler.Close()

	// Health endpoint for the container platform.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":%q}`, Version)
	})
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Info().Str("port", port).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go func() {
		if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("pubsub handler stopped")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("shutting down worker")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
