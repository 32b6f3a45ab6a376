package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"mabletask/funnel/cache"
	"mabletask/funnel/config"
	"mabletask/funnel/database"
	"mabletask/funnel/handlers"
	"mabletask/funnel/logging"
	"mabletask/funnel/middleware"
	"mabletask/funnel/pipeline"
	"mabletask/funnel/scheduler"
	"mabletask/funnel/store"
)

func main() {
	eventsFile := flag.String("events", "", "run the pipeline once over a JSON-lines event file with in-memory stores and print the report")
	runOnce := flag.Bool("once", false, "run the pipeline once against the configured databases and exit")
	flag.Parse()

	// Load .env file at the very start
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error loading .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if *eventsFile != "" {
		if err := runOffline(*eventsFile, cfg.Policy(), logger); err != nil {
			logger.Error("offline run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// --- PostgreSQL (summaries, watermarks, prices, runs, users) ---
	dbClient, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to initialize PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	if err := dbClient.Migrate(); err != nil {
		logger.Error("failed to migrate PostgreSQL database", "error", err)
		os.Exit(1)
	}

	// --- ClickHouse (events, sessions, quarantine) ---
	chClient, err := database.NewClickHouseDB(cfg.ClickHouse)
	if err != nil {
		logger.Error("failed to initialize ClickHouse database", "error", err)
		os.Exit(1)
	}
	defer chClient.Close()

	eventStore := store.NewEventStore(chClient)
	sessionStore := store.NewSessionStore(chClient)
	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 30*time.Second)
	err = errors.Join(eventStore.EnsureSchema(setupCtx), sessionStore.EnsureSchema(setupCtx))
	cancelSetup()
	if err != nil {
		logger.Error("failed to prepare ClickHouse schema", "error", err)
		os.Exit(1)
	}

	summaryStore := store.NewSummaryStore(dbClient.DB)
	runStore := store.NewRunStore(dbClient.DB)
	priceStore := store.NewPriceStore(dbClient.DB)

	runner := pipeline.NewRunner(pipeline.Stores{
		Events:     eventStore,
		Sessions:   sessionStore,
		Summaries:  summaryStore,
		Watermarks: store.NewWatermarkStore(dbClient.DB),
		Prices:     priceStore,
		Runs:       runStore,
	}, cfg.Policy(), logger)

	if *runOnce {
		if _, err := runner.Run(context.Background()); err != nil {
			os.Exit(1)
		}
		return
	}

	var responseCache cache.Cacher = cache.Nop{}
	if cfg.UseRedisCache() {
		rc, err := cache.NewRedisCache(context.Background(), cfg.RedisURL, "funnel:")
		if err != nil {
			logger.Warn("redis unavailable, responses will not be cached", "error", err)
		} else {
			responseCache = rc
		}
	}
	defer responseCache.Close()

	if cfg.Schedule != "" {
		sched := scheduler.New(cfg.Schedule, runner, logger)
		if err := sched.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	if len(cfg.JWTSecret) == 0 {
		logger.Warn("JWT_SECRET_KEY is not set, analyst logins will fail")
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORSMiddleware(cfg.FrontendOrigin))

	secret := []byte(cfg.JWTSecret)
	router := &handlers.Router{
		Auth:   handlers.NewAuthHandlers(store.NewUserStore(dbClient.DB), secret, cfg.IsRelease()),
		Ingest: handlers.NewIngestHandlers(eventStore),
		Reports: &handlers.ReportHandlers{
			Summaries: summaryStore,
			Sessions:  sessionStore,
			Prices:    priceStore,
			Runs:      runStore,
			Cache:     responseCache,
			CacheTTL:  cfg.CacheTTL,
		},
		Pipeline:    handlers.NewPipelineHandlers(runner),
		APIKey:      cfg.AuthDefault,
		JWTSecret:   secret,
		IngestRPS:   cfg.IngestRPS,
		IngestBurst: cfg.IngestBurst,
	}
	router.Register(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("API server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exiting")
}

// runOffline runs one pipeline pass over an event file without any database
// and writes the report to stdout.
func runOffline(path string, policy pipeline.Policy, logger *slog.Logger) error {
	mem := store.NewMemoryStore()
	runner := pipeline.NewRunner(pipeline.Stores{
		Events:     store.JSONLSource{Path: path},
		Sessions:   mem,
		Summaries:  mem,
		Watermarks: mem,
		Prices:     mem,
		Runs:       mem,
	}, policy, logger)

	report, err := runner.Run(context.Background())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
