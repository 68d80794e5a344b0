package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mediagateway/docs"
	"mediagateway/internal/config"
	"mediagateway/internal/database"
	"mediagateway/internal/database/migration"
	handlers "mediagateway/internal/http/handler"
	"mediagateway/internal/http/middleware"
	"mediagateway/internal/logger"
	"mediagateway/internal/otel"
	"mediagateway/internal/repository"
	"mediagateway/internal/repository/postgres"
	"mediagateway/internal/service"
	"mediagateway/internal/storage"
)

// @title Media Transfer Gateway
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host, cfg.Policies); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	transferMetrics, err := service.NewMetrics(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register transfer metrics")
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register http metrics")
	}

	// Initialize resolver and services
	resolver := repository.WithDefaults(postgres.NewPolicyPostgres(db), cfg.Policies)
	streamer := service.NewDownloadStreamer(objStore, service.DownloadOptions{
		MetadataTimeout: cfg.Gateway.MetadataTimeout,
		ReadTimeout:     cfg.Gateway.ReadTimeout,
		IdleTimeout:     cfg.Gateway.IdleTimeout,
		CacheControl:    cfg.Gateway.CacheControl,
		Logger:          log,
		Metrics:         transferMetrics,
	})
	receiver := service.NewUploadReceiver(objStore, service.UploadOptions{
		TempDir:    cfg.Gateway.TempDir,
		PutTimeout: cfg.Gateway.PutTimeout,
		Logger:     log,
		Metrics:    transferMetrics,
	})
	mediaSvc := service.NewMediaService(resolver, objStore, streamer, receiver, service.MediaOptions{
		ResolveTimeout: cfg.Gateway.MetadataTimeout,
		DeleteTimeout:  cfg.Gateway.ReadTimeout,
		Logger:         log,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		StreamRequestBody:     true,
		BodyLimit:             int(cfg.Gateway.MaxRequestBody),
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID(log))
	// Structured request logs
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, handlers.Deps{
		DB:       db,
		Store:    objStore,
		Media:    mediaSvc,
		Gatherer: reg,
	})

	// Swagger UI with dynamic host and scheme
	docs.SwaggerInfo.Host = cfg.AppHost
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("bucket", cfg.MinIO.Bucket).Msg("media gateway listening")

	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}
