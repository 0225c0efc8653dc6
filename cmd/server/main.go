package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/courtflow/media-transcription/internal/cleanup"
	"github.com/courtflow/media-transcription/internal/config"
	"github.com/courtflow/media-transcription/internal/engine"
	"github.com/courtflow/media-transcription/internal/handlers"
	"github.com/courtflow/media-transcription/internal/pipeline"
	"github.com/courtflow/media-transcription/internal/primarystore"
	"github.com/courtflow/media-transcription/internal/queue"
	"github.com/courtflow/media-transcription/internal/record"
	"github.com/courtflow/media-transcription/internal/staging"
)

// variantConfidenceThreshold is where the explore-variants policy stops:
// a transcript at or above this mean confidence is accepted as-is.
const variantConfidenceThreshold = 0.85

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	log := logrus.New()
	if os.Getenv("APP_ENV") == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx := context.Background()

	// Record store
	db, err := record.Open(cfg.Storage.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to open record store")
	}
	defer db.Close()
	repo := record.NewRepository(db)

	// A previous run that died mid-job leaves records in processing with
	// no worker attached; fail them now so they can be re-triggered.
	n, err := repo.ResetStaleProcessing("transcription interrupted by service restart", time.Now())
	if err != nil {
		log.WithError(err).Fatal("failed to reset interrupted transcriptions")
	}
	if n > 0 {
		log.WithField("count", n).Warn("reset interrupted transcriptions to failed")
	}

	// Primary object store
	store, err := primarystore.New(ctx, primarystore.Config{
		Region:       cfg.PrimaryStore.Region,
		Bucket:       cfg.PrimaryStore.Bucket,
		AccessKey:    cfg.PrimaryStore.AccessKey,
		SecretKey:    cfg.PrimaryStore.SecretKey,
		Endpoint:     cfg.PrimaryStore.Endpoint,
		SignedExpiry: cfg.SignedURLExpiry(),
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize primary store")
	}

	// Staging bridge
	gcs, err := staging.NewGCSClient(ctx, cfg.Staging.CredentialsFile)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize staging client")
	}
	bridge := staging.NewBridge(gcs, cfg.Staging.Bucket, log)

	// Speech engine
	var speechOpts []option.ClientOption
	if cfg.Staging.CredentialsFile != "" {
		speechOpts = append(speechOpts, option.WithCredentialsFile(cfg.Staging.CredentialsFile))
	}
	speechSvc, err := speech.NewService(ctx, speechOpts...)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize speech service")
	}
	adapter := engine.NewAdapter(
		speechSvc,
		time.Duration(cfg.Engine.PollIntervalSeconds)*time.Second,
		time.Duration(cfg.Engine.PollTimeoutMinutes)*time.Minute,
		log,
	)
	variants := engine.NewVariantRunner(adapter, variantConfidenceThreshold, log)

	// Pipeline and workers
	processor := pipeline.NewProcessor(repo, store, bridge, adapter, variants, cfg.RetentionWindow(), log)
	pool := queue.NewWorkerPool(cfg.Workers.Count, processor, log)
	pool.Start()

	// Retention sweep
	retentionJob := cleanup.NewJob(repo, store, cfg.RetentionWindow(), log)
	scheduler := cleanup.NewScheduler(retentionJob,
		time.Duration(cfg.Retention.SweepIntervalHours)*time.Hour, log)
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP surface
	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxFileSize()) + 1024*1024, // payload ceiling + form overhead
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Uploaded-By",
	}))

	uploadHandler := handlers.NewUploadHandler(repo, store, cfg.MaxFileSize(), log)
	transcribeHandler := handlers.NewTranscribeHandler(repo, pool, cfg.Engine.Language, log)
	mediaHandler := handlers.NewMediaHandler(repo, store, log)
	cleanupHandler := handlers.NewCleanupHandler(retentionJob, log)
	statusStream := handlers.NewStatusStreamHandler(repo, log)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	app.Post("/media", uploadHandler.Handle)
	app.Get("/media", mediaHandler.List)
	app.Get("/media/:id", mediaHandler.Get)
	app.Patch("/media/:id", mediaHandler.Update)
	app.Delete("/media/:id", mediaHandler.Delete)
	app.Post("/media/:id/transcribe", transcribeHandler.Handle)
	app.Post("/media/:id/retranscribe", transcribeHandler.Handle)
	app.Post("/cleanup/run", cleanupHandler.Handle)
	app.Get("/ws/media/:id/status", websocket.New(statusStream.Handle))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("server starting")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("shutting down gracefully")
		app.Shutdown()
		pool.Stop()
	}()

	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}
