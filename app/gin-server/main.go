package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yoockh/medivoice/config"
	"github.com/yoockh/medivoice/internal/api/handlers"
	"github.com/yoockh/medivoice/internal/api/middleware"
	"github.com/yoockh/medivoice/internal/api/routes"
	"github.com/yoockh/medivoice/internal/cache"
	"github.com/yoockh/medivoice/internal/logger"
	"github.com/yoockh/medivoice/internal/providers/llm"
	"github.com/yoockh/medivoice/internal/providers/vapi"
	mongorepo "github.com/yoockh/medivoice/internal/repositories/mongo"
	pgrepo "github.com/yoockh/medivoice/internal/repositories/postgres"
	"github.com/yoockh/medivoice/internal/services"
	"github.com/yoockh/medivoice/internal/storage"
	"github.com/yoockh/medivoice/internal/voice"
	"github.com/yoockh/medivoice/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Warn("MongoDB index setup failed")
	}
	log.Info("MongoDB connected")

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.MigratePostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL migrate error")
	}
	log.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	vapiCfg, err := config.LoadVapi()
	if err != nil {
		log.WithError(err).Fatal("Vapi config error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := config.RedisClient
	sessionSvc := services.NewSessionService(
		mongorepo.NewSessionRepo(config.MongoDatabase()),
		cache.NewRedisCache(rdb),
		10*time.Minute,
		log,
	)
	transcriptSvc := services.NewTranscriptService(pgrepo.NewTranscriptRepo(config.PostgresDB))

	gemini, err := llm.NewVertexGemini(ctx, llm.VertexOptions{
		ProjectID: os.Getenv("GCP_PROJECT_ID"),
		Location:  envOr("GCP_LOCATION", "us-central1"),
		Model:     os.Getenv("REPORT_MODEL"),
		System:    services.ReportSystemPrompt,
		JSON:      true,
	})
	if err != nil {
		log.WithError(err).Fatal("Vertex AI init error")
	}
	defer gemini.Close()

	var archive storage.Uploader
	if bucket := os.Getenv("ARCHIVE_BUCKET"); bucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, bucket)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		defer gcs.Close()
		archive = gcs
	}

	pool := &workers.ReportWorkerPool{
		Redis:          rdb,
		Reports:        services.NewReportService(sessionSvc, transcriptSvc, gemini),
		Archive:        archive,
		NumWorkers:     envInt("REPORT_WORKERS", 2),
		Logger:         log,
		ConsumerPrefix: envOr("HOSTNAME", "medivoice"),
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("report workers start error")
	}

	bus := vapi.NewRedisBus(rdb)
	vapiClient, err := vapi.NewClient(vapi.Options{
		APIKey:        vapiCfg.APIKey,
		BaseURL:       vapiCfg.BaseURL,
		ServerURL:     vapiCfg.ServerURL,
		WebhookSecret: vapiCfg.WebhookSecret,
		StartTimeout:  vapiCfg.StartTimeout,
		Logger:        log,
	}, bus)
	if err != nil {
		log.WithError(err).Fatal("Vapi client init error")
	}

	callSvc := services.NewCallService(services.CallServiceDeps{
		Sessions:    sessionSvc,
		Transcripts: transcriptSvc,
		Reports:     &workers.RedisReportQueue{Redis: rdb},
		Client:      vapiClient,
		Defaults:    voice.DefaultCallDefaults(),
		Logger:      log,
	})

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Session:       handlers.NewSessionHandler(sessionSvc, transcriptSvc, log),
		Webhook:       handlers.NewWebhookHandler(bus, log),
		WS:            handlers.NewAgentWSHandler(callSvc, sessionSvc, rdb, log),
		WebhookSecret: vapiCfg.WebhookSecret,
	})

	srv := &http.Server{
		Addr:    ":" + envOr("PORT", "8080"),
		Handler: r,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	callSvc.Shutdown(shutdownCtx)
	_ = rdb.Close()
	_ = config.MongoClient.Disconnect(shutdownCtx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
