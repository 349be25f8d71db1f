package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/docuflat/docuflat-backend/api/routes"
	"github.com/docuflat/docuflat-backend/internal/geometry"
	"github.com/docuflat/docuflat-backend/internal/scans"
	"github.com/docuflat/docuflat-backend/pkg/config"
	"github.com/docuflat/docuflat-backend/pkg/db"
	"github.com/docuflat/docuflat-backend/pkg/logger"
	"github.com/docuflat/docuflat-backend/pkg/metrics"
	"github.com/docuflat/docuflat-backend/pkg/migrate"
	"github.com/docuflat/docuflat-backend/pkg/pubsub"
	"github.com/docuflat/docuflat-backend/pkg/redis"
	"github.com/docuflat/docuflat-backend/pkg/storage"
	"github.com/docuflat/docuflat-backend/pkg/storage/gcs"
	"github.com/docuflat/docuflat-backend/pkg/storage/local"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var (
		store       storage.Store
		storePinger routes.Pinger
		uploadsDir  string
	)
	switch strings.ToLower(cfg.Storage.Backend) {
	case config.StorageBackendGCS:
		gcsStore, err := gcs.NewStore(context.Background(), cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap gcs storage", err)
			os.Exit(1)
		}
		store, storePinger = gcsStore, gcsStore
	default:
		localStore, err := local.New(cfg.Storage.LocalDir)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap local storage", err)
			os.Exit(1)
		}
		store, storePinger = localStore, localStore
		uploadsDir = localStore.Dir()
	}

	engine, err := geometry.NewExecEngine(cfg.Geometry, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap geometry engine", err)
		os.Exit(1)
	}

	var events pubsub.EventPublisher
	if cfg.GCP.ProjectID != "" && cfg.PubSub.DocumentsTopic != "" {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		events = psClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	normalizer, err := scans.NewNormalizer(cfg.Uploads.MaxUploadBytes)
	if err != nil {
		logg.Error(context.Background(), "failed to create normalizer", err)
		os.Exit(1)
	}

	scanService, err := scans.NewService(scans.Config{
		Repo:       scans.NewRepository(dbClient.DB()),
		Store:      store,
		Engine:     engine,
		Normalizer: normalizer,
		Metrics:    metrics.NewPipelineMetrics(registry),
		Events:     events,
		Logger:     logg,
		TempDir:    cfg.Uploads.TempDir,
		MaxBytes:   cfg.Uploads.MaxUploadBytes,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scan service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"storage": cfg.Storage.Backend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DBPinger:        dbClient,
			RedisClient:     redisClient,
			StoragePinger:   storePinger,
			ScanService:     scanService,
			Registry:        registry,
			LocalUploadsDir: uploadsDir,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
