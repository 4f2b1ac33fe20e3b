package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gdkp/gdkp-backend/api/controllers"
	"github.com/gdkp/gdkp-backend/api/routes"
	"github.com/gdkp/gdkp-backend/internal/drafts"
	"github.com/gdkp/gdkp-backend/internal/extraction"
	"github.com/gdkp/gdkp-backend/internal/media"
	product "github.com/gdkp/gdkp-backend/internal/products"
	"github.com/gdkp/gdkp-backend/internal/scan"
	"github.com/gdkp/gdkp-backend/pkg/config"
	"github.com/gdkp/gdkp-backend/pkg/db"
	"github.com/gdkp/gdkp-backend/pkg/exifloc"
	"github.com/gdkp/gdkp-backend/pkg/imaging"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/maps"
	"github.com/gdkp/gdkp-backend/pkg/metrics"
	"github.com/gdkp/gdkp-backend/pkg/migrate"
	"github.com/gdkp/gdkp-backend/pkg/ocrspace"
	"github.com/gdkp/gdkp-backend/pkg/redis"
	"github.com/gdkp/gdkp-backend/pkg/storage/gcs"
	"github.com/gdkp/gdkp-backend/pkg/vision"
)

const shutdownTimeout = 15 * time.Second

type placeService interface {
	controllers.PlacesClient
	Nearby(ctx context.Context, lat, lng, radius float64) (*maps.Place, error)
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootCtx := logg.WithField(context.Background(), "env", cfg.App.Env)

	dbClient, err := db.New(bootCtx, cfg.DB, db.Options{UseSQLite: cfg.FeatureFlags.UseSQLite}, logg)
	requireResource(bootCtx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	requireResource(bootCtx, logg, "migrations", migrate.MaybeRun(bootCtx, cfg, logg, dbClient))

	readiness := map[string]controllers.Pinger{"database": dbClient}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(bootCtx, cfg.Redis, logg)
		requireResource(bootCtx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		readiness["redis"] = redisClient
	} else {
		logg.Warn(bootCtx, "redis not configured; drafts disabled")
		readiness["redis"] = nil
	}

	var gcsClient *gcs.Client
	if cfg.GCS.BucketName != "" {
		gcsClient, err = gcs.NewClient(bootCtx, cfg.GCS, cfg.GCP, logg)
		requireResource(bootCtx, logg, "gcs", err)
		defer gcsClient.Close()
		readiness["storage"] = gcsClient
	} else {
		logg.Warn(bootCtx, "gcs bucket not configured; uploads and scans disabled")
		readiness["storage"] = nil
	}

	var places placeService
	if cfg.GoogleMaps.APIKey != "" {
		mapsClient, err := maps.NewClient(cfg.GoogleMaps.APIKey)
		requireResource(bootCtx, logg, "google maps", err)
		places = mapsClient
	}

	visionClient, err := vision.New(bootCtx, cfg.Vision)
	requireResource(bootCtx, logg, "vision client", err)
	logg.Info(logg.WithField(bootCtx, "provider", visionClient.Provider()), "vision provider ready")

	ocrClient := ocrspace.NewClient(ocrspace.Options{
		APIKey:   cfg.OCR.APIKey,
		Endpoint: cfg.OCR.Endpoint,
		Language: cfg.OCR.Language,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.NewPipelineMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	compression := imaging.Options{
		MaxDimension: cfg.Media.ImageMaxSide,
		MaxBytes:     cfg.Media.ImageMaxBytes,
		Quality:      cfg.Media.ImageQuality,
	}

	extractionService, err := extraction.NewService(visionClient, ocrClient, pipelineMetrics, logg, extraction.Options{
		Compression:     compression,
		DefaultCurrency: cfg.Media.DefaultCurrency,
		MaxImageBytes:   cfg.Media.MaxUploadBytes(),
	})
	requireResource(bootCtx, logg, "extraction service", err)

	productService, err := product.NewService(product.NewRepository(dbClient.DB()), dbClient, pipelineMetrics, logg, product.Options{
		DefaultCurrency: cfg.Media.DefaultCurrency,
		ResultLimit:     cfg.Catalog.ResultLimit,
	})
	requireResource(bootCtx, logg, "product service", err)

	var draftService drafts.Service
	if redisClient != nil {
		draftService, err = drafts.NewService(redisClient, productService, logg, drafts.Options{
			TTL:             cfg.Drafts.TTL,
			DefaultCurrency: cfg.Media.DefaultCurrency,
		})
		requireResource(bootCtx, logg, "draft service", err)
	}

	var uploadService media.Service
	var scanService scan.Service
	if gcsClient != nil {
		uploadService, err = media.NewService(gcsClient, exifloc.Default(), places, pipelineMetrics, logg, media.Options{
			NearbyRadius: cfg.GoogleMaps.NearbyRadius,
			Compression:  compression,
		})
		requireResource(bootCtx, logg, "upload service", err)

		scanService, err = scan.NewService(uploadService, extractionService, draftService, logg, cfg.Media.DefaultCurrency)
		requireResource(bootCtx, logg, "scan service", err)
	}

	var placesClient controllers.PlacesClient
	if places != nil {
		placesClient = places
	}

	handler := routes.NewRouter(routes.Deps{
		Config:     cfg,
		Logger:     logg,
		Gatherer:   registry,
		HTTP:       httpMetrics,
		Readiness:  readiness,
		Extraction: extractionService,
		Uploads:    uploadService,
		Scans:      scanService,
		Products:   productService,
		Drafts:     draftService,
		Places:     placesClient,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(bootCtx, map[string]any{"addr": addr})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
	logg.Info(ctx, "api server stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", resource), "failed to initialize resource", err)
	os.Exit(1)
}
