package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pixload/darkroom/internal/config"
	"github.com/pixload/darkroom/internal/convert"
	httphandler "github.com/pixload/darkroom/internal/http"
	"github.com/pixload/darkroom/internal/imageproc"
	"github.com/pixload/darkroom/internal/metrics"
	"github.com/pixload/darkroom/internal/storage"
	"github.com/pixload/darkroom/internal/telemetry"
	"github.com/pixload/darkroom/internal/util"
	"github.com/pixload/darkroom/internal/vips"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg := config.Load()
	logger := newLogger(cfg)
	logger.Info().Str("service", cfg.ServiceName).Msg("starting darkroom server")

	if cfg.AuthToken == config.DefaultToken {
		logger.Warn().Msg("PIXLOAD_IMAGE_TOKEN is not set, using the development token")
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.ServiceName,
		Exporter:     cfg.TraceExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	// Initialize storage client
	store, err := storage.New(ctx, cfg.StorageProvider, storage.S3Options{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Bucket:          cfg.S3Bucket,
		PublicBaseURL:   cfg.PublicBaseURL,
		ForcePathStyle:  cfg.S3ForcePathStyle,
	}, cfg.LocalStorageDir)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.StorageProvider).Msg("failed to initialize storage client")
	}
	if store == nil {
		logger.Warn().Msg("no storage provider configured, uploads will report an error")
	} else {
		logger.Info().Str("provider", cfg.StorageProvider).Str("bucket", cfg.S3Bucket).Msg("storage ready")
	}

	// Initialize engine
	engine := imageproc.NewMagickEngine(cfg.MagickBinary, cfg.MaxConcurrentJobs, logger)
	versionCtx, cancelVersion := context.WithTimeout(ctx, 5*time.Second)
	engineVersion, err := engine.Version(versionCtx)
	cancelVersion()
	if err != nil {
		logger.Warn().Err(err).Str("binary", cfg.MagickBinary).Msg("could not query engine version")
	} else {
		logger.Info().Str("engine", engineVersion).Str("libvips", vips.Version()).Msg("engine ready")
	}

	fetcher := util.NewHTTPFetcher(util.FetcherOptions{
		AllowPrivate: cfg.FetchAllowPrivate,
		MaxFileSize:  cfg.MaxSourceBytes,
	})
	m := metrics.New()

	service := convert.NewService(convert.Options{
		ScratchDir:     cfg.ScratchDir,
		ThreadLimit:    cfg.MagickThreadLimit,
		SourceTimeout:  cfg.SourceFetchTimeout,
		OverlayTimeout: cfg.OverlayFetchTimeout,
	}, engine, store, fetcher, logger).
		WithProber(vips.NewProber()).
		WithMetrics(m)

	convertHandler := convert.NewHandler(service, convert.NewValidator(cfg.AuthToken), cfg.MaxFormMemory, logger)

	// Initialize HTTP server
	server := httphandler.NewServer(cfg, logger, convertHandler, m, engineVersion)

	requestTimeout := httphandler.RequestTimeout(cfg)
	httpServer := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        server.Routes(),
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   requestTimeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to flush traces")
	}

	logger.Info().Msg("server exited")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := log.Logger
	if cfg.LogFormat != "json" {
		logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level)
}
