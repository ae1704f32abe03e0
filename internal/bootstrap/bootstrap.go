// Package bootstrap wires the cut engine, media tools, storage and job
// service from configuration.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/firstcut/internal/config"
	"github.com/maauso/firstcut/internal/cut"
	"github.com/maauso/firstcut/internal/job"
	"github.com/maauso/firstcut/internal/media"
	"github.com/maauso/firstcut/internal/storage"
)

// Dependencies holds all initialized dependencies for the CLI and HTTP server.
type Dependencies struct {
	Settings   cut.Settings
	Engine     *cut.Engine
	CutService *job.CutService
	S3Enabled  bool
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Probe each media file once per process
	prober := media.NewCachedProber(media.NewFFprobe(cfg.FFprobePath))
	decoder := media.NewFFmpegDecoder(cfg.FFmpegPath, prober)
	engine := cut.NewEngine(decoder, cut.WithLogger(logger))

	// Initialize job repository
	repo := job.NewMemoryRepository(job.WithMaxFinished(cfg.JobRetention))

	svc := job.NewCutService(
		repo,
		engine,
		store,
		logger,
		job.WithOutputDir(cfg.TempDir),
	)

	return &Dependencies{
		Settings:   settings,
		Engine:     engine,
		CutService: svc,
		S3Enabled:  cfg.S3Enabled(),
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Debug("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
