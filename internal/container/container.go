package container

import (
	"fmt"
	"net/http"

	"go-image-moderation/internal/analyzer"
	"go-image-moderation/internal/config"
	"go-image-moderation/internal/factory"
	"go-image-moderation/internal/logger"
	"go-image-moderation/internal/moderation"
	"go-image-moderation/internal/observer"
	"go-image-moderation/internal/scheduler"
	"go-image-moderation/internal/service"
	"go-image-moderation/internal/storage"
	"go-image-moderation/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	analyzer  *analyzer.Analyzer
	scheduler *scheduler.Scheduler
	engine    *moderation.Engine
	events    *observer.MetricsObserver
	reloader  *config.Reloader
	service   service.ModerationService
	handler   http.Handler
}

// NewContainer creates a new dependency injection container. The runtime
// config file is applied once before it returns, so an invalid file fails
// startup.
func NewContainer(cfg *config.Config) (*Container, error) {
	var analyzerOpts []analyzer.Option
	recognizer, err := analyzer.NewTextRecognizer(cfg.OCRLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OCR: %w", err)
	}
	if recognizer != nil {
		analyzerOpts = append(analyzerOpts, analyzer.WithTextRecognizer(recognizer))
	}
	imageAnalyzer := analyzer.New(analyzerOpts...)

	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events := observer.NewMetricsObserver()
	publisher.Subscribe(events)

	sched := scheduler.New(imageAnalyzer, scheduler.DefaultConfig(), scheduler.WithEvents(publisher))
	engine := moderation.NewEngine(moderation.DefaultConfig(), nil)

	reloader, err := config.NewReloader(cfg.ModerationConfigPath, cfg.ReloadSchedule, func(rt *config.RuntimeConfig) error {
		if err := imageAnalyzer.UpdateSettings(rt.AnalyzerSettings()); err != nil {
			return err
		}
		sched.UpdateConfig(rt.SchedulerConfig())
		engine.UpdateConfig(rt.ModerationConfig())
		return nil
	})
	if err != nil {
		imageAnalyzer.Close()
		return nil, err
	}
	if _, err := reloader.Reload(); err != nil {
		imageAnalyzer.Close()
		return nil, fmt.Errorf("failed to load moderation config: %w", err)
	}

	httpFetcher := storage.NewHTTPImageFetcher(
		storage.WithTimeout(cfg.ImageFetchTimeout),
		storage.WithMaxBytes(cfg.MaxImageBytes),
	)
	var blobStorage storage.BlobStorage
	if cfg.AzureConfigured() {
		blobStorage, err = storage.NewAzureStorage(cfg.AzureStorageAccount, cfg.AzureStorageKey, cfg.MaxImageBytes)
		if err != nil {
			imageAnalyzer.Close()
			return nil, fmt.Errorf("failed to initialize azure storage: %w", err)
		}
	}
	sources := factory.NewSourceFactory(httpFetcher, blobStorage, nil)

	svc := service.NewModerationService(sched, engine, sources,
		service.WithAnalysisTimeout(cfg.AnalysisTimeout),
	)
	handler := transport.NewHandler(svc, events, cfg)

	return &Container{
		config:    cfg,
		analyzer:  imageAnalyzer,
		scheduler: sched,
		engine:    engine,
		events:    events,
		reloader:  reloader,
		service:   svc,
		handler:   handler,
	}, nil
}

// Start begins the periodic runtime config reload
func (c *Container) Start() error {
	return c.reloader.Start()
}

// Close stops background work and releases analyzer resources
func (c *Container) Close() error {
	c.reloader.Stop()
	return c.analyzer.Close()
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the moderation service
func (c *Container) Service() service.ModerationService {
	return c.service
}
