package container

import (
	"net/http"

	"go-scan-capture/internal/aiprovider"
	"go-scan-capture/internal/capture"
	"go-scan-capture/internal/config"
	"go-scan-capture/internal/factory"
	"go-scan-capture/internal/frames"
	"go-scan-capture/internal/logger"
	"go-scan-capture/internal/observer"
	"go-scan-capture/internal/quality"
	"go-scan-capture/internal/repository"
	"go-scan-capture/internal/service"
	"go-scan-capture/internal/storage"
	"go-scan-capture/internal/transport"
	"go-scan-capture/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config      *config.Config
	scanService service.ScanService
	aiRouter    *aiprovider.Router
	uploads     *service.WorkerPool
	handler     http.Handler
}

// NewContainer builds the dependency graph from configuration.
func NewContainer(cfg *config.Config) (*Container, error) {
	analyzer := quality.NewAnalyzer()
	extractor := frames.NewExtractor(analyzer)

	planner, err := capture.NewPlanner()
	if err != nil {
		return nil, err
	}

	fetcher := storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout)
	imageRepo := repository.NewHTTPImageRepository(fetcher, validation.NewURLValidator())
	sessionRepo := repository.NewInMemorySessionRepository()

	shots, err := factory.ShotStoreForConfig(cfg)
	if err != nil {
		return nil, err
	}

	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(observer.NewMetricsObserver())

	uploads := service.NewWorkerPool(0)
	uploads.Start()

	scanService := service.NewScanService(
		imageRepo,
		sessionRepo,
		analyzer,
		extractor,
		planner,
		capture.NoopPrompter{},
		shots,
		uploads,
		events,
	)

	envSource := config.EnvSource{}
	aiRouter := aiprovider.NewRouter(envSource, &http.Client{Timeout: cfg.AITimeout})

	handler := transport.NewHandler(scanService, aiRouter, cfg)

	return &Container{
		config:      cfg,
		scanService: scanService,
		aiRouter:    aiRouter,
		uploads:     uploads,
		handler:     handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close drains background upload workers.
func (c *Container) Close() {
	c.uploads.Wait()
	c.uploads.Close()
}
