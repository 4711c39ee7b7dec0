package container

import (
	"errors"
	"fmt"
	"net/http"

	"go-food-analyzer/internal/auth"
	"go-food-analyzer/internal/config"
	"go-food-analyzer/internal/gemini"
	"go-food-analyzer/internal/imagecodec"
	"go-food-analyzer/internal/logger"
	"go-food-analyzer/internal/observer"
	"go-food-analyzer/internal/ocr"
	"go-food-analyzer/internal/prompts"
	"go-food-analyzer/internal/service"
	"go-food-analyzer/internal/storage"
	"go-food-analyzer/internal/transport"
)

// Option customizes the container, mainly for tests.
type Option func(*options)

type options struct {
	httpClient *http.Client
	archiver   observer.Archiver
}

// WithHTTPClient sets the client used for vision model calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithArchiver replaces the blob archive built from configuration.
func WithArchiver(archiver observer.Archiver) Option {
	return func(o *options) { o.archiver = archiver }
}

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	pool      *ocr.WorkerPool
	publisher *observer.EventPublisher
	metrics   *observer.MetricsObserver
	service   service.FoodAnalysisService
	handler   http.Handler
}

// NewContainer creates a new dependency injection container. The OCR engine
// is passed in so that only the binaries link against libtesseract.
func NewContainer(cfg *config.Config, engine ocr.Engine, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if engine == nil {
		return nil, errors.New("ocr engine is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	catalog, err := loadPrompts(cfg.PromptFile)
	if err != nil {
		return nil, err
	}

	temperature := cfg.Gemini.Temperature
	aiClient, err := gemini.NewClient(gemini.Options{
		APIKey:      cfg.Gemini.APIKey,
		BaseURL:     cfg.Gemini.BaseURL,
		Model:       cfg.Gemini.Model,
		MimeType:    cfg.Gemini.MimeType,
		Timeout:     cfg.AITimeout,
		Temperature: &temperature,
		HTTPClient:  o.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; vision model calls will be rejected upstream")
	}

	pool := ocr.NewWorkerPool(cfg.OCR.MaxWorkers)
	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	archiver := o.archiver
	if archiver == nil && cfg.Archive.Enabled() {
		archiver, err = storage.NewAzureArchive(cfg.Archive.Account, cfg.Archive.Key, cfg.Archive.Container)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create result archive: %w", err)
		}
	}
	if archiver != nil {
		publisher.Subscribe(observer.NewArchiveObserver(archiver, logger.Logger))
	}

	svc := service.NewFoodAnalysisService(service.Dependencies{
		Decoder: imagecodec.New(),
		Prompts: catalog,
		AI:      aiClient,
		OCR:     ocr.NewPooledChannel(pool, engine),
		Events:  publisher,
	})

	var validator transport.TokenValidator
	if !cfg.Auth.Disabled {
		v, err := auth.NewValidator(cfg.Auth.Secret, cfg.Auth.Issuer)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create token validator: %w", err)
		}
		validator = v
	} else {
		logger.Warn("Authentication is disabled")
	}

	c := &Container{
		config:    cfg,
		pool:      pool,
		publisher: publisher,
		metrics:   metrics,
		service:   svc,
	}
	c.handler = transport.NewHandler(svc, cfg, validator, c.Stats)
	return c, nil
}

func loadPrompts(path string) (prompts.Catalog, error) {
	if path == "" {
		return prompts.Default()
	}
	catalog, err := prompts.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts from %s: %w", path, err)
	}
	return catalog, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the orchestrator
func (c *Container) Service() service.FoodAnalysisService {
	return c.service
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Stats merges orchestration counters with OCR pool usage.
func (c *Container) Stats() map[string]interface{} {
	stats := c.metrics.GetMetrics()
	stats["ocr_pool"] = c.pool.GetStats()
	return stats
}

// Close drains pending observer notifications and stops the OCR pool.
func (c *Container) Close() {
	c.pool.Close()
	c.publisher.Wait()
}
