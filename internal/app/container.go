// Package app provides the application container and dependency injection system.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/argus-sec/argus/internal/bundle"
	"github.com/argus-sec/argus/internal/clients"
	"github.com/argus-sec/argus/internal/config"
	"github.com/argus-sec/argus/internal/handlers"
	"github.com/argus-sec/argus/internal/services"
	"github.com/argus-sec/argus/internal/storage"
)

// Container holds all application dependencies using dependency injection pattern.
type Container struct {
	Logger *slog.Logger

	// Storage layer
	Store storage.DataPlane

	// External service clients
	GitHubClient *clients.GitHubClient
	IntelClient  *clients.IntelClient

	// Bundle loading
	Loader *bundle.Loader

	// Business logic services
	IntelService    *services.IntelService
	PipelineService *services.PipelineService
	HealthService   *services.HealthService

	// HTTP request handlers
	WebhookHandler *handlers.WebhookHandler
	HealthHandler  *handlers.HealthHandler
}

// NewContainer initializes a new Container with all dependencies.
func NewContainer(ctx context.Context) (*Container, error) {
	c := &Container{}

	c.Logger = config.NewLogger()
	c.Logger.Info("Initializing application container")

	if err := c.initializeStorage(); err != nil {
		return nil, err
	}

	if err := c.initializeClients(ctx); err != nil {
		return nil, err
	}

	c.initializeServices()

	if err := c.initializeHandlers(); err != nil {
		return nil, err
	}

	return c, nil
}

// initializeStorage sets up the data plane based on configuration.
func (c *Container) initializeStorage() error {
	c.Logger.Info("Initializing storage", "type", config.AppConfig.Storage.Type)

	var err error

	c.Store, err = storage.NewDataPlane(config.AppConfig.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	return nil
}

// initializeClients sets up external service clients.
func (c *Container) initializeClients(ctx context.Context) error {
	if err := c.initializeGitHubClient(ctx); err != nil {
		return err
	}

	return c.initializeIntelClient()
}

// initializeGitHubClient sets up GitHub authentication and client.
func (c *Container) initializeGitHubClient(ctx context.Context) error {
	switch {
	case config.IsGitHubAppConfigured():
		c.Logger.Info("Using GitHub App authentication")

		githubConfig, err := config.LoadGitHubAppConfig()
		if err != nil {
			return fmt.Errorf("failed to load GitHub App config: %w", err)
		}

		c.GitHubClient, err = clients.NewGitHubAppClient(ctx, *githubConfig)
		if err != nil {
			return fmt.Errorf("failed to create GitHub App client: %w", err)
		}
	case config.AppConfig.GitHubToken != "":
		c.Logger.Info("Using Personal Access Token authentication")

		c.GitHubClient = clients.NewGitHubClient(ctx)
		if err := c.GitHubClient.Authenticate(ctx, config.AppConfig.GitHubToken); err != nil {
			return fmt.Errorf("failed to authenticate GitHub client: %w", err)
		}
	default:
		return fmt.Errorf(
			"no GitHub authentication configured (need either GitHub App or PAT)",
		)
	}

	c.Logger.Info("GitHub client initialized")

	return nil
}

// initializeIntelClient sets up the threat-intel feed client. An empty
// server URL means the feed is disabled and static advisories are used.
func (c *Container) initializeIntelClient() error {
	if config.AppConfig.Intel.ServerURL == "" {
		c.Logger.Info("Intel feed not configured, using static advisories")
		return nil
	}

	timeout, err := config.AppConfig.Intel.ParseTimeout()
	if err != nil {
		return fmt.Errorf("invalid intel timeout: %w", err)
	}

	c.IntelClient, err = clients.NewIntelClient(
		config.AppConfig.Intel.ServerURL,
		config.AppConfig.Intel.AdvisoryPath,
		timeout,
	)
	if err != nil {
		return fmt.Errorf("failed to create intel client: %w", err)
	}

	c.Logger.Info("Intel client initialized")

	return nil
}

// initializeServices sets up all business logic services.
// Services handle the core application logic and depend on the previously initialized clients and storage.
func (c *Container) initializeServices() {
	c.Loader = bundle.NewLoader(c.Logger)

	var provider services.IntelProvider = services.NewStaticIntelProvider()
	if c.IntelClient != nil {
		provider = services.NewFeedIntelProvider(c.IntelClient)
	}

	c.IntelService = services.NewIntelService(provider, c.Logger)
	c.PipelineService = services.NewPipelineService(c.Store, c.Loader, c.IntelService, c.Logger)
	c.HealthService = services.NewHealthService(c.Logger, c.IntelClient, c.Store)

	c.Logger.Info("Services initialized")
}

// initializeHandlers sets up HTTP request handlers.
// Handlers manage HTTP request/response processing and depend on the previously initialized services.
func (c *Container) initializeHandlers() error {
	var err error

	c.WebhookHandler, err = handlers.NewWebhookHandler(
		c.Logger,
		c.PipelineService,
		c.Loader,
		c.GitHubClient,
	)
	if err != nil {
		c.Logger.Error("Failed to create webhook handler", "error", err)
		return err
	}

	c.HealthHandler = handlers.NewHealthHandler(c.Logger, c.HealthService)

	c.Logger.Info("Handlers initialized")

	return nil
}

// Shutdown gracefully stops the container and its dependencies.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Logger.Info("Shutting down application container")

	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Error("Failed to close data plane", "error", err)
			return err
		}
	}

	c.Logger.Info("Application container shutdown complete")

	return nil
}
