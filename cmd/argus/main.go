package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/argus-sec/argus/internal/app"
	"github.com/argus-sec/argus/internal/bundle"
	"github.com/argus-sec/argus/internal/clients"
	"github.com/argus-sec/argus/internal/config"
	"github.com/argus-sec/argus/internal/otel"
	"github.com/argus-sec/argus/internal/services"
	"github.com/argus-sec/argus/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "argus",
	Short: "Deterministic acquisition of security scan artifacts",
	Long: "Argus normalizes SARIF result logs and CycloneDX SBOMs into " +
		"identified records and stores them through a content-addressed data plane.",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return config.InitConfig()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		version, commit, buildTime := config.GetBuildInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "argus %s (commit %s, built %s)\n",
			version, commit, buildTime)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServer()
	},
}

var (
	runRepo       string
	runBuildID    string
	runBundlePath string
	runDryRun     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Acquire a local scan bundle",
	Long: "Run the acquisition pipeline over a bundle directory or zip " +
		"archive and print the run summary. With --dry-run nothing is written.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBundle(cmd)
	},
}

func init() {
	runCmd.Flags().StringVar(&runRepo, "repo", "", "repository the bundle belongs to")
	runCmd.Flags().StringVar(&runBuildID, "build-id", "", "build the bundle belongs to")
	runCmd.Flags().StringVar(&runBundlePath, "bundle-path", "", "bundle directory or zip archive")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "compute the run without writing records")

	_ = runCmd.MarkFlagRequired("repo")
	_ = runCmd.MarkFlagRequired("build-id")
	_ = runCmd.MarkFlagRequired("bundle-path")

	rootCmd.AddCommand(versionCmd, serveCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServer starts the webhook server and blocks until interrupted.
func runServer() error {
	ctx := context.Background()

	if config.AppConfig.OTLP.EnableOTLP {
		shutdown, err := otel.SetupOTelSDK(ctx, "argus")
		if err != nil {
			return fmt.Errorf("failed to setup OpenTelemetry: %w", err)
		}

		defer func() {
			if err := shutdown(ctx); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
	}

	container, err := app.NewContainer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application container: %w", err)
	}

	container.Logger.Info("Starting argus server",
		"version", config.AppConfig.Version,
		"commit", config.AppConfig.Commit,
		"build_time", config.AppConfig.BuildTime,
		"port", config.AppConfig.Port,
	)

	server := app.NewServer(container)

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	container.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server forced to shutdown", "error", err)
	}

	if err := container.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Failed to shutdown container", "error", err)
	}

	container.Logger.Info("Server exited")

	return nil
}

// runBundle drives one local bundle through the pipeline and prints the
// summary as JSON.
func runBundle(cmd *cobra.Command) error {
	ctx := context.Background()
	logger := config.NewLogger()

	store, err := storage.NewDataPlane(config.AppConfig.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	var provider services.IntelProvider = services.NewStaticIntelProvider()

	if config.AppConfig.Intel.ServerURL != "" {
		timeout, err := config.AppConfig.Intel.ParseTimeout()
		if err != nil {
			return fmt.Errorf("invalid intel timeout: %w", err)
		}

		client, err := clients.NewIntelClient(
			config.AppConfig.Intel.ServerURL,
			config.AppConfig.Intel.AdvisoryPath,
			timeout,
		)
		if err != nil {
			return fmt.Errorf("failed to create intel client: %w", err)
		}

		provider = services.NewFeedIntelProvider(client)
	}

	loader := bundle.NewLoader(logger)
	intel := services.NewIntelService(provider, logger)
	pipeline := services.NewPipelineService(store, loader, intel, logger)

	run, err := pipeline.Run(ctx, services.RunInput{
		Repo:       runRepo,
		BuildID:    runBuildID,
		BundlePath: runBundlePath,
		DryRun:     runDryRun,
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(run); err != nil {
		return err
	}

	if run.Status == services.RunFailed {
		return fmt.Errorf("acquisition run %s failed", run.BundleID)
	}

	return nil
}
