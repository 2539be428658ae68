package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/webhooks/v6/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/argus-sec/argus/internal/bundle"
	"github.com/argus-sec/argus/internal/clients"
	"github.com/argus-sec/argus/internal/services"
	"github.com/argus-sec/argus/internal/telemetry"
	"github.com/argus-sec/argus/internal/utils"
)

// WebhookHandler turns GitHub workflow_run events into acquisition runs.
type WebhookHandler struct {
	logger       *slog.Logger
	hook         *github.Webhook
	telemetry    *telemetry.Helper
	pipeline     *services.PipelineService
	loader       *bundle.Loader
	githubClient clients.GitHubClientInterface
}

// NewWebhookHandler sets up a new WebhookHandler and initializes the GitHub
// webhook parser.
// TODO: Add support for secret verification
func NewWebhookHandler(
	logger *slog.Logger,
	pipeline *services.PipelineService,
	loader *bundle.Loader,
	githubClient clients.GitHubClientInterface,
) (*WebhookHandler, error) {
	hook, err := github.New()
	if err != nil {
		return nil, err
	}

	return &WebhookHandler{
		logger:       logger,
		hook:         hook,
		telemetry:    telemetry.NewTelemetryHelper("argus/handlers"),
		pipeline:     pipeline,
		loader:       loader,
		githubClient: githubClient,
	}, nil
}

// HandleWebhook processes incoming GitHub webhook events.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("argus/handlers")
	ctx, span := tracer.Start(ctx, "webhook.handle")
	defer span.End()

	payload, err := h.hook.Parse(r, github.WorkflowRunEvent)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		h.logger.Error("Failed to parse webhook", "error", err)
		http.Error(w, "Failed to parse webhook", http.StatusBadRequest)

		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	span.SetAttributes(attribute.String("event.type", eventType))
	h.logger.InfoContext(ctx, "Received webhook event", "event_type", eventType)

	event, ok := payload.(github.WorkflowRunPayload)
	if !ok {
		h.logger.Warn("Unsupported event type", "event_type", eventType)
		http.Error(w, "Unsupported event type", http.StatusBadRequest)

		return
	}

	if err := h.handleWorkflowRunEvent(ctx, event); err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		h.logger.Error("Failed to handle workflow run event", "error", err)
		http.Error(w, "Failed to handle workflow run event", http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Webhook received successfully"))
}

// handleWorkflowRunEvent acquires the scan bundles of a finished workflow
// run. Anything other than a successful completion is ignored.
func (h *WebhookHandler) handleWorkflowRunEvent(
	ctx context.Context,
	event github.WorkflowRunPayload,
) error {
	ctx, span := h.telemetry.StartSpan(ctx, "webhook.handle_workflow_run")
	defer span.End()

	owner := event.Repository.Owner.Login
	repo := event.Repository.Name
	workflowRunID := event.WorkflowRun.ID

	h.telemetry.SetWorkflowAttributes(span, owner, repo, workflowRunID)
	span.SetAttributes(
		attribute.String("workflow.action", event.Action),
		attribute.String("workflow.conclusion", event.WorkflowRun.Conclusion),
	)

	h.logger.InfoContext(ctx, "Processing workflow run event",
		"action", event.Action,
		"workflow_run_id", workflowRunID,
	)

	if event.Action != "completed" || event.WorkflowRun.Conclusion != "success" {
		span.SetAttributes(attribute.String("result", "skipped"))
		h.logger.DebugContext(ctx, "Ignoring workflow run event",
			"action", event.Action,
			"conclusion", event.WorkflowRun.Conclusion,
		)

		return nil
	}

	return h.processWorkflowArtifacts(ctx, owner, repo, workflowRunID)
}

// processWorkflowArtifacts downloads each workflow artifact and runs the
// acquisition pipeline over it. Independent artifacts are processed
// concurrently; each is its own bundle.
func (h *WebhookHandler) processWorkflowArtifacts(
	ctx context.Context,
	owner, repo string,
	workflowRunID int64,
) error {
	ctx, span := h.telemetry.StartSpan(ctx, "webhook.process_artifacts")
	defer span.End()

	artifacts, err := h.githubClient.ListWorkflowArtifacts(ctx, owner, repo, workflowRunID)
	if err != nil {
		h.telemetry.SetErrorAttribute(span, err)
		return fmt.Errorf("failed to list workflow artifacts: %w", err)
	}

	if len(artifacts) == 0 {
		h.logger.DebugContext(ctx, "Workflow run has no artifacts",
			"workflow_run_id", workflowRunID,
		)

		return nil
	}

	tasks := make([]func() error, 0, len(artifacts))

	for _, artifact := range artifacts {
		if artifact.GetExpired() {
			h.logger.DebugContext(ctx, "Skipping expired artifact",
				"artifact", artifact.GetName(),
			)

			continue
		}

		artifactID := artifact.GetID()
		artifactName := artifact.GetName()

		tasks = append(tasks, func() error {
			return h.acquireArtifact(ctx, owner, repo, workflowRunID, artifactID, artifactName)
		})
	}

	errs := utils.ExecuteConcurrently(tasks)
	for _, err := range errs {
		if err != nil {
			h.telemetry.SetErrorAttribute(span, err)
			return fmt.Errorf("artifact acquisition failed: %w", err)
		}
	}

	return nil
}

// acquireArtifact downloads one artifact zip and drives it through the
// pipeline as a bundle identified by the artifact's stable name.
func (h *WebhookHandler) acquireArtifact(
	ctx context.Context,
	owner, repo string,
	workflowRunID, artifactID int64,
	artifactName string,
) error {
	ctx, span := h.telemetry.StartSpan(ctx, "webhook.acquire_artifact")
	defer span.End()

	h.telemetry.SetArtifactAttributes(span, artifactName, "zip")

	data, err := h.githubClient.DownloadArtifact(ctx, owner, repo, artifactID)
	if err != nil {
		h.telemetry.SetErrorAttribute(span, err)
		return fmt.Errorf("failed to download artifact %s: %w", artifactName, err)
	}

	loaded, err := h.loader.LoadZip(data)
	if err != nil {
		h.telemetry.SetErrorAttribute(span, err)
		return fmt.Errorf("failed to read artifact %s: %w", artifactName, err)
	}

	run, err := h.pipeline.RunWithArtifacts(ctx, services.RunInput{
		Repo:       owner + "/" + repo,
		BuildID:    strconv.FormatInt(workflowRunID, 10),
		BundlePath: artifactName,
	}, loaded)
	if err != nil {
		h.telemetry.SetErrorAttribute(span, err)
		return fmt.Errorf("pipeline failed for artifact %s: %w", artifactName, err)
	}

	h.logger.InfoContext(ctx, "Acquired workflow artifact",
		"artifact", artifactName,
		"bundle_id", run.BundleID,
		"status", run.Status,
	)

	if run.Status == services.RunFailed {
		return fmt.Errorf("acquisition run %s failed", run.BundleID)
	}

	return nil
}
