// Package telemetry provides utilities for telemetry and tracing in the application.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Helper centralizes tracing and logging concerns
type Helper struct {
	tracer oteltrace.Tracer
}

// NewTelemetryHelper creates a new Helper with the provided tracer for a component.
func NewTelemetryHelper(component string) *Helper {
	return &Helper{
		tracer: otel.Tracer(component),
	}
}

// StartSpan starts a new span with the given name
func (t *Helper) StartSpan(
	ctx context.Context,
	name string,
) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, name)
}

// SetBundleAttributes sets acquisition-run attributes on a span
func (t *Helper) SetBundleAttributes(span oteltrace.Span, repo, buildID, bundleID string) {
	span.SetAttributes(
		attribute.String("bundle.repo", repo),
		attribute.String("bundle.build_id", buildID),
		attribute.String("bundle.id", bundleID),
	)
}

// SetStageAttributes sets pipeline stage attributes on a span
func (t *Helper) SetStageAttributes(span oteltrace.Span, stage string, recordCount int) {
	span.SetAttributes(
		attribute.String("stage.name", stage),
		attribute.Int("stage.record_count", recordCount),
	)
}

// SetArtifactAttributes - for bundle artifact processing
func (t *Helper) SetArtifactAttributes(span oteltrace.Span, name, kind string) {
	span.SetAttributes(
		attribute.String("artifact.name", name),
		attribute.String("artifact.kind", kind),
	)
}

// SetWorkflowAttributes - for webhook-driven acquisition
func (t *Helper) SetWorkflowAttributes(span oteltrace.Span, owner, repo string, workflowID int64) {
	span.SetAttributes(
		attribute.String("github.owner", owner),
		attribute.String("github.repo", repo),
		attribute.Int64("github.workflow_id", workflowID),
	)
}

// SetStorageAttributes - for data plane operations
func (t *Helper) SetStorageAttributes(span oteltrace.Span, operation, index string) {
	span.SetAttributes(
		attribute.String("storage.operation", operation),
		attribute.String("storage.index", index),
	)
}

// SetHealthAttributes - for HealthService dependency checks
func (t *Helper) SetHealthAttributes(span oteltrace.Span, dependency, status string) {
	span.SetAttributes(
		attribute.String("health.dependency", dependency),
		attribute.String("health.status", status),
	)
}

// SetErrorAttribute - universal error handling. Sets error attribute on a span
// and records the error in the span.
func (t *Helper) SetErrorAttribute(span oteltrace.Span, err error) {
	span.SetAttributes(attribute.String("error", err.Error()))
	span.RecordError(err)
}

// SetCacheAttributes sets cache hit/miss attributes on a span
func (t *Helper) SetCacheAttributes(span oteltrace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
}
