package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/argus-sec/argus/internal/clients"
	"github.com/argus-sec/argus/internal/config"
	"github.com/argus-sec/argus/internal/storage"
	"github.com/argus-sec/argus/internal/telemetry"
)

type HealthService struct {
	logger      *slog.Logger
	intelClient *clients.IntelClient
	store       storage.DataPlane
	telemetry   *telemetry.Helper
}

type HealthServiceResponse struct {
	ServiceName  string                     `json:"service_name"`
	Status       string                     `json:"status"`
	OS           string                     `json:"os"`
	Arch         string                     `json:"architecture"`
	Version      string                     `json:"version"`
	Commit       string                     `json:"commit"`
	BuildTime    string                     `json:"build_time"`
	GoVersion    string                     `json:"go_version"`
	Dependencies map[string]DependencyCheck `json:"dependencies,omitempty"` // Optional field for dependencies status
	Timestamp    time.Time                  `json:"timestamp"`
}

type DependencyCheck struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"` // Optional message for the dependency status
	Duration  int64     `json:"duration_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHealthService initializes a new HealthService. intelClient may be nil
// when no intel feed is configured.
func NewHealthService(
	logger *slog.Logger,
	intelClient *clients.IntelClient,
	store storage.DataPlane,
) *HealthService {
	return &HealthService{
		logger:      logger,
		intelClient: intelClient,
		store:       store,
		telemetry:   telemetry.NewTelemetryHelper("argus/services"),
	}
}

// CheckHealth performs a health check and returns a status message.
func (s *HealthService) CheckHealth(ctx context.Context) *HealthServiceResponse {
	ctx, span := s.telemetry.StartSpan(ctx, "health.check")
	defer span.End()

	s.logger.DebugContext(ctx, "Performing health check")

	dependencies := make(map[string]DependencyCheck)
	dependencies["intel"] = s.checkIntelHealth(ctx)
	dependencies["storage"] = s.checkStorageHealth(ctx)

	overallStatus := s.getOverallStatus(dependencies)
	s.logger.DebugContext(ctx, "Overall health status", "status", overallStatus)

	version, commit, buildTime := config.GetBuildInfo()

	return &HealthServiceResponse{
		ServiceName:  "argus",
		Status:       overallStatus,
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		Version:      version,
		Commit:       commit,
		BuildTime:    buildTime,
		GoVersion:    runtime.Version(),
		Timestamp:    time.Now().UTC(),
		Dependencies: dependencies,
	}
}

// checkStorageHealth checks the health of the data plane.
func (s *HealthService) checkStorageHealth(ctx context.Context) DependencyCheck {
	ctx, span := s.telemetry.StartSpan(ctx, "health.check_storage")
	defer span.End()

	start := time.Now()

	if s.store == nil {
		s.telemetry.SetHealthAttributes(span, "storage", "error")
		s.logger.WarnContext(ctx, "Storage is not initialized")

		return DependencyCheck{
			Status:    "error",
			Message:   "Storage not initialized",
			Duration:  time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	span.SetAttributes(attribute.String("storage.timeout", "3s"))

	if err := s.store.Ping(checkCtx); err != nil {
		s.telemetry.SetHealthAttributes(span, "storage", "error")
		s.telemetry.SetErrorAttribute(span, err)
		s.logger.ErrorContext(ctx, "Failed to ping storage", "error", err)

		return DependencyCheck{
			Status:    "error",
			Message:   "Failed to connect to storage: " + err.Error(),
			Duration:  time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		}
	}

	s.telemetry.SetHealthAttributes(span, "storage", "healthy")
	s.logger.DebugContext(ctx, "Storage health check passed")

	return DependencyCheck{
		Status:    "healthy",
		Message:   "Data plane is responding",
		Duration:  time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}

// checkIntelHealth checks the health of the intel feed. A missing client
// means the feed is disabled, which is a healthy state.
func (s *HealthService) checkIntelHealth(ctx context.Context) DependencyCheck {
	ctx, span := s.telemetry.StartSpan(ctx, "health.check_intel")
	defer span.End()

	start := time.Now()

	if s.intelClient == nil {
		s.telemetry.SetHealthAttributes(span, "intel", "disabled")
		s.logger.DebugContext(ctx, "Intel feed not configured, using static advisories")

		return DependencyCheck{
			Status:    "healthy",
			Message:   "Intel feed disabled, static advisories in use",
			Duration:  time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	span.SetAttributes(attribute.String("intel.timeout", "5s"))

	resp, err := s.intelClient.GetIntelHealth(checkCtx)
	if err != nil {
		s.telemetry.SetHealthAttributes(span, "intel", "error")
		s.telemetry.SetErrorAttribute(span, err)
		s.logger.ErrorContext(ctx, "Failed to get intel feed health", "error", err)

		return DependencyCheck{
			Status:    "error",
			Message:   "Failed to connect to intel feed: " + err.Error(),
			Duration:  time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		s.telemetry.SetHealthAttributes(span, "intel", "healthy")
		span.SetAttributes(attribute.Int("intel.response_code", resp.StatusCode))
		s.logger.DebugContext(ctx, "Intel feed health check passed")

		return DependencyCheck{
			Status:    "healthy",
			Message:   "Intel feed is responding",
			Duration:  time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		}
	}

	s.telemetry.SetHealthAttributes(span, "intel", "degraded")
	span.SetAttributes(attribute.Int("intel.response_code", resp.StatusCode))
	s.logger.WarnContext(ctx, "Intel feed health check returned non-200 status",
		"status_code", resp.StatusCode)

	return DependencyCheck{
		Status:    "degraded",
		Message:   fmt.Sprintf("Intel feed returned status code: %d", resp.StatusCode),
		Duration:  time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}

// getOverallStatus aggregates the health status of all dependencies.
func (s *HealthService) getOverallStatus(dependencies map[string]DependencyCheck) string {
	hasError := false
	hasDegraded := false

	for _, dep := range dependencies {
		switch dep.Status {
		case "error":
			hasError = true
		case "degraded":
			hasDegraded = true
		}
	}

	if hasError {
		return "error"
	}

	if hasDegraded {
		return "degraded"
	}

	return "healthy"
}
