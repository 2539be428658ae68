package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/argus-sec/argus/internal/bundle"
	"github.com/argus-sec/argus/internal/canonical"
	"github.com/argus-sec/argus/internal/coded"
	"github.com/argus-sec/argus/internal/normalize"
	"github.com/argus-sec/argus/internal/storage"
	"github.com/argus-sec/argus/internal/telemetry"
)

// StageStatus is the outcome of one pipeline stage.
type StageStatus string

// RunStatus is the overall outcome of one acquisition run.
type RunStatus string

const (
	StageSuccess StageStatus = "SUCCESS"
	StageFailed  StageStatus = "FAILED"
	StageSkipped StageStatus = "SKIPPED"

	RunSuccess RunStatus = "SUCCESS"
	RunFailed  RunStatus = "FAILED"
)

// RunInput identifies one bundle to acquire. CreatedAt pins the ingestion
// timestamp stamped onto normalized records; the zero value means now.
type RunInput struct {
	Repo       string    `json:"repo"`
	BuildID    string    `json:"buildId"`
	BundlePath string    `json:"bundlePath"`
	DryRun     bool      `json:"dryRun"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
}

// StageResult reports one stage of a run. Stage names always appear in the
// fixed sequence order, regardless of where execution stopped.
type StageResult struct {
	Stage   string      `json:"stage"`
	Status  StageStatus `json:"status"`
	Records int         `json:"records"`
}

// PipelineRun is the immutable summary of one acquisition run.
type PipelineRun struct {
	BundleID     string        `json:"bundleId"`
	Status       RunStatus     `json:"status"`
	StageResults []StageResult `json:"stageResults"`
}

// PipelineService drives a bundle through the fixed acquisition stage
// sequence. Stages run strictly sequentially; the first failure marks that
// stage FAILED, every later stage SKIPPED, and the run FAILED.
type PipelineService struct {
	store     storage.DataPlane
	loader    *bundle.Loader
	intel     *IntelService
	logger    *slog.Logger
	telemetry *telemetry.Helper
}

// NewPipelineService creates a new PipelineService.
func NewPipelineService(
	store storage.DataPlane,
	loader *bundle.Loader,
	intel *IntelService,
	logger *slog.Logger,
) *PipelineService {
	return &PipelineService{
		store:     store,
		loader:    loader,
		intel:     intel,
		logger:    logger,
		telemetry: telemetry.NewTelemetryHelper("argus/services"),
	}
}

// BundleID derives the deterministic identifier of a bundle submission.
func BundleID(repo, buildID, bundlePath string) (string, error) {
	return canonical.Digest(map[string]any{
		"kind":       "bundle",
		"repo":       repo,
		"buildId":    buildID,
		"bundlePath": bundlePath,
	})
}

// runContext carries normalized stage output forward through one run.
type runContext struct {
	input     RunInput
	createdAt time.Time
	loaded    bool
	artifacts []bundle.Artifact

	findings   []normalize.Finding
	components []normalize.Component
	edges      []normalize.DependencyEdge
}

type stage struct {
	name  string
	index storage.Index
	fn    func(ctx context.Context, rc *runContext) ([]storage.Record, error)
}

func (s *PipelineService) stages() []stage {
	return []stage{
		{"artifacts", storage.IndexArtifacts, s.stageArtifacts},
		{"dependencies", storage.IndexDependencies, s.stageDependencies},
		{"sbom", storage.IndexSBOM, s.stageSBOM},
		{"findings", storage.IndexFindings, s.stageFindings},
		{"reachability", storage.IndexReachability, s.stageReachability},
		{"threatIntel", storage.IndexThreatIntel, s.stageThreatIntel},
		{"actions", storage.IndexActions, s.stageActions},
	}
}

// Run executes the acquisition pipeline for one bundle resolved from
// input.BundlePath. In dry-run mode every stage computes its records but
// nothing is written, so repeated invocations with identical inputs produce
// identical results.
func (s *PipelineService) Run(ctx context.Context, input RunInput) (*PipelineRun, error) {
	return s.run(ctx, input, nil, false)
}

// RunWithArtifacts executes the pipeline over artifacts already resolved by
// the caller, for bundles that never touch the filesystem. BundlePath still
// participates in the bundle identity.
func (s *PipelineService) RunWithArtifacts(
	ctx context.Context,
	input RunInput,
	artifacts []bundle.Artifact,
) (*PipelineRun, error) {
	return s.run(ctx, input, artifacts, true)
}

func (s *PipelineService) run(
	ctx context.Context,
	input RunInput,
	artifacts []bundle.Artifact,
	loaded bool,
) (*PipelineRun, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "pipeline.run")
	defer span.End()

	if err := validateRunInput(input); err != nil {
		s.telemetry.SetErrorAttribute(span, err)
		return nil, err
	}

	bundleID, err := BundleID(input.Repo, input.BuildID, input.BundlePath)
	if err != nil {
		s.telemetry.SetErrorAttribute(span, err)
		return nil, fmt.Errorf("failed to derive bundle id: %w", err)
	}

	s.telemetry.SetBundleAttributes(span, input.Repo, input.BuildID, bundleID)

	s.logger.InfoContext(ctx, "Starting acquisition run",
		"bundle_id", bundleID,
		"repo", input.Repo,
		"build_id", input.BuildID,
		"dry_run", input.DryRun,
	)

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	rc := &runContext{
		input:     input,
		createdAt: createdAt,
		loaded:    loaded,
		artifacts: artifacts,
	}
	run := &PipelineRun{
		BundleID:     bundleID,
		Status:       RunSuccess,
		StageResults: make([]StageResult, 0, len(s.stages())),
	}

	failed := false

	for _, st := range s.stages() {
		if failed {
			run.StageResults = append(run.StageResults, StageResult{
				Stage:  st.name,
				Status: StageSkipped,
			})

			continue
		}

		records, err := s.runStage(ctx, st, rc)
		if err != nil {
			s.logger.ErrorContext(ctx, "Stage failed",
				"bundle_id", bundleID,
				"stage", st.name,
				"error", err,
			)

			run.StageResults = append(run.StageResults, StageResult{
				Stage:  st.name,
				Status: StageFailed,
			})
			run.Status = RunFailed
			failed = true

			continue
		}

		run.StageResults = append(run.StageResults, StageResult{
			Stage:   st.name,
			Status:  StageSuccess,
			Records: len(records),
		})
	}

	s.logger.InfoContext(ctx, "Acquisition run finished",
		"bundle_id", bundleID,
		"status", run.Status,
	)

	return run, nil
}

// runStage computes one stage's records and, outside dry-run mode, writes
// them to the stage's index.
func (s *PipelineService) runStage(
	ctx context.Context,
	st stage,
	rc *runContext,
) ([]storage.Record, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "pipeline.stage."+st.name)
	defer span.End()

	records, err := st.fn(ctx, rc)
	if err != nil {
		s.telemetry.SetErrorAttribute(span, err)
		return nil, err
	}

	s.telemetry.SetStageAttributes(span, st.name, len(records))

	if rc.input.DryRun || len(records) == 0 {
		return records, nil
	}

	s.telemetry.SetStorageAttributes(span, "write_records", string(st.index))

	if err := s.store.WriteRecords(ctx, st.index, records); err != nil {
		s.telemetry.SetErrorAttribute(span, err)
		return nil, err
	}

	return records, nil
}

// stageArtifacts loads the bundle and emits one record per detected artifact.
func (s *PipelineService) stageArtifacts(
	ctx context.Context,
	rc *runContext,
) ([]storage.Record, error) {
	if !rc.loaded {
		artifacts, err := s.loader.Load(rc.input.BundlePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load bundle: %w", err)
		}

		rc.artifacts = artifacts
	}

	records := make([]storage.Record, 0, len(rc.artifacts))
	for _, artifact := range rc.artifacts {
		sum := sha256.Sum256(artifact.Content)

		records = append(records, storage.Record{
			"repo":    rc.input.Repo,
			"buildId": rc.input.BuildID,
			"name":    artifact.Name,
			"type":    string(artifact.Kind),
			"size":    artifact.Size,
			"sha256":  hex.EncodeToString(sum[:]),
		})
	}

	s.logger.DebugContext(ctx, "Loaded bundle artifacts", "count", len(rc.artifacts))

	return records, nil
}

// stageDependencies extracts dependency edges from each CycloneDX artifact.
func (s *PipelineService) stageDependencies(
	_ context.Context,
	rc *runContext,
) ([]storage.Record, error) {
	for _, artifact := range rc.artifacts {
		if artifact.Kind != bundle.KindCycloneDX {
			continue
		}

		edges, err := normalize.ParseDependencyEdges(artifact.Content, normalize.ComponentOptions{
			Repo:       rc.input.Repo,
			BuildID:    rc.input.BuildID,
			SourceFile: artifact.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to extract edges from %s: %w", artifact.Name, err)
		}

		rc.edges = append(rc.edges, edges...)
	}

	return toRecords(rc.edges)
}

// stageSBOM normalizes components from each CycloneDX artifact.
func (s *PipelineService) stageSBOM(
	_ context.Context,
	rc *runContext,
) ([]storage.Record, error) {
	for _, artifact := range rc.artifacts {
		if artifact.Kind != bundle.KindCycloneDX {
			continue
		}

		components, err := normalize.ParseComponents(artifact.Content, normalize.ComponentOptions{
			Repo:                    rc.input.Repo,
			BuildID:                 rc.input.BuildID,
			CreatedAt:               rc.createdAt,
			SourceFile:              artifact.Name,
			DeriveEcosystemFromPurl: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to normalize components from %s: %w", artifact.Name, err)
		}

		rc.components = append(rc.components, components...)
	}

	return toRecords(rc.components)
}

// stageFindings normalizes findings from each SARIF artifact.
func (s *PipelineService) stageFindings(
	_ context.Context,
	rc *runContext,
) ([]storage.Record, error) {
	for _, artifact := range rc.artifacts {
		if artifact.Kind != bundle.KindSARIF {
			continue
		}

		findings, err := normalize.ParseFindings(artifact.Content, normalize.FindingOptions{
			Repo:            rc.input.Repo,
			BuildID:         rc.input.BuildID,
			CreatedAt:       rc.createdAt,
			DefaultFilePath: artifact.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to normalize findings from %s: %w", artifact.Name, err)
		}

		rc.findings = append(rc.findings, findings...)
	}

	return toRecords(rc.findings)
}

// stageReachability emits one unreviewed marker per distinct finding
// package@version. The analysis itself happens elsewhere; the marker is what
// queues the pair for later triage.
func (s *PipelineService) stageReachability(
	_ context.Context,
	rc *runContext,
) ([]storage.Record, error) {
	type pair struct {
		pkg     string
		version string
	}

	seen := make(map[pair]struct{})
	pairs := make([]pair, 0)

	for _, finding := range rc.findings {
		if finding.Package == nil {
			continue
		}

		p := pair{pkg: *finding.Package}
		if finding.Version != nil {
			p.version = *finding.Version
		}

		if _, ok := seen[p]; ok {
			continue
		}

		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].pkg != pairs[j].pkg {
			return pairs[i].pkg < pairs[j].pkg
		}

		return pairs[i].version < pairs[j].version
	})

	records := make([]storage.Record, 0, len(pairs))

	for _, p := range pairs {
		var version any
		if p.version != "" {
			version = p.version
		}

		markerID, err := canonical.Digest(map[string]any{
			"kind":    "reachability",
			"repo":    rc.input.Repo,
			"buildId": rc.input.BuildID,
			"package": p.pkg,
			"version": version,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to derive marker id: %w", err)
		}

		records = append(records, storage.Record{
			"markerId": markerID,
			"repo":     rc.input.Repo,
			"buildId":  rc.input.BuildID,
			"package":  p.pkg,
			"version":  version,
			"status":   "unreviewed",
		})
	}

	return records, nil
}

// stageThreatIntel resolves one advisory record per distinct CVE across the
// run's findings.
func (s *PipelineService) stageThreatIntel(
	ctx context.Context,
	rc *runContext,
) ([]storage.Record, error) {
	cves := make([]string, 0)
	for _, finding := range rc.findings {
		cves = append(cves, finding.CVEs...)
	}

	if len(cves) == 0 {
		return nil, nil
	}

	advisories, err := s.intel.GetAdvisories(ctx, cves)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve advisories: %w", err)
	}

	records := make([]storage.Record, 0, len(advisories))

	for _, advisory := range advisories {
		advisoryID, err := canonical.Digest(map[string]any{
			"kind":    "advisory",
			"repo":    rc.input.Repo,
			"buildId": rc.input.BuildID,
			"cve":     advisory.CVE,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to derive advisory id: %w", err)
		}

		record, err := toRecord(advisory)
		if err != nil {
			return nil, err
		}

		record["advisoryId"] = advisoryID
		record["repo"] = rc.input.Repo
		record["buildId"] = rc.input.BuildID

		records = append(records, record)
	}

	return records, nil
}

// stageActions emits the run summary with per-stage record counts.
func (s *PipelineService) stageActions(
	_ context.Context,
	rc *runContext,
) ([]storage.Record, error) {
	bundleID, err := BundleID(rc.input.Repo, rc.input.BuildID, rc.input.BundlePath)
	if err != nil {
		return nil, err
	}

	cveSet := make(map[string]struct{})
	for _, finding := range rc.findings {
		for _, cve := range finding.CVEs {
			cveSet[cve] = struct{}{}
		}
	}

	record := storage.Record{
		"bundleId": bundleID,
		"repo":     rc.input.Repo,
		"buildId":  rc.input.BuildID,
		"counts": map[string]any{
			"artifacts":    len(rc.artifacts),
			"dependencies": len(rc.edges),
			"sbom":         len(rc.components),
			"findings":     len(rc.findings),
			"cves":         len(cveSet),
		},
	}

	return []storage.Record{record}, nil
}

// validateRunInput rejects inputs with missing identity fields.
func validateRunInput(input RunInput) error {
	fields := []struct {
		name  string
		value string
	}{
		{"repo", input.Repo},
		{"buildId", input.BuildID},
		{"bundlePath", input.BundlePath},
	}

	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return coded.NewField(
				coded.CodeMissingRequiredField,
				f.name,
				fmt.Sprintf("%s is required", f.name),
			)
		}
	}

	return nil
}

// toRecord converts a typed value into a data-plane record through its JSON
// form, so stored records match the wire shape of the type.
func toRecord(v any) (storage.Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	var record storage.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	return record, nil
}

func toRecords[T any](values []T) ([]storage.Record, error) {
	records := make([]storage.Record, 0, len(values))

	for _, v := range values {
		record, err := toRecord(v)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}
