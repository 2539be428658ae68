// Package normalize parses untrusted scan documents into canonical, identified
// records. Normalizers are pure functions over their inputs: the same document
// always yields the same set of records with the same ids, which is what lets
// acquisition runs be re-submitted safely.
package normalize

import (
	"strings"

	"github.com/argus-sec/argus/internal/coded"
)

// Severity is the normalized severity scale for findings.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Finding is a normalized static-analysis result. FindingID derives from
// {repo, buildId, fingerprint}; Fingerprint derives from everything except
// repo/build/time, so identical findings across repeated scans of the same
// build collapse to one record.
type Finding struct {
	FindingID   string   `json:"findingId"`
	Repo        string   `json:"repo"`
	BuildID     string   `json:"buildId"`
	RuleID      string   `json:"ruleId"`
	Severity    Severity `json:"severity"`
	CVE         *string  `json:"cve"`
	CVEs        []string `json:"cves"`
	Package     *string  `json:"package"`
	Version     *string  `json:"version"`
	FilePath    *string  `json:"filePath"`
	LineNumber  *int     `json:"lineNumber"`
	Tool        string   `json:"tool"`
	Fingerprint string   `json:"fingerprint"`
	CreatedAt   string   `json:"createdAt"`
}

// Component is a normalized software bill-of-materials entry. ComponentID
// excludes CreatedAt and SourceFile, so identical components produce the same
// id regardless of when or from which file they were ingested.
type Component struct {
	ComponentID      string  `json:"componentId"`
	Repo             string  `json:"repo"`
	BuildID          string  `json:"buildId"`
	Component        string  `json:"component"`
	Version          *string `json:"version"`
	License          *string `json:"license"`
	Supplier         *string `json:"supplier"`
	Hash             *string `json:"hash"`
	Purl             *string `json:"purl"`
	BomRef           *string `json:"bomRef"`
	BomFormatVersion string  `json:"bomFormatVersion"`
	Ecosystem        *string `json:"ecosystem"`
	SourceFile       string  `json:"sourceFile"`
	CreatedAt        string  `json:"createdAt"`
}

// validateScope rejects blank repo/buildId before any document parsing.
// Every id below derives from these two fields, so a blank value would
// collapse distinct records onto one empty identity.
func validateScope(repo, buildID string) error {
	if strings.TrimSpace(repo) == "" {
		return coded.NewField(coded.CodeMissingRequiredField, "repo", "repo is required")
	}

	if strings.TrimSpace(buildID) == "" {
		return coded.NewField(coded.CodeMissingRequiredField, "buildId", "buildId is required")
	}

	return nil
}

// DependencyEdge is one parent→child edge of a build's dependency graph.
type DependencyEdge struct {
	EdgeID  string  `json:"edgeId"`
	Repo    string  `json:"repo"`
	BuildID string  `json:"buildId"`
	Parent  string  `json:"parent"`
	Child   string  `json:"child"`
	Version *string `json:"version"`
	Scope   string  `json:"scope"`
}
