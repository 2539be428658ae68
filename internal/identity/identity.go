// Package identity builds stable, namespaced entity identifiers from
// validated fields. Every id is the canonical digest of a tagged record, so
// the same logical input always resolves to the same 64-char hex id across
// processes and restarts.
package identity

import (
	"strings"

	"github.com/argus-sec/argus/internal/canonical"
	"github.com/argus-sec/argus/internal/coded"
)

// Kind tags separate the id namespaces. Two entities of different kinds with
// coincidentally identical field values must never share an id.
const (
	kindFinding    = "finding"
	kindDependency = "dependency"
)

// FindingIdentity holds the fields a finding id derives from. Fingerprint
// already excludes repo/build/time, so re-scans of the same build collapse.
type FindingIdentity struct {
	Repo        string
	BuildID     string
	Fingerprint string
}

// DependencyIdentity holds the fields a dependency-edge id derives from.
// Version is nullable: nil and empty-after-trim both normalize to null.
type DependencyIdentity struct {
	Repo    string
	BuildID string
	Parent  string
	Child   string
	Version *string
	Scope   string
}

// GenerateFindingID returns the id for a finding identity.
func GenerateFindingID(in *FindingIdentity) (string, error) {
	if in == nil {
		return "", coded.New(coded.CodeInvalidIdentityInput, "finding identity must be a well-formed record")
	}

	repo, err := requiredField("repo", in.Repo)
	if err != nil {
		return "", err
	}

	buildID, err := requiredField("buildId", in.BuildID)
	if err != nil {
		return "", err
	}

	fingerprint, err := requiredField("fingerprint", in.Fingerprint)
	if err != nil {
		return "", err
	}

	return canonical.Digest(map[string]any{
		"kind":        kindFinding,
		"repo":        repo,
		"buildId":     buildID,
		"fingerprint": fingerprint,
	})
}

// GenerateDependencyID returns the id for a dependency-edge identity.
func GenerateDependencyID(in *DependencyIdentity) (string, error) {
	if in == nil {
		return "", coded.New(coded.CodeInvalidIdentityInput, "dependency identity must be a well-formed record")
	}

	repo, err := requiredField("repo", in.Repo)
	if err != nil {
		return "", err
	}

	buildID, err := requiredField("buildId", in.BuildID)
	if err != nil {
		return "", err
	}

	parent, err := requiredField("parent", in.Parent)
	if err != nil {
		return "", err
	}

	child, err := requiredField("child", in.Child)
	if err != nil {
		return "", err
	}

	scope, err := requiredField("scope", in.Scope)
	if err != nil {
		return "", err
	}

	return canonical.Digest(map[string]any{
		"kind":    kindDependency,
		"repo":    repo,
		"buildId": buildID,
		"parent":  parent,
		"child":   child,
		"version": nullableField(in.Version),
		"scope":   scope,
	})
}

// requiredField trims value and rejects it when empty after trimming.
func requiredField(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", coded.NewField(coded.CodeMissingRequiredField, name, "required field is empty")
	}

	return trimmed, nil
}

// nullableField normalizes an optional string: nil and empty-after-trim are
// the same null for identity purposes.
func nullableField(value *string) any {
	if value == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}

	return trimmed
}
