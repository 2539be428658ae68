package normalize

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/argus-sec/argus/internal/canonical"
	"github.com/argus-sec/argus/internal/coded"
	"github.com/argus-sec/argus/internal/identity"
)

// supportedSarifVersion is the one result-log schema version this normalizer
// understands. Anything else is "nothing to report", not an error: one
// scanner emitting a newer format must not abort a whole acquisition run.
const supportedSarifVersion = "2.1.0"

// FindingOptions parameterize a ParseFindings call.
type FindingOptions struct {
	Repo            string
	BuildID         string
	CreatedAt       time.Time // zero value means time.Now
	DefaultFilePath string
}

// ParseFindings normalizes a SARIF result log into identified findings.
// Unparsable input fails with MALFORMED_JSON, a non-object document with
// INVALID_INPUT; a well-formed document of an unsupported schema version
// yields an empty slice.
func ParseFindings(doc []byte, opts FindingOptions) ([]Finding, error) {
	if err := validateScope(opts.Repo, opts.BuildID); err != nil {
		return nil, err
	}

	var probe any
	if err := json.Unmarshal(doc, &probe); err != nil {
		return nil, coded.New(coded.CodeMalformedJSON, "result log is not valid JSON")
	}

	if _, ok := probe.(map[string]any); !ok {
		return nil, coded.New(coded.CodeInvalidInput, "result log must be a JSON object")
	}

	report, err := sarif.FromBytes(doc)
	if err != nil || report == nil {
		return nil, nil
	}

	if report.Version != supportedSarifVersion {
		return nil, nil
	}

	createdAt := opts.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var findings []Finding

	for _, run := range report.Runs {
		if run == nil {
			continue
		}

		tool := "unknown"
		ruleProps := map[string]map[string]any{}

		if run.Tool.Driver != nil {
			if run.Tool.Driver.Name != "" {
				tool = run.Tool.Driver.Name
			}

			for _, rule := range run.Tool.Driver.Rules {
				if rule != nil && rule.Properties != nil {
					ruleProps[rule.ID] = rule.Properties
				}
			}
		}

		for _, res := range run.Results {
			if res == nil {
				continue
			}

			finding, err := normalizeResult(res, ruleProps, tool, createdAt, opts)
			if err != nil {
				return nil, err
			}

			findings = append(findings, finding)
		}
	}

	deduped := dedupeFindings(findings)

	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].FindingID != deduped[j].FindingID {
			return deduped[i].FindingID < deduped[j].FindingID
		}

		return deduped[i].RuleID < deduped[j].RuleID
	})

	return deduped, nil
}

// normalizeResult derives one finding from a SARIF result.
func normalizeResult(
	res *sarif.Result,
	ruleProps map[string]map[string]any,
	tool string,
	createdAt time.Time,
	opts FindingOptions,
) (Finding, error) {
	ruleID := ""
	if res.RuleID != nil {
		ruleID = *res.RuleID
	}

	level := ""
	if res.Level != nil {
		level = *res.Level
	}

	message := ""
	if res.Message.Text != nil {
		message = *res.Message.Text
	}

	bags := []map[string]any{res.Properties, ruleProps[ruleID]}

	severity := deriveSeverity(bags, level)
	pkg, version := derivePackage(bags)
	filePath, lineNumber := deriveLocation(res, opts.DefaultFilePath)
	cves := collectCVEs([]string{ruleID, message}, bags)

	var primaryCVE *string
	if len(cves) > 0 {
		primaryCVE = &cves[0]
	}

	fingerprint := computeFingerprint(ruleID, severity, cves, pkg, version, filePath, lineNumber, tool)

	findingID, err := identity.GenerateFindingID(&identity.FindingIdentity{
		Repo:        opts.Repo,
		BuildID:     opts.BuildID,
		Fingerprint: fingerprint,
	})
	if err != nil {
		return Finding{}, err
	}

	return Finding{
		FindingID:   findingID,
		Repo:        opts.Repo,
		BuildID:     opts.BuildID,
		RuleID:      ruleID,
		Severity:    severity,
		CVE:         primaryCVE,
		CVEs:        cves,
		Package:     pkg,
		Version:     version,
		FilePath:    filePath,
		LineNumber:  lineNumber,
		Tool:        tool,
		Fingerprint: fingerprint,
		CreatedAt:   createdAt.Format(time.RFC3339),
	}, nil
}

// computeFingerprint folds the stable identifying fields of a finding. The
// field set deliberately excludes repo, build and timestamps.
func computeFingerprint(
	ruleID string,
	severity Severity,
	cves []string,
	pkg, version, filePath *string,
	lineNumber *int,
	tool string,
) string {
	var cveList any
	if len(cves) > 0 {
		list := make([]any, len(cves))
		for i, c := range cves {
			list[i] = c
		}

		cveList = list
	}

	data, err := canonical.MarshalCanonical(map[string]any{
		"ruleId":     ruleID,
		"severity":   string(severity),
		"cves":       cveList,
		"package":    nullable(pkg),
		"version":    nullable(version),
		"filePath":   nullable(filePath),
		"lineNumber": nullableInt(lineNumber),
		"tool":       tool,
	})
	if err != nil {
		// Unreachable: every input above is already in the canonical model.
		return canonical.Fold53(ruleID + string(severity) + tool)
	}

	return canonical.Fold53(string(data))
}

// packageShapes is the priority-ordered accessor chain for package name and
// version: nested object shapes first, then flat properties.
var packageShapes = []string{"package", "dependency", "component"}

var flatPackageNameKeys = []string{"packageName", "package_name", "pkgName"}

var flatPackageVersionKeys = []string{"packageVersion", "package_version", "pkgVersion"}

// derivePackage resolves the affected package name and version from the
// property bags, first non-null match wins independently for each.
func derivePackage(bags []map[string]any) (*string, *string) {
	var name, version *string

	for _, shape := range packageShapes {
		for _, bag := range bags {
			value, ok := bag[shape]
			if !ok || value == nil {
				continue
			}

			switch v := value.(type) {
			case string:
				setIfEmpty(&name, v)
			case map[string]any:
				if n, ok := v["name"].(string); ok {
					setIfEmpty(&name, n)
				}

				if ver, ok := v["version"].(string); ok {
					setIfEmpty(&version, ver)
				}
			}
		}
	}

	for _, key := range flatPackageNameKeys {
		for _, bag := range bags {
			if v, ok := bag[key].(string); ok {
				setIfEmpty(&name, v)
			}
		}
	}

	for _, key := range flatPackageVersionKeys {
		for _, bag := range bags {
			if v, ok := bag[key].(string); ok {
				setIfEmpty(&version, v)
			}
		}
	}

	return name, version
}

// deriveLocation takes the first physical location's URI and 1-based start
// line. Missing URIs fall back to the caller default; non-positive lines
// become nil.
func deriveLocation(res *sarif.Result, defaultPath string) (*string, *int) {
	var filePath *string

	var lineNumber *int

	for _, loc := range res.Locations {
		if loc == nil || loc.PhysicalLocation == nil {
			continue
		}

		phys := loc.PhysicalLocation
		if phys.ArtifactLocation != nil && phys.ArtifactLocation.URI != nil {
			if uri := strings.TrimSpace(*phys.ArtifactLocation.URI); uri != "" {
				filePath = &uri
			}
		}

		if phys.Region != nil && phys.Region.StartLine != nil && *phys.Region.StartLine > 0 {
			line := *phys.Region.StartLine
			lineNumber = &line
		}

		break
	}

	if filePath == nil && defaultPath != "" {
		filePath = &defaultPath
	}

	return filePath, lineNumber
}

func dedupeFindings(findings []Finding) []Finding {
	seen := make(map[string]struct{}, len(findings))
	out := make([]Finding, 0, len(findings))

	for _, f := range findings {
		if _, dup := seen[f.FindingID]; dup {
			continue
		}

		seen[f.FindingID] = struct{}{}
		out = append(out, f)
	}

	return out
}

func setIfEmpty(dst **string, value string) {
	if *dst != nil {
		return
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return
	}

	*dst = &trimmed
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}

func nullableInt(n *int) any {
	if n == nil {
		return nil
	}

	return *n
}
