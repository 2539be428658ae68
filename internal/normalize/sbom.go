package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/package-url/packageurl-go"

	"github.com/argus-sec/argus/internal/canonical"
	"github.com/argus-sec/argus/internal/coded"
)

// supportedBomFormat and supportedBomVersions gate the one bill-of-materials
// format this normalizer accepts. Unsupported documents yield an empty slice,
// mirroring the result-log policy: unsupported is not an error.
const supportedBomFormat = "CycloneDX"

var supportedBomVersions = map[string]struct{}{
	"1.4": {},
	"1.5": {},
	"1.6": {},
}

// defaultSourceFile names the source when the caller supplies no usable path.
const defaultSourceFile = "sbom.json"

// hashAlgorithmRank orders hash algorithms by preference. Unrecognized
// algorithms sort after all of these.
var hashAlgorithmRank = map[string]int{
	"SHA-256": 0,
	"SHA-384": 1,
	"SHA-512": 2,
	"SHA-1":   3,
	"MD5":     4,
}

var driveLetterPattern = regexp.MustCompile(`^[A-Za-z]:`)

// ComponentOptions parameterize a ParseComponents call.
type ComponentOptions struct {
	Repo                    string
	BuildID                 string
	CreatedAt               time.Time // zero value means time.Now
	SourceFile              string
	DeriveEcosystemFromPurl bool
}

// ParseComponents normalizes a CycloneDX JSON SBOM into identified
// components. The top-level component list and the root metadata component
// are both eligible for output.
func ParseComponents(doc []byte, opts ComponentOptions) ([]Component, error) {
	if err := validateScope(opts.Repo, opts.BuildID); err != nil {
		return nil, err
	}

	var probe any
	if err := json.Unmarshal(doc, &probe); err != nil {
		return nil, coded.New(coded.CodeMalformedJSON, "bill of materials is not valid JSON")
	}

	root, ok := probe.(map[string]any)
	if !ok {
		return nil, coded.New(coded.CodeInvalidInput, "bill of materials must be a JSON object")
	}

	format, _ := root["bomFormat"].(string)
	specVersion, _ := root["specVersion"].(string)

	if format != supportedBomFormat {
		return nil, nil
	}

	if _, supported := supportedBomVersions[specVersion]; !supported {
		return nil, nil
	}

	var bom cdx.BOM
	if err := cdx.NewBOMDecoder(bytes.NewReader(doc), cdx.BOMFileFormatJSON).Decode(&bom); err != nil {
		return nil, nil
	}

	createdAt := opts.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	sourceFile := normalizeSourceFile(opts.SourceFile)

	var raw []cdx.Component

	if bom.Metadata != nil && bom.Metadata.Component != nil {
		raw = append(raw, *bom.Metadata.Component)
	}

	if bom.Components != nil {
		raw = append(raw, *bom.Components...)
	}

	components := make([]Component, 0, len(raw))
	seen := map[string]struct{}{}

	for i := range raw {
		comp, ok, err := normalizeComponent(&raw[i], specVersion, sourceFile, createdAt, opts)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		key := dedupKey(&comp)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		components = append(components, comp)
	}

	sortComponents(components)

	return components, nil
}

// normalizeComponent derives one output row; components without a name are
// not representable and are skipped.
func normalizeComponent(
	src *cdx.Component,
	specVersion, sourceFile string,
	createdAt time.Time,
	opts ComponentOptions,
) (Component, bool, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		return Component{}, false, nil
	}

	version := optString(src.Version)
	purl := optString(src.PackageURL)
	license := resolveLicense(src.Licenses)
	hash := resolveHash(src.Hashes)

	var supplier *string
	if src.Supplier != nil {
		supplier = optString(src.Supplier.Name)
	}

	var bomRef *string
	if ref := strings.TrimSpace(src.BOMRef); ref != "" {
		bomRef = &ref
	}

	var ecosystem *string
	if opts.DeriveEcosystemFromPurl && purl != nil {
		if parsed, err := packageurl.FromString(*purl); err == nil && parsed.Type != "" {
			eco := parsed.Type
			ecosystem = &eco
		}
	}

	// The id deliberately excludes createdAt, sourceFile, bomRef and license:
	// the same component ingested later or from a different path must keep
	// its identity.
	componentID, err := canonical.Digest(map[string]any{
		"repo":      opts.Repo,
		"buildId":   opts.BuildID,
		"component": name,
		"version":   nullable(version),
		"purl":      nullable(purl),
		"supplier":  nullable(supplier),
		"hash":      nullable(hash),
	})
	if err != nil {
		return Component{}, false, err
	}

	return Component{
		ComponentID:      componentID,
		Repo:             opts.Repo,
		BuildID:          opts.BuildID,
		Component:        name,
		Version:          version,
		License:          license,
		Supplier:         supplier,
		Hash:             hash,
		Purl:             purl,
		BomRef:           bomRef,
		BomFormatVersion: specVersion,
		Ecosystem:        ecosystem,
		SourceFile:       sourceFile,
		CreatedAt:        createdAt.Format(time.RFC3339),
	}, true, nil
}

// resolveLicense prefers license ids over names over expressions; within a
// tier, candidates sort ordinally and the first is taken.
func resolveLicense(licenses *cdx.Licenses) *string {
	if licenses == nil {
		return nil
	}

	var ids, names, expressions []string

	for _, choice := range *licenses {
		if choice.License != nil {
			if id := strings.TrimSpace(choice.License.ID); id != "" {
				ids = append(ids, id)
			}

			if name := strings.TrimSpace(choice.License.Name); name != "" {
				names = append(names, name)
			}
		}

		if expr := strings.TrimSpace(choice.Expression); expr != "" {
			expressions = append(expressions, expr)
		}
	}

	for _, tier := range [][]string{ids, names, expressions} {
		if len(tier) > 0 {
			sort.Strings(tier)
			return &tier[0]
		}
	}

	return nil
}

// resolveHash picks the best content hash by algorithm preference, rendered
// as "ALGO:value"; ties within a rank break ordinally on the rendered form.
func resolveHash(hashes *[]cdx.Hash) *string {
	if hashes == nil {
		return nil
	}

	bestRank := -1

	var best string

	for _, h := range *hashes {
		value := strings.TrimSpace(h.Value)
		if value == "" {
			continue
		}

		algo := strings.TrimSpace(string(h.Algorithm))
		rendered := fmt.Sprintf("%s:%s", algo, value)

		rank, known := hashAlgorithmRank[algo]
		if !known {
			rank = len(hashAlgorithmRank)
		}

		if bestRank == -1 || rank < bestRank || (rank == bestRank && rendered < best) {
			bestRank = rank
			best = rendered
		}
	}

	if bestRank == -1 {
		return nil
	}

	return &best
}

// normalizeSourceFile rewrites a path to forward-slash, drive-letter-free,
// relative form.
func normalizeSourceFile(path string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(path), "\\", "/")
	normalized = driveLetterPattern.ReplaceAllString(normalized, "")

	for {
		switch {
		case strings.HasPrefix(normalized, "./"):
			normalized = normalized[2:]
		case strings.HasPrefix(normalized, "/"):
			normalized = normalized[1:]
		default:
			if normalized == "" || normalized == "." {
				return defaultSourceFile
			}

			return normalized
		}
	}
}

// dedupKey renders the identity-relevant tuple with a sentinel for nulls.
func dedupKey(c *Component) string {
	const null = "\x00"

	fields := []*string{c.Version, c.Purl, c.Supplier, c.License, c.Hash}
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, c.Component)

	for _, f := range fields {
		if f == nil {
			parts = append(parts, null)
		} else {
			parts = append(parts, *f)
		}
	}

	return strings.Join(parts, "\x1f")
}

// sortComponents orders output rows deterministically, nulls last.
func sortComponents(components []Component) {
	sort.Slice(components, func(i, j int) bool {
		a, b := &components[i], &components[j]
		if a.Component != b.Component {
			return a.Component < b.Component
		}

		for _, pair := range [][2]*string{
			{a.Version, b.Version},
			{a.Purl, b.Purl},
			{a.Supplier, b.Supplier},
			{a.License, b.License},
			{a.Hash, b.Hash},
		} {
			if c := compareNullable(pair[0], pair[1]); c != 0 {
				return c < 0
			}
		}

		return false
	})
}

// compareNullable orders present values ordinally and sorts nil after any
// present value.
func compareNullable(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

func optString(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}
