package normalize

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/argus-sec/argus/internal/coded"
	"github.com/argus-sec/argus/internal/identity"
)

// ParseDependencyEdges flattens a CycloneDX dependency graph into identified
// parent→child edges. The same format gate as ParseComponents applies.
func ParseDependencyEdges(doc []byte, opts ComponentOptions) ([]DependencyEdge, error) {
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

	if bom.Dependencies == nil {
		return nil, nil
	}

	byRef := componentsByRef(&bom)

	var edges []DependencyEdge

	seen := map[string]struct{}{}

	for _, dep := range *bom.Dependencies {
		if dep.Dependencies == nil {
			continue
		}

		parent := refName(dep.Ref, byRef)
		if parent == "" {
			continue
		}

		for _, childRef := range *dep.Dependencies {
			child := refName(childRef, byRef)
			if child == "" {
				continue
			}

			var version *string

			scope := "required"

			if comp, ok := byRef[childRef]; ok {
				version = optString(comp.Version)
				if comp.Scope != "" {
					scope = string(comp.Scope)
				}
			}

			edgeID, err := identity.GenerateDependencyID(&identity.DependencyIdentity{
				Repo:    opts.Repo,
				BuildID: opts.BuildID,
				Parent:  parent,
				Child:   child,
				Version: version,
				Scope:   scope,
			})
			if err != nil {
				return nil, err
			}

			if _, dup := seen[edgeID]; dup {
				continue
			}

			seen[edgeID] = struct{}{}
			edges = append(edges, DependencyEdge{
				EdgeID:  edgeID,
				Repo:    opts.Repo,
				BuildID: opts.BuildID,
				Parent:  parent,
				Child:   child,
				Version: version,
				Scope:   scope,
			})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		return edges[i].EdgeID < edges[j].EdgeID
	})

	return edges, nil
}

// componentsByRef indexes every component of the document, root metadata
// component included, by its bom-ref.
func componentsByRef(bom *cdx.BOM) map[string]*cdx.Component {
	byRef := map[string]*cdx.Component{}

	if bom.Metadata != nil && bom.Metadata.Component != nil {
		if ref := bom.Metadata.Component.BOMRef; ref != "" {
			byRef[ref] = bom.Metadata.Component
		}
	}

	if bom.Components != nil {
		comps := *bom.Components
		for i := range comps {
			if ref := comps[i].BOMRef; ref != "" {
				byRef[ref] = &comps[i]
			}
		}
	}

	return byRef
}

// refName resolves a bom-ref to its component name, falling back to the raw
// ref for nodes the component list does not describe.
func refName(ref string, byRef map[string]*cdx.Component) string {
	if comp, ok := byRef[ref]; ok {
		if name := strings.TrimSpace(comp.Name); name != "" {
			return name
		}
	}

	return strings.TrimSpace(ref)
}
