package bundle

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/aquasecurity/trivy/pkg/types"
	sarif "github.com/owenrumney/go-sarif/v2/sarif"
	spdxjson "github.com/spdx/tools-golang/json"
)

// ArtifactKind classifies the content of one bundle file.
type ArtifactKind string

const (
	KindCycloneDX ArtifactKind = "cyclonedx"
	KindSPDX      ArtifactKind = "spdx"
	KindTrivyJSON ArtifactKind = "trivy_json"
	KindSARIF     ArtifactKind = "sarif"
	KindUnknown   ArtifactKind = "unknown"
)

// ContentDetector is the strategy interface for recognizing one artifact
// format.
type ContentDetector interface {
	CanHandle(content []byte, filename string) bool
	Kind() ArtifactKind
	Priority() int // lower numbers are tried first
}

// CycloneDXDetector recognizes CycloneDX JSON bills of materials.
type CycloneDXDetector struct{}

func (d *CycloneDXDetector) CanHandle(content []byte, filename string) bool {
	return isCycloneDXContent(content)
}

func (d *CycloneDXDetector) Kind() ArtifactKind { return KindCycloneDX }

func (d *CycloneDXDetector) Priority() int { return 1 }

// SPDXDetector recognizes SPDX JSON documents.
type SPDXDetector struct{}

func (d *SPDXDetector) CanHandle(content []byte, filename string) bool {
	return isSPDXContent(content)
}

func (d *SPDXDetector) Kind() ArtifactKind { return KindSPDX }

func (d *SPDXDetector) Priority() int { return 2 }

// TrivyJSONDetector recognizes native Trivy JSON reports.
type TrivyJSONDetector struct{}

func (d *TrivyJSONDetector) CanHandle(content []byte, filename string) bool {
	return isTrivyJSONContent(content)
}

func (d *TrivyJSONDetector) Kind() ArtifactKind { return KindTrivyJSON }

func (d *TrivyJSONDetector) Priority() int { return 3 }

// SARIFDetector recognizes SARIF 2.1.0 result logs.
type SARIFDetector struct{}

func (d *SARIFDetector) CanHandle(content []byte, filename string) bool {
	return isSarifContent(content)
}

func (d *SARIFDetector) Kind() ArtifactKind { return KindSARIF }

func (d *SARIFDetector) Priority() int { return 4 }

// DefaultDetectors returns the standard detector chain, priority ordered.
func DefaultDetectors() []ContentDetector {
	detectors := []ContentDetector{
		&CycloneDXDetector{},
		&SPDXDetector{},
		&TrivyJSONDetector{},
		&SARIFDetector{},
	}

	sort.Slice(detectors, func(i, j int) bool {
		return detectors[i].Priority() < detectors[j].Priority()
	})

	return detectors
}

// DetectKind runs the chain over one file's content and returns the first
// match, or KindUnknown.
func DetectKind(detectors []ContentDetector, content []byte, filename string) ArtifactKind {
	for _, d := range detectors {
		if d.CanHandle(content, filename) {
			return d.Kind()
		}
	}

	return KindUnknown
}

// isCycloneDXContent checks the two fields every CycloneDX JSON document
// carries. Full decoding is left to the normalizer.
func isCycloneDXContent(content []byte) bool {
	var probe struct {
		BomFormat   string `json:"bomFormat"`
		SpecVersion string `json:"specVersion"`
	}

	if err := json.Unmarshal(content, &probe); err != nil {
		return false
	}

	return probe.BomFormat == "CycloneDX" && probe.SpecVersion != ""
}

// isSPDXContent checks if the content is a valid SPDX document.
func isSPDXContent(content []byte) bool {
	doc, err := spdxjson.Read(bytes.NewReader(content))
	if err != nil {
		return false
	}

	if doc == nil {
		return false
	}

	if doc.SPDXVersion == "" || doc.SPDXIdentifier == "" {
		return false
	}

	if doc.DocumentName == "" || doc.DocumentNamespace == "" {
		return false
	}

	if !strings.HasPrefix(doc.SPDXVersion, "SPDX-") {
		return false
	}

	return doc.DataLicense == "CC0-1.0"
}

// isTrivyJSONContent checks if the content is a valid Trivy JSON report.
func isTrivyJSONContent(content []byte) bool {
	var report types.Report

	if err := json.Unmarshal(content, &report); err != nil {
		return false
	}

	if report.SchemaVersion == 0 {
		return false
	}

	if report.ArtifactName == "" {
		return false
	}

	return report.Results != nil
}

// isSarifContent checks if the content is a valid SARIF document.
func isSarifContent(content []byte) bool {
	doc, err := sarif.FromBytes(content)
	if err != nil || doc == nil {
		return false
	}

	if doc.Version != "2.1.0" {
		return false
	}

	return len(doc.Runs) > 0
}
