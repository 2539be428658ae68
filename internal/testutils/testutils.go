// Package testutils provides shared helpers and document fixtures for tests.
package testutils

import (
	"log/slog"
	"os"
)

// NewTestLogger creates a new slog.Logger configured for testing. It uses a
// text handler with error level logging to reduce noise during tests.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// SarifDocument returns a small SARIF 2.1.0 result log with two distinct
// results and one duplicate, carrying CVE references and package properties.
func SarifDocument() []byte {
	return []byte(`{
  "$schema": "https://json.schemastore.org/sarif-2.1.0.json",
  "version": "2.1.0",
  "runs": [
    {
      "tool": {
        "driver": {
          "name": "grype",
          "rules": [
            {
              "id": "java/log4shell",
              "properties": {
                "security-severity": "9.8",
                "tags": ["security", "CVE-2021-44228"]
              }
            }
          ]
        }
      },
      "results": [
        {
          "ruleId": "java/log4shell",
          "level": "warning",
          "message": {"text": "Remote code execution in log4j (CVE-2021-44228)"},
          "properties": {
            "package": {"name": "log4j-core", "version": "2.14.0"}
          },
          "locations": [
            {
              "physicalLocation": {
                "artifactLocation": {"uri": "src/pom.xml"},
                "region": {"startLine": 12}
              }
            }
          ]
        },
        {
          "ruleId": "go/sql-injection",
          "level": "error",
          "message": {"text": "User input flows into SQL query"},
          "locations": [
            {
              "physicalLocation": {
                "artifactLocation": {"uri": "internal/db/query.go"},
                "region": {"startLine": 88}
              }
            }
          ]
        },
        {
          "ruleId": "java/log4shell",
          "level": "warning",
          "message": {"text": "Remote code execution in log4j (CVE-2021-44228)"},
          "properties": {
            "package": {"name": "log4j-core", "version": "2.14.0"}
          },
          "locations": [
            {
              "physicalLocation": {
                "artifactLocation": {"uri": "src/pom.xml"},
                "region": {"startLine": 12}
              }
            }
          ]
        }
      ]
    }
  ]
}`)
}

// CycloneDXDocument returns a small CycloneDX 1.5 SBOM with a root metadata
// component, two library components (one duplicated) and a dependency graph.
func CycloneDXDocument() []byte {
	return []byte(`{
  "bomFormat": "CycloneDX",
  "specVersion": "1.5",
  "version": 1,
  "metadata": {
    "component": {
      "bom-ref": "pkg:npm/payment-service@3.2.1",
      "type": "application",
      "name": "payment-service",
      "version": "3.2.1"
    }
  },
  "components": [
    {
      "bom-ref": "pkg:npm/left-pad@1.3.0",
      "type": "library",
      "name": "left-pad",
      "version": "1.3.0",
      "purl": "pkg:npm/left-pad@1.3.0",
      "supplier": {"name": "npm inc"},
      "licenses": [{"license": {"id": "MIT"}}],
      "hashes": [
        {"alg": "MD5", "content": "0f1b2c3d4e5f60718293a4b5c6d7e8f9"},
        {"alg": "SHA-256", "content": "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"}
      ]
    },
    {
      "bom-ref": "pkg:npm/lodash@4.17.21",
      "type": "library",
      "name": "lodash",
      "version": "4.17.21",
      "purl": "pkg:npm/lodash@4.17.21",
      "licenses": [{"license": {"id": "MIT"}}]
    },
    {
      "bom-ref": "pkg:npm/left-pad@1.3.0#dup",
      "type": "library",
      "name": "left-pad",
      "version": "1.3.0",
      "purl": "pkg:npm/left-pad@1.3.0",
      "supplier": {"name": "npm inc"},
      "licenses": [{"license": {"id": "MIT"}}],
      "hashes": [
        {"alg": "SHA-256", "content": "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"}
      ]
    }
  ],
  "dependencies": [
    {
      "ref": "pkg:npm/payment-service@3.2.1",
      "dependsOn": ["pkg:npm/left-pad@1.3.0", "pkg:npm/lodash@4.17.21"]
    },
    {
      "ref": "pkg:npm/left-pad@1.3.0",
      "dependsOn": ["pkg:npm/lodash@4.17.21"]
    }
  ]
}`)
}

// SPDXDocument returns a minimal SPDX 2.3 JSON document, recognized by the
// bundle detectors but excluded from component normalization.
func SPDXDocument() []byte {
	return []byte(`{
  "spdxVersion": "SPDX-2.3",
  "dataLicense": "CC0-1.0",
  "SPDXID": "SPDXRef-DOCUMENT",
  "name": "payment-service-sbom",
  "documentNamespace": "https://example.com/spdx/payment-service-128",
  "creationInfo": {
    "created": "2024-01-01T00:00:00Z",
    "creators": ["Tool: syft"]
  },
  "packages": [
    {
      "name": "left-pad",
      "SPDXID": "SPDXRef-Package-left-pad",
      "versionInfo": "1.3.0",
      "downloadLocation": "NOASSERTION"
    }
  ]
}`)
}

// TrivyDocument returns a minimal native Trivy JSON report.
func TrivyDocument() []byte {
	return []byte(`{
  "SchemaVersion": 2,
  "CreatedAt": "2024-03-01T12:00:00Z",
  "ArtifactName": "package-lock.json",
  "ArtifactType": "filesystem",
  "Results": [
    {
      "Target": "package-lock.json",
      "Class": "lang-pkgs",
      "Type": "npm",
      "Vulnerabilities": [
        {
          "VulnerabilityID": "CVE-2021-23337",
          "PkgName": "lodash",
          "InstalledVersion": "4.17.20",
          "FixedVersion": "4.17.21",
          "Severity": "HIGH",
          "Description": "Command injection via template."
        }
      ]
    }
  ]
}`)
}
