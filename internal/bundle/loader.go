package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Artifact is one recognized file from a scan bundle.
type Artifact struct {
	Name    string       `json:"name"`
	Kind    ArtifactKind `json:"kind"`
	Content []byte       `json:"-"`
	Size    int64        `json:"size"`
}

// Loader resolves a bundle path into typed artifacts.
type Loader struct {
	detectors []ContentDetector
	logger    *slog.Logger
}

// NewLoader creates a Loader with the default detector chain.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{
		detectors: DefaultDetectors(),
		logger:    logger,
	}
}

// Load resolves bundlePath, a directory or a zip archive, into artifacts
// sorted by name. Files no detector recognizes are skipped.
func (l *Loader) Load(bundlePath string) ([]Artifact, error) {
	info, err := os.Stat(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat bundle path: %w", err)
	}

	if info.IsDir() {
		return l.loadDir(bundlePath)
	}

	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle archive: %w", err)
	}

	return l.LoadZip(data)
}

// loadDir walks a bundle directory, classifying every regular file.
func (l *Loader) loadDir(dir string) ([]Artifact, error) {
	var artifacts []Artifact

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read bundle file %s: %w", path, err)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = entry.Name()
		}

		name := filepath.ToSlash(rel)
		if artifact, ok := l.classify(name, content); ok {
			artifacts = append(artifacts, artifact)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sortArtifacts(artifacts)

	return artifacts, nil
}

// LoadZip classifies every file of a zip archive, such as a downloaded
// workflow artifact.
func (l *Loader) LoadZip(data []byte) ([]Artifact, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zip reader: %w", err)
	}

	var artifacts []Artifact

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			l.logger.Warn("Failed to open file in zip", "filename", file.Name, "error", err)
			continue
		}

		content, err := io.ReadAll(rc)
		rc.Close()

		if err != nil {
			l.logger.Warn("Failed to read file in zip", "filename", file.Name, "error", err)
			continue
		}

		if artifact, ok := l.classify(strings.TrimPrefix(file.Name, "./"), content); ok {
			artifacts = append(artifacts, artifact)
		}
	}

	sortArtifacts(artifacts)

	return artifacts, nil
}

func (l *Loader) classify(name string, content []byte) (Artifact, bool) {
	kind := DetectKind(l.detectors, content, name)
	if kind == KindUnknown {
		l.logger.Debug("Skipping unrecognized bundle file", "filename", name)
		return Artifact{}, false
	}

	l.logger.Debug("Classified bundle file",
		"filename", name,
		"kind", kind,
		"size", len(content))

	return Artifact{
		Name:    name,
		Kind:    kind,
		Content: content,
		Size:    int64(len(content)),
	}, true
}

func sortArtifacts(artifacts []Artifact) {
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Name < artifacts[j].Name
	})
}
