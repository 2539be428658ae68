package bundle

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/testutils"
)

func writeBundleDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	files := map[string][]byte{
		"sbom.cdx.json": testutils.CycloneDXDocument(),
		"scan.sarif":    testutils.SarifDocument(),
		"trivy.json":    testutils.TrivyDocument(),
		"notes.txt":     []byte("not an artifact"),
	}

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
	}

	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "nested", "sbom.spdx.json"),
		testutils.SPDXDocument(),
		0o644,
	))

	return dir
}

func TestLoader_LoadDir(t *testing.T) {
	loader := NewLoader(testutils.NewTestLogger())

	artifacts, err := loader.Load(writeBundleDir(t))
	require.NoError(t, err)

	// notes.txt is skipped; output is name-sorted.
	require.Len(t, artifacts, 4)
	assert.Equal(t, "nested/sbom.spdx.json", artifacts[0].Name)
	assert.Equal(t, KindSPDX, artifacts[0].Kind)
	assert.Equal(t, "sbom.cdx.json", artifacts[1].Name)
	assert.Equal(t, KindCycloneDX, artifacts[1].Kind)
	assert.Equal(t, "scan.sarif", artifacts[2].Name)
	assert.Equal(t, KindSARIF, artifacts[2].Kind)
	assert.Equal(t, "trivy.json", artifacts[3].Name)
	assert.Equal(t, KindTrivyJSON, artifacts[3].Kind)

	for _, artifact := range artifacts {
		assert.Equal(t, int64(len(artifact.Content)), artifact.Size)
	}
}

func TestLoader_LoadZip(t *testing.T) {
	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)
	for name, content := range map[string][]byte{
		"scan.sarif": testutils.SarifDocument(),
		"readme.md":  []byte("# nothing"),
	} {
		f, err := writer.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	loader := NewLoader(testutils.NewTestLogger())

	artifacts, err := loader.LoadZip(buf.Bytes())
	require.NoError(t, err)

	require.Len(t, artifacts, 1)
	assert.Equal(t, "scan.sarif", artifacts[0].Name)
	assert.Equal(t, KindSARIF, artifacts[0].Kind)
}

func TestLoader_LoadArchiveFile(t *testing.T) {
	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)
	f, err := writer.Create("sbom.cdx.json")
	require.NoError(t, err)
	_, err = f.Write(testutils.CycloneDXDocument())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	path := filepath.Join(t.TempDir(), "bundle.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loader := NewLoader(testutils.NewTestLogger())

	artifacts, err := loader.Load(path)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, KindCycloneDX, artifacts[0].Kind)
}

func TestLoader_MissingPath(t *testing.T) {
	loader := NewLoader(testutils.NewTestLogger())

	_, err := loader.Load(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
