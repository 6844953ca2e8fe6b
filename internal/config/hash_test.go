package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateChecksumsWithReportDryRun(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "config.yaml"), "service:\n  name: test\n")

	report, err := GenerateChecksumsWithReport(tmpDir, []string{"config.yaml", "video.yaml"}, true)
	require.NoError(t, err)

	assert.False(t, report.Written)
	require.Len(t, report.Files, 2)
	assert.True(t, report.Files[0].Exists)
	assert.NotEmpty(t, report.Files[0].Hash)
	assert.False(t, report.Files[1].Exists)
	assert.Empty(t, report.Files[1].Hash)

	_, err = os.Stat(filepath.Join(tmpDir, ChecksumFile))
	assert.True(t, os.IsNotExist(err), ".checksums must not be written in dry-run mode")
}

func TestGenerateChecksumsWithReportWritesChecksums(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "config.yaml"), "service:\n  name: test\n")
	writeTestFile(t, filepath.Join(tmpDir, "video.yaml"), "video:\n  slots: 3\n")

	report, err := GenerateChecksumsWithReport(tmpDir, []string{"config.yaml", "video.yaml"}, false)
	require.NoError(t, err)
	assert.True(t, report.Written)

	manifest, err := LoadChecksums(tmpDir)
	require.NoError(t, err)
	assert.Len(t, manifest.Hashes, 2)
	require.NoError(t, VerifyFileHash(filepath.Join(tmpDir, "video.yaml"), manifest.Hashes["video.yaml"]))

	writeTestFile(t, filepath.Join(tmpDir, "video.yaml"), "video:\n  slots: 4\n")
	assert.ErrorContains(t, VerifyFileHash(filepath.Join(tmpDir, "video.yaml"), manifest.Hashes["video.yaml"]), "hash mismatch")
}

func TestHashUpdateCoversIncludes(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "config.yaml"), "include:\n  - video.yaml\n")
	writeTestFile(t, filepath.Join(tmpDir, "video.yaml"), "video:\n  slots: 3\n")

	report, err := HashUpdate(tmpDir, false)
	require.NoError(t, err)
	assert.True(t, report.Written)
	require.Len(t, report.Files, 2)

	result, err := VerifyIntegrity(tmpDir)
	require.NoError(t, err)
	assert.True(t, result.Passed, "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestLoadChecksumsMissing(t *testing.T) {
	_, err := LoadChecksums(t.TempDir())
	assert.ErrorContains(t, err, "signbridge config hash-update")
}
