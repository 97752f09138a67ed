package list

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbak/internal/config"
)

func TestRunLocal(t *testing.T) {
	baseDir := t.TempDir()
	backups := filepath.Join(baseDir, "backups")
	require.NoError(t, os.MkdirAll(backups, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(backups, "backup_20260101_120000.tar.gz"), []byte("aaaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(backups, "backup_20260102_120000.zip"), []byte("bbbbbb"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(backups, "backup_20260103_120000"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(backups, "backup_20260103_120000", "data.bin"), []byte("cc"), 0o644))
	// Stray files alongside the archives get skipped.
	require.NoError(t, os.WriteFile(filepath.Join(backups, "notes.txt"), []byte("x"), 0o644))

	cfg := &config.Config{BaseDir: baseDir}
	var buf bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, "local", &buf))

	var out Output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "local", out.Source)
	require.Len(t, out.Archives, 3)
	assert.Equal(t, "backup_20260101_120000.tar.gz", out.Archives[0].Name)
	assert.Equal(t, "gz", out.Archives[0].Format)
	assert.Equal(t, int64(4), out.Archives[0].SizeBytes)
	assert.Equal(t, "zip", out.Archives[1].Format)
	assert.Equal(t, "none", out.Archives[2].Format)
	assert.Equal(t, int64(2), out.Archives[2].SizeBytes)
	assert.Equal(t, 3, out.Summary.TotalArchives)
	assert.Equal(t, int64(12), out.Summary.TotalSizeBytes)
}

func TestRunLocalNoBackupsDir(t *testing.T) {
	cfg := &config.Config{BaseDir: t.TempDir()}
	var buf bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, "local", &buf))

	var out Output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Empty(t, out.Archives)
	assert.Equal(t, 0, out.Summary.TotalArchives)
}

func TestRunS3Disabled(t *testing.T) {
	cfg := &config.Config{BaseDir: t.TempDir()}
	var buf bytes.Buffer
	err := Run(context.Background(), cfg, "s3", &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3 is not enabled")
}
