package check

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbak/internal/classify"
	"ragbak/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	manifestPath := filepath.Join(root, ".ragnarokbackup")
	require.NoError(t, os.WriteFile(manifestPath, nil, 0o644))
	return &config.Config{
		BaseDir:     filepath.Join(root, "ragnarokbackup"),
		Manifest:    manifestPath,
		Compression: "gz",
	}
}

func TestRunAllChecksPass(t *testing.T) {
	cfg := testConfig(t)
	file := filepath.Join(filepath.Dir(cfg.Manifest), "data.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(cfg.Manifest, []byte(file+"\n"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, Options{}, &buf))
	assert.Contains(t, buf.String(), "config: OK")
	assert.Contains(t, buf.String(), "OK (1 entries)")
	assert.Contains(t, buf.String(), "all checks passed")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Compression = "rar"

	var buf bytes.Buffer
	err := Run(context.Background(), cfg, Options{}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config:")
}

func TestRunRejectsBadManifest(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Manifest, []byte("relative/path\n"), 0o644))

	var buf bytes.Buffer
	err := Run(context.Background(), cfg, Options{}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest:")
}

func TestRunReportsCollision(t *testing.T) {
	cfg := testConfig(t)
	root := filepath.Dir(cfg.Manifest)

	// Two users with the same file land on the same archive subpath
	// when both home dirs have the same basename on different roots.
	aliceA := filepath.Join(root, "home", "alice")
	aliceB := filepath.Join(root, "srv", "home", "alice")
	for _, h := range []string{aliceA, aliceB} {
		require.NoError(t, os.MkdirAll(h, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(h, "notes.txt"), []byte("x"), 0o644))
	}
	lines := filepath.Join(aliceA, "notes.txt") + "\n" + filepath.Join(aliceB, "notes.txt") + "\n"
	require.NoError(t, os.WriteFile(cfg.Manifest, []byte(lines), 0o644))

	var buf bytes.Buffer
	err := Run(context.Background(), cfg, Options{HomeDirs: []string{aliceA, aliceB}}, &buf)
	require.Error(t, err)
	var collision *classify.CollisionError
	assert.ErrorAs(t, err, &collision)
}
