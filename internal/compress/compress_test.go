package compress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageTree(t *testing.T) string {
	t.Helper()
	staging := filepath.Join(t.TempDir(), "staging")
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "files", "etc"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "home_dirs", "alice"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "files", "etc", "hostname"), []byte("box\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "home_dirs", "alice", "notes.txt"), []byte("remember the milk\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "affiliation.json"), []byte("{}\n"), 0o644))
	return staging
}

func assertTreeContent(t *testing.T, root string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "files", "etc", "hostname"))
	require.NoError(t, err)
	assert.Equal(t, "box\n", string(data))

	data, err = os.ReadFile(filepath.Join(root, "home_dirs", "alice", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "remember the milk\n", string(data))

	_, err = os.Stat(filepath.Join(root, "affiliation.json"))
	require.NoError(t, err)
}

func TestParseAlgorithm(t *testing.T) {
	for _, s := range []string{"none", "gz", "zstd", "zip"} {
		algo, err := ParseAlgorithm(s)
		require.NoError(t, err)
		assert.Equal(t, Algorithm(s), algo)
	}

	_, err := ParseAlgorithm("rar")
	assert.ErrorContains(t, err, "unknown compression")
}

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want Algorithm
	}{
		{"/backups/backup_20240115_103000.tar.gz", Gz},
		{"/backups/backup.tgz", Gz},
		{"/backups/backup_20240115_103000.tar.zst", Zstd},
		{"/backups/backup_20240115_103000.zip", Zip},
	}
	for _, tt := range tests {
		algo, err := Detect(tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, algo)
	}

	dir := t.TempDir()
	algo, err := Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, None, algo)

	_, err = Detect("/backups/backup_20240115.rar")
	var unknown *UnknownFormatError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Path, ".rar")
}

func TestPackUnpackRoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{Gz, Zstd, Zip} {
		t.Run(string(algo), func(t *testing.T) {
			staging := stageTree(t)
			destStem := filepath.Join(t.TempDir(), "backup_20240115_103000")

			artifact, err := Pack(staging, destStem, algo)
			require.NoError(t, err)
			assert.Equal(t, destStem+algo.Extension(), artifact)

			// staging tree is consumed by packing
			_, err = os.Stat(staging)
			assert.True(t, os.IsNotExist(err))

			detected, err := Detect(artifact)
			require.NoError(t, err)
			assert.Equal(t, algo, detected)

			extracted, err := Unpack(artifact, t.TempDir(), algo)
			require.NoError(t, err)
			assertTreeContent(t, extracted)
		})
	}
}

func TestPackNoneMovesStaging(t *testing.T) {
	staging := stageTree(t)
	destStem := filepath.Join(t.TempDir(), "backup_20240115_103000")

	artifact, err := Pack(staging, destStem, None)
	require.NoError(t, err)
	assert.Equal(t, destStem, artifact)

	info, err := os.Stat(artifact)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assertTreeContent(t, artifact)

	root, err := Unpack(artifact, "", None)
	require.NoError(t, err)
	assert.Equal(t, artifact, root)
}

func TestUnpackNoneRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Unpack(file, "", None)
	assert.ErrorContains(t, err, "not a directory archive")
}

func TestUntarRejectsEscapingEntries(t *testing.T) {
	_, err := secureJoin("/tmp/extract", "../outside")
	assert.ErrorContains(t, err, "escapes extraction directory")

	_, err = secureJoin("/tmp/extract", "inside/ok")
	assert.NoError(t, err)
}

func TestRoundTripPreservesFileMode(t *testing.T) {
	staging := stageTree(t)
	destStem := filepath.Join(t.TempDir(), "backup")

	artifact, err := Pack(staging, destStem, Gz)
	require.NoError(t, err)

	extracted, err := Unpack(artifact, t.TempDir(), Gz)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(extracted, "home_dirs", "alice", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
