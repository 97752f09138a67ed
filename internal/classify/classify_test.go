package classify

import (
	"os"
	"path/filepath"
	"testing"

	"ragbak/internal/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveSubpath(t *testing.T) {
	c := New([]string{"/var/homes/bob"})

	tests := []struct {
		name     string
		src      string
		wantPath string
		wantKind Kind
	}{
		{
			name:     "root home file",
			src:      "/root/.bashrc",
			wantPath: "home_dirs/root/.bashrc",
			wantKind: KindRootFile,
		},
		{
			name:     "root home itself",
			src:      "/root",
			wantPath: "home_dirs/root",
			wantKind: KindRootFile,
		},
		{
			name:     "user home file",
			src:      "/home/alice/notes.txt",
			wantPath: "home_dirs/alice/notes.txt",
			wantKind: KindHomeDirFile,
		},
		{
			name:     "nested user home path",
			src:      "/home/alice/.config/app/settings.ini",
			wantPath: "home_dirs/alice/.config/app/settings.ini",
			wantKind: KindHomeDirFile,
		},
		{
			name:     "known home dir outside /home",
			src:      "/var/homes/bob/todo.md",
			wantPath: "home_dirs/bob/todo.md",
			wantKind: KindHomeDirFile,
		},
		{
			name:     "plain system file",
			src:      "/etc/hostname",
			wantPath: "files/etc/hostname",
			wantKind: KindPlainFile,
		},
		{
			name:     "plain nested path",
			src:      "/usr/local/share/data",
			wantPath: "files/usr/local/share/data",
			wantKind: KindPlainFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPath, gotKind := c.archiveSubpath(tt.src)
			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, tt.wantKind, gotKind)
		})
	}
}

func TestClassifyStatsSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	sub := filepath.Join(dir, "subdir")
	require.NoError(t, os.Mkdir(sub, 0o755))

	c := New(nil)

	p, err := c.Classify(manifest.Entry{Line: 1, Path: file})
	require.NoError(t, err)
	assert.Equal(t, KindPlainFile, p.Kind)
	assert.False(t, p.IsDir)
	assert.Equal(t, filepath.Join("files", file[1:]), p.ArchiveSubpath)

	p, err = c.Classify(manifest.Entry{Line: 2, Path: sub})
	require.NoError(t, err)
	assert.Equal(t, KindPlainDir, p.Kind)
	assert.True(t, p.IsDir)
}

func TestClassifyMissingSource(t *testing.T) {
	c := New(nil)
	_, err := c.Classify(manifest.Entry{Line: 1, Path: filepath.Join(t.TempDir(), "gone")})
	assert.ErrorContains(t, err, "cannot stat")
}

func TestClassifyDoesNotFollowSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(target, 0o755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	c := New(nil)
	p, err := c.Classify(manifest.Entry{Line: 1, Path: link})
	require.NoError(t, err)
	assert.False(t, p.IsDir)
	assert.NotZero(t, p.Mode&os.ModeSymlink)
}

func TestClassifyAllDetectsCollision(t *testing.T) {
	// Two home dirs with the same base name map to the same
	// home_dirs/<username> subtree.
	base := t.TempDir()
	homeA := filepath.Join(base, "siteA", "alice")
	homeB := filepath.Join(base, "siteB", "alice")
	require.NoError(t, os.MkdirAll(homeA, 0o755))
	require.NoError(t, os.MkdirAll(homeB, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(homeA, "f.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(homeB, "f.txt"), []byte("b"), 0o644))

	c := New([]string{homeA, homeB})
	_, err := c.ClassifyAll([]manifest.Entry{
		{Line: 1, Path: filepath.Join(homeA, "f.txt")},
		{Line: 2, Path: filepath.Join(homeB, "f.txt")},
	})

	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "home_dirs/alice/f.txt", collision.ArchiveSubpath)
	assert.Equal(t, filepath.Join(homeA, "f.txt"), collision.First)
	assert.Equal(t, filepath.Join(homeB, "f.txt"), collision.Second)
}

func TestClassifyAllCaseVariantsAreDistinct(t *testing.T) {
	// On a case-sensitive filesystem differently-cased names are
	// different files and must not collide.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.txt"), []byte("2"), 0o644))

	c := New(nil)
	paths, err := c.ClassifyAll([]manifest.Entry{
		{Line: 1, Path: filepath.Join(dir, "a.txt")},
		{Line: 2, Path: filepath.Join(dir, "A.txt")},
	})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestKnownHomeDirsIncludesRoot(t *testing.T) {
	assert.Contains(t, KnownHomeDirs(), "/root")
}
