// Package classify maps manifest paths to their location inside the
// archive tree. Classification runs as a full validation pass before any
// copying starts, so collisions and missing sources abort a backup
// before it writes anything.
package classify

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ragbak/internal/manifest"
)

type Kind string

const (
	KindHomeDirFile Kind = "home_dir_file"
	KindRootFile    Kind = "root_file"
	KindPlainFile   Kind = "plain_file"
	KindPlainDir    Kind = "plain_dir"
)

// Path is a manifest entry with its computed archive location.
type Path struct {
	Source         string
	ArchiveSubpath string
	Kind           Kind
	IsDir          bool
	Mode           fs.FileMode
}

// CollisionError reports two distinct sources mapping to the same
// archive subpath.
type CollisionError struct {
	ArchiveSubpath string
	First          string
	Second         string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("archive path collision: %s and %s both map to %s",
		e.First, e.Second, e.ArchiveSubpath)
}

type Classifier struct {
	homeDirs []string
}

// New builds a classifier. homeDirs lists directories whose contents
// belong under home_dirs/<username>/; /root and /home/<user> paths are
// always recognized even when not listed.
func New(homeDirs []string) *Classifier {
	return &Classifier{homeDirs: homeDirs}
}

// KnownHomeDirs enumerates home directories on the running system:
// /home/* plus /root plus the invoking user's home.
func KnownHomeDirs() []string {
	dirs := []string{"/root"}
	if matches, err := filepath.Glob("/home/*"); err == nil {
		dirs = append(dirs, matches...)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	return dirs
}

// Classify computes the archive location for one entry. The source must
// exist; its type is probed with Lstat so symlinks are not followed.
func (c *Classifier) Classify(entry manifest.Entry) (Path, error) {
	info, err := os.Lstat(entry.Path)
	if err != nil {
		return Path{}, fmt.Errorf("cannot stat %s: %w", entry.Path, err)
	}

	subpath, kind := c.archiveSubpath(entry.Path)
	p := Path{
		Source:         entry.Path,
		ArchiveSubpath: subpath,
		Kind:           kind,
		IsDir:          info.IsDir(),
		Mode:           info.Mode(),
	}
	if kind == KindPlainFile && p.IsDir {
		p.Kind = KindPlainDir
	}
	return p, nil
}

// ClassifyAll classifies every entry and rejects archive-subpath
// collisions. Subpaths that differ only by case are treated as
// colliding when they refer to the same file on disk.
func (c *Classifier) ClassifyAll(entries []manifest.Entry) ([]Path, error) {
	paths := make([]Path, 0, len(entries))
	bySubpath := make(map[string]Path)
	byFolded := make(map[string]Path)

	for _, entry := range entries {
		p, err := c.Classify(entry)
		if err != nil {
			return nil, err
		}

		if prev, ok := bySubpath[p.ArchiveSubpath]; ok {
			return nil, &CollisionError{
				ArchiveSubpath: p.ArchiveSubpath,
				First:          prev.Source,
				Second:         p.Source,
			}
		}
		folded := strings.ToLower(p.ArchiveSubpath)
		if prev, ok := byFolded[folded]; ok && sameFile(prev.Source, p.Source) {
			return nil, &CollisionError{
				ArchiveSubpath: p.ArchiveSubpath,
				First:          prev.Source,
				Second:         p.Source,
			}
		}

		bySubpath[p.ArchiveSubpath] = p
		byFolded[folded] = p
		paths = append(paths, p)
	}

	return paths, nil
}

func (c *Classifier) archiveSubpath(src string) (string, Kind) {
	if src == "/root" || strings.HasPrefix(src, "/root/") {
		rel := strings.TrimPrefix(strings.TrimPrefix(src, "/root"), "/")
		return filepath.Join("home_dirs", "root", rel), KindRootFile
	}

	if strings.HasPrefix(src, "/home/") {
		parts := strings.Split(strings.TrimPrefix(src, "/"), "/")
		if len(parts) >= 2 {
			username := parts[1]
			rel := strings.Join(parts[2:], "/")
			return filepath.Join("home_dirs", username, rel), KindHomeDirFile
		}
	}

	for _, home := range c.homeDirs {
		if src == home || strings.HasPrefix(src, home+"/") {
			rel := strings.TrimPrefix(strings.TrimPrefix(src, home), "/")
			return filepath.Join("home_dirs", filepath.Base(home), rel), KindHomeDirFile
		}
	}

	return filepath.Join("files", strings.TrimPrefix(src, "/")), KindPlainFile
}

func sameFile(a, b string) bool {
	ai, err := os.Lstat(a)
	if err != nil {
		return false
	}
	bi, err := os.Lstat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
