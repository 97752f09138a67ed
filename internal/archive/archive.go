// Package archive builds the backup staging tree: one subtree per
// classification root plus the metadata files and the affiliation index.
package archive

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ragbak/internal/affiliation"
	"ragbak/internal/classify"
	"ragbak/internal/metadata"
	"ragbak/internal/ui"
)

type Options struct {
	// DryRun creates zero-length placeholders instead of copying
	// content, validating the archive structure without the I/O.
	DryRun  bool
	Verbose bool
}

// UnsupportedLinkError reports a symbolic link in the backup set.
// Links are neither followed nor preserved.
type UnsupportedLinkError struct {
	Path string
}

func (e *UnsupportedLinkError) Error() string {
	return fmt.Sprintf("symbolic link %s is not supported", e.Path)
}

// Build copies every classified path into destDir, then writes the
// metadata files and finally the affiliation index. Any copy failure
// aborts the whole build, leaving a tree without an index.
func Build(paths []classify.Path, snap metadata.Snapshot, destDir string, opts Options) (*affiliation.Index, error) {
	for _, sub := range []string{"home_dirs", "files", metadata.Dir} {
		if err := os.MkdirAll(filepath.Join(destDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive skeleton: %w", err)
		}
	}

	index := affiliation.New()

	for _, p := range paths {
		if p.Mode&os.ModeSymlink != 0 {
			return nil, &UnsupportedLinkError{Path: p.Source}
		}

		dest := filepath.Join(destDir, p.ArchiveSubpath)
		if p.IsDir {
			if err := copyDir(p, dest, index, opts); err != nil {
				return nil, err
			}
		} else {
			if err := copyEntry(p.Source, dest, p.ArchiveSubpath, p.Mode.Perm(), index, opts); err != nil {
				return nil, err
			}
		}
	}

	if err := writeLines(filepath.Join(destDir, metadata.Dir, metadata.PackagesFile), snap.Packages); err != nil {
		return nil, err
	}
	if err := writeLines(filepath.Join(destDir, metadata.Dir, metadata.AptSourcesFile), snap.AptSources); err != nil {
		return nil, err
	}

	if err := index.WriteFile(destDir); err != nil {
		return nil, err
	}
	slog.Info("Affiliation index written", "entries", index.Len())

	return index, nil
}

func copyDir(p classify.Path, dest string, index *affiliation.Index, opts Options) error {
	return filepath.WalkDir(p.Source, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", p.Source, err)
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("cannot stat %s: %w", path, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return &UnsupportedLinkError{Path: path}
		}

		rel, err := filepath.Rel(p.Source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("unsupported file type %s for %s", info.Mode().Type(), path)
		}

		subpath := filepath.Join(p.ArchiveSubpath, rel)
		return copyEntry(path, target, subpath, info.Mode().Perm(), index, opts)
	})
}

func copyEntry(src, dest, subpath string, perm os.FileMode, index *affiliation.Index, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}

	if opts.DryRun {
		if err := touch(dest); err != nil {
			return fmt.Errorf("failed to create placeholder %s: %w", dest, err)
		}
	} else {
		if err := copyFile(src, dest, perm); err != nil {
			return fmt.Errorf("failed to copy %s: %w", src, err)
		}
	}

	if err := index.Add(subpath, src); err != nil {
		return err
	}

	if opts.Verbose {
		ui.Detailf("Added: %s -> %s (empty: %t)", src, subpath, opts.DryRun)
	}
	slog.Debug("Archived file", "source", src, "subpath", subpath, "dryRun", opts.DryRun)
	return nil
}

func copyFile(src, dest string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func touch(dest string) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
