// Package compress turns a finished staging tree into a single archive
// file and back. Round trips preserve content, not bytes: timestamps and
// container framing may differ between runs.
package compress

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

type Algorithm string

const (
	// None keeps the staging directory itself as the deliverable.
	None Algorithm = "none"
	Gz   Algorithm = "gz"
	Zstd Algorithm = "zstd"
	Zip  Algorithm = "zip"
)

// UnknownFormatError reports an archive whose format could not be
// determined from its extension.
type UnknownFormatError struct {
	Path string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("cannot determine archive format of %s (expected .tar.gz, .tar.zst, .zip, or a directory)", e.Path)
}

// MissingDependencyError reports an unavailable compression codec.
type MissingDependencyError struct {
	Dependency string
	Err        error
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("required dependency %s is unavailable: %v", e.Dependency, e.Err)
}

func (e *MissingDependencyError) Unwrap() error { return e.Err }

func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case None, Gz, Zstd, Zip:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unknown compression %q (expected none, gz, zstd or zip)", s)
	}
}

// Extension returns the artifact suffix for the algorithm. None has no
// suffix because its deliverable is a directory.
func (a Algorithm) Extension() string {
	switch a {
	case Gz:
		return ".tar.gz"
	case Zstd:
		return ".tar.zst"
	case Zip:
		return ".zip"
	default:
		return ""
	}
}

// Detect infers the algorithm of an existing archive from its name, or
// None for a directory.
func Detect(path string) (Algorithm, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return None, nil
	}
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return Gz, nil
	case strings.HasSuffix(path, ".tar.zst"):
		return Zstd, nil
	case strings.HasSuffix(path, ".zip"):
		return Zip, nil
	default:
		return "", &UnknownFormatError{Path: path}
	}
}

// Pack turns stagingDir into the final artifact destStem+ext and
// removes the staging tree. For None the staging directory is moved to
// destStem as-is. Returns the artifact path.
func Pack(stagingDir, destStem string, algo Algorithm) (string, error) {
	dest := destStem + algo.Extension()

	switch algo {
	case None:
		if err := moveTree(stagingDir, dest); err != nil {
			return "", fmt.Errorf("failed to move staging directory: %w", err)
		}
		return dest, nil
	case Gz:
		err := withCreated(dest, func(f *os.File) error {
			zw := pgzip.NewWriter(f)
			if err := tarDir(zw, stagingDir); err != nil {
				zw.Close()
				return err
			}
			return zw.Close()
		})
		if err != nil {
			return "", err
		}
	case Zstd:
		err := withCreated(dest, func(f *os.File) error {
			zw, err := zstd.NewWriter(f)
			if err != nil {
				return &MissingDependencyError{Dependency: "zstd encoder", Err: err}
			}
			if err := tarDir(zw, stagingDir); err != nil {
				zw.Close()
				return err
			}
			return zw.Close()
		})
		if err != nil {
			return "", err
		}
	case Zip:
		if err := zipDir(dest, stagingDir); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown compression %q", algo)
	}

	if err := os.RemoveAll(stagingDir); err != nil {
		return "", fmt.Errorf("failed to remove staging directory: %w", err)
	}
	return dest, nil
}

// Unpack extracts an archive into destDir and returns the directory
// holding the archive root. A None archive is already a directory and is
// used in place.
func Unpack(archivePath, destDir string, algo Algorithm) (string, error) {
	switch algo {
	case None:
		info, err := os.Stat(archivePath)
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			return "", fmt.Errorf("%s is not a directory archive", archivePath)
		}
		return archivePath, nil
	case Gz:
		err := withOpened(archivePath, func(f *os.File) error {
			zr, err := pgzip.NewReader(f)
			if err != nil {
				return fmt.Errorf("failed to open gzip stream: %w", err)
			}
			defer zr.Close()
			return untar(zr, destDir)
		})
		if err != nil {
			return "", err
		}
	case Zstd:
		err := withOpened(archivePath, func(f *os.File) error {
			zr, err := zstd.NewReader(f)
			if err != nil {
				return &MissingDependencyError{Dependency: "zstd decoder", Err: err}
			}
			defer zr.Close()
			return untar(zr, destDir)
		})
		if err != nil {
			return "", err
		}
	case Zip:
		if err := unzip(archivePath, destDir); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown compression %q", algo)
	}
	return destDir, nil
}

func withCreated(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func withOpened(path string, fn func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

func tarDir(w io.Writer, dir string) error {
	tw := tar.NewWriter(w)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return fmt.Errorf("cannot archive irregular file %s", path)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

func untar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar stream: %w", err)
		}

		target, err := secureJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeFileFrom(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported tar entry type %c for %s", hdr.Typeflag, hdr.Name)
		}
	}
}

func zipDir(dest, dir string) error {
	return withCreated(dest, func(f *os.File) error {
		zw := zip.NewWriter(f)

		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			if rel == "." || d.IsDir() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return fmt.Errorf("cannot archive irregular file %s", path)
			}

			hdr, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			hdr.Name = filepath.ToSlash(rel)
			hdr.Method = zip.Deflate

			w, err := zw.CreateHeader(hdr)
			if err != nil {
				return err
			}
			src, err := os.Open(path)
			if err != nil {
				return err
			}
			defer src.Close()
			_, err = io.Copy(w, src)
			return err
		})
		if err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	})
}

func unzip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		target, err := secureJoin(destDir, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, file.Mode().Perm()); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := file.Open()
		if err != nil {
			return err
		}
		err = writeFileFrom(target, rc, file.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// secureJoin rejects entries that would escape the extraction root.
func secureJoin(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

func writeFileFrom(path string, r io.Reader, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// moveTree renames src to dest, falling back to a copy when the two
// live on different filesystems.
func moveTree(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyTree(src, dest); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("cannot copy irregular file %s", path)
		}
		return withOpened(path, func(f *os.File) error {
			return writeFileFrom(target, f, info.Mode().Perm())
		})
	})
}
