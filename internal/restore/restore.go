// Package restore copies archived files back to their original
// locations, resolving conflicts per file.
package restore

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ragbak/internal/affiliation"
	"ragbak/internal/compress"
	"ragbak/internal/hash"
	"ragbak/internal/ui"
)

type Policy string

const (
	PolicyOverwrite Policy = "overwrite"
	PolicySkip      Policy = "skip"
	// PolicyPrompt asks the prompter once per conflicting file; the
	// answer applies to that file only.
	PolicyPrompt Policy = "prompt"
)

type Decision string

const (
	DecisionOverwrite Decision = "overwrite"
	DecisionSkip      Decision = "skip"
)

// ParsePolicy maps the --conflict flag to a policy; an empty value
// means prompting.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "":
		return PolicyPrompt, nil
	case string(PolicyOverwrite), string(PolicySkip):
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (expected overwrite or skip)", s)
	}
}

// Prompter decides the fate of one conflicting target path. It stands in
// for terminal interaction so the engine stays testable.
type Prompter func(target string) (Decision, error)

type Options struct {
	// DestRoot is prepended to every original source path; "/" restores
	// in place.
	DestRoot string
	Policy   Policy
	Prompter Prompter
	DryRun   bool
	Verbose  bool
}

type Failure struct {
	ArchivePath string
	Target      string
	Reason      string
}

// Report aggregates the outcome of one restore run.
type Report struct {
	Restored    int
	Overwritten int
	Skipped     int
	Failed      int
	Failures    []Failure
}

// Run restores an archive file or directory. Non-directory archives are
// unpacked into a temporary directory first.
func Run(archivePath string, opts Options) (*Report, error) {
	algo, err := compress.Detect(archivePath)
	if err != nil {
		return nil, err
	}

	root := archivePath
	if algo != compress.None {
		if err := verifyChecksumSidecar(archivePath); err != nil {
			return nil, err
		}

		tempDir, err := os.MkdirTemp("", "ragbak_restore_*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp directory: %w", err)
		}
		defer func() {
			if err := os.RemoveAll(tempDir); err != nil {
				slog.Warn("Failed to remove temp directory", "path", tempDir, "error", err)
			}
		}()

		slog.Info("Unpacking archive", "archive", archivePath, "algorithm", algo)
		root, err = compress.Unpack(archivePath, tempDir, algo)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack archive: %w", err)
		}
	}

	return RestoreTree(root, opts)
}

// verifyChecksumSidecar checks the archive against its .b3 file when one
// sits beside it. A missing sidecar is not an error.
func verifyChecksumSidecar(archivePath string) error {
	data, err := os.ReadFile(archivePath + ".b3")
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read checksum file: %w", err)
	}
	expected := strings.TrimSpace(string(data))
	if err := hash.VerifyFile(archivePath, expected); err != nil {
		return fmt.Errorf("archive failed checksum verification: %w", err)
	}
	slog.Info("Archive checksum verified", "archive", archivePath)
	return nil
}

// RestoreTree restores from an unpacked archive root. Index-level
// problems abort before any file is touched; per-file copy failures are
// recorded and the run continues.
func RestoreTree(archiveRoot string, opts Options) (*Report, error) {
	if opts.DestRoot == "" {
		opts.DestRoot = "/"
	}
	if opts.Policy == "" {
		opts.Policy = PolicyPrompt
	}
	if opts.Policy == PolicyPrompt && opts.Prompter == nil {
		return nil, fmt.Errorf("prompt policy requires a prompter")
	}

	index, err := affiliation.Load(archiveRoot)
	if err != nil {
		return nil, err
	}
	slog.Info("Affiliation index loaded", "entries", index.Len())

	report := &Report{}
	for _, rec := range index.Records() {
		src := filepath.Join(archiveRoot, rec.ArchivePath)
		target := filepath.Join(opts.DestRoot, rec.SourcePath)

		if err := restoreOne(src, target, rec, opts, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func restoreOne(src, target string, rec affiliation.Record, opts Options, report *Report) error {
	if _, err := os.Lstat(src); err != nil {
		report.fail(rec.ArchivePath, target, fmt.Sprintf("missing from archive: %v", err))
		return nil
	}

	_, err := os.Lstat(target)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		report.fail(rec.ArchivePath, target, fmt.Sprintf("cannot stat target: %v", err))
		return nil
	}

	if !exists {
		if copyErr := place(src, target, opts.DryRun); copyErr != nil {
			report.fail(rec.ArchivePath, target, copyErr.Error())
			return nil
		}
		report.Restored++
		progress(opts, "Restored", target)
		return nil
	}

	decision := Decision(opts.Policy)
	if opts.Policy == PolicyPrompt {
		var err error
		decision, err = opts.Prompter(target)
		if err != nil {
			return fmt.Errorf("conflict prompt failed for %s: %w", target, err)
		}
	}

	switch decision {
	case DecisionOverwrite:
		if copyErr := place(src, target, opts.DryRun); copyErr != nil {
			report.fail(rec.ArchivePath, target, copyErr.Error())
			return nil
		}
		report.Overwritten++
		progress(opts, "Overwritten", target)
	case DecisionSkip:
		report.Skipped++
		progress(opts, "Skipped", target)
	default:
		return fmt.Errorf("unknown conflict decision %q for %s", decision, target)
	}
	return nil
}

func place(src, target string, dryRun bool) error {
	if dryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return copyFile(src, target)
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}

func (r *Report) fail(archivePath, target, reason string) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{ArchivePath: archivePath, Target: target, Reason: reason})
	slog.Warn("Restore failure", "archivePath", archivePath, "target", target, "reason", reason)
}

func progress(opts Options, what, target string) {
	if opts.Verbose {
		if opts.DryRun {
			ui.Detailf("[dry-run] %s: %s", what, target)
		} else {
			ui.Detailf("%s: %s", what, target)
		}
	}
	slog.Debug("Restore progress", "action", what, "target", target, "dryRun", opts.DryRun)
}
