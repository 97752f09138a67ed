package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ragbak/internal/archive"
	"ragbak/internal/classify"
	"ragbak/internal/compress"
	"ragbak/internal/config"
	"ragbak/internal/hash"
	"ragbak/internal/lock"
	"ragbak/internal/logging"
	"ragbak/internal/manifest"
	"ragbak/internal/metadata"
	"ragbak/internal/remote"
	"ragbak/internal/ui"
	"ragbak/internal/util"
)

type Options struct {
	// Compression overrides the configured algorithm when set.
	Compression string
	// OutputDir overrides the default backups directory when set.
	OutputDir string
	DryRun    bool
	Verbose   bool

	// Collector defaults to the APT collector; tests inject fakes.
	Collector metadata.Collector
	// HomeDirs defaults to the home directories of the running system.
	HomeDirs []string
}

// Run performs one backup: read the manifest, classify, build the
// staging tree, pack it, and optionally upload the artifact. Returns
// the artifact path, or "" when the manifest was empty.
func Run(ctx context.Context, cfg *config.Config, opts Options) (string, error) {
	if ctx.Err() != nil {
		return "", fmt.Errorf("backup cancelled before start: %w", ctx.Err())
	}

	algoName := cfg.Compression
	if opts.Compression != "" {
		algoName = opts.Compression
	}
	algo, err := compress.ParseAlgorithm(algoName)
	if err != nil {
		return "", err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = util.BackupsDir(cfg.BaseDir)
	}
	if err := util.SetupDirectories(cfg.BaseDir, outputDir, util.RunDir(cfg.BaseDir), util.LogDir(cfg.BaseDir)); err != nil {
		return "", err
	}

	logPath := filepath.Join(util.LogDir(cfg.BaseDir), fmt.Sprintf("%s.log", time.Now().Format("2006-01-02")))
	logger, logFile, err := logging.NewLogger(logPath, opts.Verbose)
	if err != nil {
		return "", fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFile.Close()
	slog.SetDefault(logger)
	slog.Info("Backup started", "manifest", cfg.Manifest, "compression", algo, "dryRun", opts.DryRun)

	lockPath := filepath.Join(util.RunDir(cfg.BaseDir), "ragbak.lock")
	releaseLock, err := lock.Acquire(lockPath, "backup")
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if err := releaseLock(); err != nil {
			slog.Warn("Failed to release lock", "error", err)
		}
	}()

	if opts.DryRun {
		ui.Detailf("Running backup in dry-run mode: all files in the archive will be empty.")
	} else {
		ui.Okf("Running real backup: files will be copied with data.")
	}

	created, err := manifest.EnsureExists(cfg.Manifest)
	if err != nil {
		return "", err
	}
	if created {
		ui.Okf("Created manifest: %s", cfg.Manifest)
	}

	entries, err := manifest.Read(cfg.Manifest)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		ui.Warnf("No files or folders listed in %s. Nothing to back up.", cfg.Manifest)
		return "", nil
	}
	slog.Info("Manifest read", "entries", len(entries))

	homeDirs := opts.HomeDirs
	if homeDirs == nil {
		homeDirs = classify.KnownHomeDirs()
	}
	paths, err := classify.New(homeDirs).ClassifyAll(entries)
	if err != nil {
		return "", err
	}
	slog.Info("Paths classified", "count", len(paths))

	if ctx.Err() != nil {
		return "", fmt.Errorf("backup cancelled before copying: %w", ctx.Err())
	}

	staging, err := os.MkdirTemp("", "ragbak_staging_*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		// Pack consumes the staging tree on success; this only fires
		// when the run aborts partway.
		if err := os.RemoveAll(staging); err != nil {
			slog.Warn("Failed to remove staging directory", "path", staging, "error", err)
		}
	}()

	collector := opts.Collector
	if collector == nil {
		collector = metadata.AptCollector{}
	}
	ui.Infof("Collecting system metadata...")
	snap := metadata.Collect(ctx, collector)

	ui.Infof("Collecting files and building backup structure...")
	index, err := archive.Build(paths, snap, staging, archive.Options{
		DryRun:  opts.DryRun,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return "", err
	}

	stem := filepath.Join(outputDir, util.ArchiveBaseName(time.Now()))
	artifact, err := compress.Pack(staging, stem, algo)
	if err != nil {
		return "", err
	}
	slog.Info("Archive packed", "artifact", artifact, "algorithm", algo, "files", index.Len())

	var checksum string
	if algo != compress.None {
		checksum, err = hash.BLAKE3File(artifact)
		if err != nil {
			return "", fmt.Errorf("failed to hash archive: %w", err)
		}
		// Sidecar lets restore verify the archive before unpacking.
		if err := os.WriteFile(artifact+".b3", []byte(checksum+"\n"), 0o644); err != nil {
			return "", fmt.Errorf("failed to write checksum file: %w", err)
		}
		slog.Info("Archive BLAKE3", "hash", checksum)
	}

	if cfg.S3.Enabled {
		if algo == compress.None {
			slog.Warn("Skipping S3 upload: compression 'none' produces a directory, not an archive file")
		} else {
			backend, err := remote.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Region,
				cfg.S3.Prefix, cfg.S3.Endpoint, cfg.S3.StorageClass, cfg.S3RetryAttempts())
			if err != nil {
				return "", fmt.Errorf("failed to initialize S3 backend: %w", err)
			}
			if err := backend.VerifyCredentials(ctx); err != nil {
				return "", fmt.Errorf("AWS credentials verification failed: %w", err)
			}
			remotePath := filepath.Join("archives", filepath.Base(artifact))
			if err := backend.Upload(ctx, artifact, remotePath, checksum); err != nil {
				return "", fmt.Errorf("failed to upload archive: %w", err)
			}
			if err := backend.Upload(ctx, artifact+".b3", remotePath+".b3", ""); err != nil {
				slog.Warn("Failed to upload checksum file", "error", err)
			}
			ui.Okf("Uploaded archive to s3://%s/%s", cfg.S3.Bucket, remotePath)
		}
	}

	ui.Okf("Backup complete: %s (%d files)", artifact, index.Len())
	slog.Info("Backup completed successfully", "artifact", artifact)
	return artifact, nil
}
