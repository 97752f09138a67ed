package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ragbak/internal/config"
	"ragbak/internal/remote"
	"ragbak/internal/restore"
	"ragbak/internal/ui"
)

func runRestore(ctx context.Context, configPath, archive, source, destRoot, conflict string, dryRun, verbose bool) error {
	if ctx.Err() != nil {
		return fmt.Errorf("restore cancelled before start: %w", ctx.Err())
	}

	policy, err := restore.ParsePolicy(conflict)
	if err != nil {
		return err
	}

	archivePath := archive
	if source == "s3" {
		archivePath, err = fetchArchive(ctx, configPath, archive)
		if err != nil {
			return err
		}
		defer os.RemoveAll(filepath.Dir(archivePath))
	} else if source != "local" {
		return fmt.Errorf("source must be local or s3, got %s", source)
	}

	if dryRun {
		ui.Detailf("Running restore in dry-run mode: nothing will be written.")
	}

	report, err := restore.Run(archivePath, restore.Options{
		DestRoot: destRoot,
		Policy:   policy,
		Prompter: stdinPrompter,
		DryRun:   dryRun,
		Verbose:  verbose,
	})
	if err != nil {
		return err
	}

	ui.Okf("Restored: %d, overwritten: %d, skipped: %d, failed: %d",
		report.Restored, report.Overwritten, report.Skipped, report.Failed)
	for _, f := range report.Failures {
		ui.Failf("failed: %s -> %s: %s", f.ArchivePath, f.Target, f.Reason)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d files failed to restore", report.Failed)
	}
	return nil
}

// fetchArchive downloads an archive (and its checksum file when present)
// from S3 into a fresh temp directory and returns the local path.
func fetchArchive(ctx context.Context, configPath, name string) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.S3.Enabled {
		return "", fmt.Errorf("S3 is not enabled in config")
	}

	backend, err := remote.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Region,
		cfg.S3.Prefix, cfg.S3.Endpoint, cfg.S3.StorageClass, cfg.S3RetryAttempts())
	if err != nil {
		return "", fmt.Errorf("failed to initialize S3 backend: %w", err)
	}
	if err := backend.VerifyCredentials(ctx); err != nil {
		return "", fmt.Errorf("AWS credentials verification failed: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "ragbak_fetch_*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	base := filepath.Base(name)
	localPath := filepath.Join(tempDir, base)
	remotePath := filepath.Join("archives", base)

	ui.Infof("Downloading s3://%s/%s...", cfg.S3.Bucket, remotePath)
	if err := backend.Download(ctx, remotePath, localPath); err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to download archive: %w", err)
	}

	if err := backend.Download(ctx, remotePath+".b3", localPath+".b3"); err != nil {
		ui.Warnf("No checksum file for %s; skipping verification.", base)
		os.Remove(localPath + ".b3")
	}

	return localPath, nil
}

// stdinPrompter asks on the terminal until it gets a y or n answer.
func stdinPrompter(target string) (restore.Decision, error) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s already exists. Overwrite? [y/n]: ", target)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return restore.DecisionOverwrite, nil
		case "n", "no":
			return restore.DecisionSkip, nil
		}
		fmt.Println("Please answer y or n.")
	}
}
