package main

import (
	"context"
	"fmt"

	"ragbak/internal/backup"
	"ragbak/internal/config"
)

func runBackup(ctx context.Context, configPath, compression, outputDir string, dryRun, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	_, err = backup.Run(ctx, cfg, backup.Options{
		Compression: compression,
		OutputDir:   outputDir,
		DryRun:      dryRun,
		Verbose:     verbose,
	})
	return err
}
