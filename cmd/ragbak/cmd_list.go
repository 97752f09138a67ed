package main

import (
	"context"
	"fmt"
	"os"

	"ragbak/internal/config"
	"ragbak/internal/list"
)

func runList(ctx context.Context, configPath, source string) error {
	if source != "local" && source != "s3" {
		return fmt.Errorf("source must be local or s3, got %s", source)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	return list.Run(ctx, cfg, source, os.Stdout)
}
