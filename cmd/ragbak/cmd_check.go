package main

import (
	"context"
	"fmt"
	"os"

	"ragbak/internal/check"
	"ragbak/internal/config"
)

func runCheck(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	return check.Run(ctx, cfg, check.Options{}, os.Stdout)
}
