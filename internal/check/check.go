package check

import (
	"context"
	"fmt"
	"io"

	"ragbak/internal/classify"
	"ragbak/internal/config"
	"ragbak/internal/manifest"
	"ragbak/internal/remote"
)

type Options struct {
	// HomeDirs defaults to the home directories of the running system.
	HomeDirs []string
}

// Run validates the configuration, the manifest, and the S3 credentials
// when S3 is enabled, without touching any backup data.
func Run(ctx context.Context, cfg *config.Config, opts Options, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	fmt.Fprintln(out, "config: OK")

	entries, err := manifest.Read(cfg.Manifest)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	fmt.Fprintf(out, "manifest %s: OK (%d entries)\n", cfg.Manifest, len(entries))

	homeDirs := opts.HomeDirs
	if homeDirs == nil {
		homeDirs = classify.KnownHomeDirs()
	}
	if _, err := classify.New(homeDirs).ClassifyAll(entries); err != nil {
		return fmt.Errorf("classification: %w", err)
	}
	fmt.Fprintf(out, "classification: OK (%d paths, no collisions)\n", len(entries))

	if cfg.S3.Enabled {
		if err := remote.ValidateStorageClass(string(cfg.S3.StorageClass)); err != nil {
			return fmt.Errorf("S3 storage class: %w", err)
		}
		backend, err := remote.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Region,
			cfg.S3.Prefix, cfg.S3.Endpoint, cfg.S3.StorageClass, cfg.S3RetryAttempts())
		if err != nil {
			return fmt.Errorf("S3 init: %w", err)
		}
		if err := backend.VerifyCredentials(ctx); err != nil {
			return fmt.Errorf("S3 credentials: %w", err)
		}
		fmt.Fprintf(out, "S3 bucket %s: OK\n", cfg.S3.Bucket)
	}

	fmt.Fprintln(out, "all checks passed")
	return nil
}
