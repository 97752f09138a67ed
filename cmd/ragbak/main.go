package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "ragbak",
		Usage:   "Declarative backup and restore for hand-picked files",
		Version: "0.1.0",
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "Archive everything listed in the manifest",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "compress",
						Usage: "Compression algorithm: none, gz, zstd, or zip (overrides config)",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Directory to place the archive in (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Build the archive structure with empty placeholder files",
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Print each file as it is processed",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runBackup(ctx, cmd.String("config"), cmd.String("compress"),
						cmd.String("output"), cmd.Bool("dry-run"), cmd.Bool("verbose"))
				},
			},
			{
				Name:  "restore",
				Usage: "Restore files from an archive to their original locations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "archive",
						Usage:    "Path to the archive, or its name when --source is s3",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Archive source: local or s3",
						Value: "local",
					},
					&cli.StringFlag{
						Name:  "dest-root",
						Usage: "Prefix all restore targets with this directory",
					},
					&cli.StringFlag{
						Name:  "conflict",
						Usage: "What to do when a target exists: overwrite, skip, or prompt",
						Value: "prompt",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Show what would be restored without writing anything",
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Print each file as it is restored",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runRestore(ctx, cmd.String("config"), cmd.String("archive"),
						cmd.String("source"), cmd.String("dest-root"),
						cmd.String("conflict"), cmd.Bool("dry-run"), cmd.Bool("verbose"))
				},
			},
			{
				Name:  "list",
				Usage: "List available backup archives",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "source",
						Usage: "Data source: local or s3",
						Value: "local",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runList(ctx, cmd.String("config"), cmd.String("source"))
				},
			},
			{
				Name:  "check",
				Usage: "Validate config, manifest, and remote credentials",
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCheck(ctx, cmd.String("config"))
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\ninterrupted")
			os.Exit(130)
		}
		slog.Error("CLI error", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "config",
		Usage: "path to configuration yaml file",
		Value: "ragbak_config.yaml",
	}
}
