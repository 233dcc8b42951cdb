package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/pipeline"
)

var downloadForce bool

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download every pending file recorded in the progress index",
	Long: `Download fetches every file the index marks pending or invalid,
without re-scanning the dumps. Files already present in the output
directory are skipped; invalid files from earlier runs are retried.

Example:
  cwbd download --config cwbd.yaml --workers 20`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadForce, "force", false,
		"Run even if the lock file cannot be acquired (use with caution)")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	log.Infow("Starting download",
		"config", GetConfigFile(),
		"workers", cfg.Download.Workers,
		"output_dir", cfg.Download.OutputDir,
	)

	ctx, cancel := signalContext(log)
	defer cancel()

	if err := acquireLock(cfg.LockPath(), downloadForce, log); err != nil {
		return err
	}
	defer releaseLock(cfg.LockPath(), downloadForce, log)

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.Download(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Download cancelled by user")
			printDownloadSummary(cmd, result)
			return nil
		}
		return fmt.Errorf("download failed: %w", err)
	}

	printDownloadSummary(cmd, result)
	return nil
}

func printDownloadSummary(cmd *cobra.Command, result *pipeline.Result) {
	cmd.Printf("\n=== Download Complete ===\n")
	cmd.Printf("Duration: %s\n", result.Duration.Round(humanizeRound))
	cmd.Printf("Downloaded: %s\n", humanize.Comma(int64(result.Downloaded)))
	cmd.Printf("Skipped (already on disk): %s\n", humanize.Comma(int64(result.Skipped)))
	cmd.Printf("Failed: %s\n", humanize.Comma(int64(result.Failed)))
}
