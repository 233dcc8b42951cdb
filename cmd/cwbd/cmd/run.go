package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/lock"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/pipeline"
)

var runForce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve categories and download their media files",
	Long: `Run performs a full pass: scan the SQL dumps, resolve the requested
categories (recursively by default), merge the discovered files into the
progress index and download everything still pending.

The run process:
  1. Load the progress index (resumes prior runs)
  2. Stream the linktarget, categorylinks and page dumps
  3. Resolve requested categories to file titles (BFS over subcategories)
  4. Download pending files with the bounded worker pool

Example:
  cwbd run --config cwbd.yaml --categories categories.txt`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false,
		"Run even if the lock file cannot be acquired (use with caution)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	log.Infow("Starting run",
		"config", GetConfigFile(),
		"categories", cfg.Categories.File,
		"recursive", cfg.Categories.Recursive,
	)

	ctx, cancel := signalContext(log)
	defer cancel()

	if err := acquireLock(cfg.LockPath(), runForce, log); err != nil {
		return err
	}
	defer releaseLock(cfg.LockPath(), runForce, log)

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Run cancelled by user")
			printRunSummary(cmd, result)
			return nil
		}
		return fmt.Errorf("run failed: %w", err)
	}

	printRunSummary(cmd, result)
	if len(result.CategoriesMissing) > 0 {
		return fmt.Errorf("%d requested categories could not be resolved", len(result.CategoriesMissing))
	}
	return nil
}

func printRunSummary(cmd *cobra.Command, result *pipeline.Result) {
	cmd.Printf("\n=== Run Complete ===\n")
	cmd.Printf("Duration: %s\n", result.Duration.Round(humanizeRound))
	cmd.Printf("Rows scanned: %s (skipped %s malformed)\n",
		humanize.Comma(result.RowsScanned), humanize.Comma(result.RowsSkipped))
	cmd.Printf("Categories resolved: %d (skipped %d already processed)\n",
		result.CategoriesResolved, result.CategoriesSkipped)
	cmd.Printf("Files discovered: %s\n", humanize.Comma(int64(result.FilesDiscovered)))
	cmd.Printf("Downloaded: %s  Skipped: %s  Failed: %s\n",
		humanize.Comma(int64(result.Downloaded)),
		humanize.Comma(int64(result.Skipped)),
		humanize.Comma(int64(result.Failed)))
	cmd.Printf("Success: %v\n", result.Success)

	if len(result.CategoriesMissing) > 0 {
		cmd.Printf("\nMissing categories:\n")
		for _, cat := range result.CategoriesMissing {
			cmd.Printf("  - %s\n", cat)
		}
	}
}

const humanizeRound = time.Millisecond

var activeLock *lock.RunLock

// acquireLock takes the run lock, or warns and continues when forced.
func acquireLock(path string, force bool, log *logger.Logger) error {
	if force {
		log.Warnw("Skipping lock acquisition (--force flag used)", "path", path)
		return nil
	}
	runLock := lock.New(path)
	if err := runLock.Acquire(); err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return fmt.Errorf("another cwbd instance is already running (use --force to override): %w", err)
		}
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	activeLock = runLock
	log.Infow("Acquired run lock", "path", path)
	return nil
}

func releaseLock(path string, force bool, log *logger.Logger) {
	if force || activeLock == nil {
		return
	}
	if err := activeLock.Release(); err != nil {
		log.Warnw("Failed to release run lock", "path", path, "error", err)
	}
	activeLock = nil
}
