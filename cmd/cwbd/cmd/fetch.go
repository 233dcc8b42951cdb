package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/pipeline"
)

var fetchForce bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Resolve categories into the progress index without downloading",
	Long: `Fetch scans the SQL dumps, resolves the requested categories and
records the discovered file titles in the progress index. No media is
downloaded; a later download (or run) picks up the pending files.

Example:
  cwbd fetch --config cwbd.yaml --categories categories.txt`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false,
		"Run even if the lock file cannot be acquired (use with caution)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	log.Infow("Starting fetch",
		"config", GetConfigFile(),
		"categories", cfg.Categories.File,
		"recursive", cfg.Categories.Recursive,
	)

	ctx, cancel := signalContext(log)
	defer cancel()

	if err := acquireLock(cfg.LockPath(), fetchForce, log); err != nil {
		return err
	}
	defer releaseLock(cfg.LockPath(), fetchForce, log)

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.Fetch(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Fetch cancelled by user")
			return nil
		}
		return fmt.Errorf("fetch failed: %w", err)
	}

	cmd.Printf("\n=== Fetch Complete ===\n")
	cmd.Printf("Duration: %s\n", result.Duration.Round(humanizeRound))
	cmd.Printf("Rows scanned: %s (skipped %s malformed)\n",
		humanize.Comma(result.RowsScanned), humanize.Comma(result.RowsSkipped))
	cmd.Printf("Categories resolved: %d (skipped %d already processed)\n",
		result.CategoriesResolved, result.CategoriesSkipped)
	cmd.Printf("New files discovered: %s\n", humanize.Comma(int64(result.FilesDiscovered)))

	if len(result.CategoriesMissing) > 0 {
		cmd.Printf("\nMissing categories:\n")
		for _, cat := range result.CategoriesMissing {
			cmd.Printf("  - %s\n", cat)
		}
		return fmt.Errorf("%d requested categories could not be resolved", len(result.CategoriesMissing))
	}
	return nil
}
