package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cleanForce bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the progress index and failure log",
	Long: `Clean removes the progress index, the failure log and any stale
lock file. The next run starts from scratch: every category is re-resolved
and files missing from the output directory are downloaded again.

Downloaded media files are never touched.

WARNING: This permanently discards resume state. Requires --force.

Example:
  cwbd clean --config cwbd.yaml --force`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false,
		"Confirm deletion of the progress index")

	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	if !cleanForce {
		return fmt.Errorf("clean discards all resume state; re-run with --force to confirm")
	}

	removed := 0
	for _, path := range []string{cfg.IndexPath(), cfg.FailureLogPath(), cfg.LockPath()} {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		log.Infow("Removed", "path", path)
		removed++
	}

	if removed == 0 {
		cmd.Println("Nothing to clean.")
		return nil
	}
	cmd.Printf("Removed %d file(s). The next run starts fresh.\n", removed)
	return nil
}
