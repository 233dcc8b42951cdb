package cmd

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/progress"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show progress index statistics",
	Long: `Status summarizes the progress index: processed categories, known
files per status and the pending backlog per category. Read-only; safe to
run while another cwbd instance holds the lock.

Example:
  cwbd status --config cwbd.yaml`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := progress.Load(cfg.IndexPath(), log)
	if err != nil {
		return fmt.Errorf("failed to load progress index: %w", err)
	}

	downloaded, pending, invalid := store.Counts()

	cmd.Printf("Progress index: %s\n\n", cfg.IndexPath())
	cmd.Printf("Known files:      %s\n", humanize.Comma(int64(store.Len())))
	cmd.Printf("  %s  %s\n", color.Green.Sprint("downloaded:"), humanize.Comma(int64(downloaded)))
	cmd.Printf("  %s     %s\n", color.Yellow.Sprint("pending:"), humanize.Comma(int64(pending)))
	cmd.Printf("  %s     %s\n", color.Red.Sprint("invalid:"), humanize.Comma(int64(invalid)))

	processed := store.ProcessedCategories()
	cmd.Printf("\nProcessed categories: %d\n", len(processed))

	backlog := pendingByCategory(store)
	if len(backlog) == 0 {
		cmd.Println("\nNothing pending.")
		return nil
	}

	// Widest category name bounds the column; CJK titles are wider than
	// their rune count, so measure display cells.
	width := runewidth.StringWidth("Category")
	for _, row := range backlog {
		if w := runewidth.StringWidth(row.category); w > width {
			width = w
		}
	}

	cmd.Printf("\nPending backlog:\n")
	cmd.Printf("  %s  %s\n", runewidth.FillRight("Category", width), "Files")
	for _, row := range backlog {
		cmd.Printf("  %s  %s\n",
			runewidth.FillRight(row.category, width),
			humanize.Comma(int64(row.count)))
	}
	return nil
}

type backlogRow struct {
	category string
	count    int
}

func pendingByCategory(store *progress.Store) []backlogRow {
	counts := make(map[string]int)
	for _, pf := range store.Pending() {
		counts[pf.Category]++
	}

	rows := make([]backlogRow, 0, len(counts))
	for cat, n := range counts {
		rows = append(rows, backlogRow{category: cat, count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].category < rows[j].category
	})
	return rows
}
