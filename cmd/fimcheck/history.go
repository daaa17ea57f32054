package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	Long: `View the history of baseline and check operations.

Every baseline and check is recorded with its root, algorithm and the
paths that changed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific operation",
	Long:  `Display an operation by its ID or a unique ID prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

// maxListedPaths caps the changed paths printed per category by history show.
const maxListedPaths = 50

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the configured history store.
func openHistory() (*history.Store, int, error) {
	cfg, err := loadConfig(true)
	if err != nil {
		return nil, 0, err
	}
	if !cfg.History.Enabled {
		return nil, 0, fmt.Errorf("history is disabled in %s", configSource(cfg.File))
	}

	s, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open history: %w", err)
	}
	return s, cfg.History.RetentionDays, nil
}

func configSource(file string) string {
	if file == "" {
		return "the configuration"
	}
	return file
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, _, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'fimcheck baseline [path]' to record a baseline.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%-36s  %-19s  %-8s  %-8s  %-7s  %s\n", "ID", "TIME", "TYPE", "FILES", "CHANGES", "ROOT")
	fmt.Fprintln(out, strings.Repeat("-", 100))

	for _, e := range entries {
		changes := "-"
		if e.Operation == history.OpCheck {
			changes = fmt.Sprintf("%d", e.Summary.Added+e.Summary.Removed+e.Summary.Modified)
		}
		fmt.Fprintf(out, "%-36s  %-19s  %-8s  %-8d  %-7s  %s\n",
			e.ID,
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Operation,
			e.Summary.Files,
			changes,
			e.Root,
		)
	}

	fmt.Fprintln(out, strings.Repeat("-", 100))
	fmt.Fprintf(out, "\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Fprintln(out, "Use 'fimcheck history show <id>' for details on a specific entry.")
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	s, _, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	e, err := s.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nOperation Details")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "ID:         %s\n", e.ID)
	fmt.Fprintf(out, "Timestamp:  %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Operation:  %s\n", e.Operation)
	fmt.Fprintf(out, "Root:       %s\n", e.Root)
	fmt.Fprintf(out, "Baseline:   %s\n", e.BaselinePath)
	fmt.Fprintf(out, "Algorithm:  %s\n", e.Algorithm)
	fmt.Fprintf(out, "Duration:   %s\n", e.Duration)
	fmt.Fprintf(out, "Files:      %d (%s)\n", e.Summary.Files, humanize.IBytes(uint64(e.Summary.Bytes)))
	if e.Summary.Skipped > 0 {
		fmt.Fprintf(out, "Skipped:    %d\n", e.Summary.Skipped)
	}

	if e.Operation != history.OpCheck {
		return nil
	}
	fmt.Fprintf(out, "Changes:    %d added, %d removed, %d modified, %d unchanged\n",
		e.Summary.Added, e.Summary.Removed, e.Summary.Modified, e.Summary.Unchanged)

	printPaths := func(title string, paths []string) {
		if len(paths) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s:\n", title)
		fmt.Fprintln(out, strings.Repeat("-", 60))
		shown := min(len(paths), maxListedPaths)
		for _, p := range paths[:shown] {
			fmt.Fprintf(out, "  %s\n", p)
		}
		if len(paths) > shown {
			fmt.Fprintf(out, "\n... and %d more\n", len(paths)-shown)
		}
	}
	printPaths("Added", e.Added)
	printPaths("Removed", e.Removed)
	printPaths("Modified", e.Modified)
	return nil
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	s, retention, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	if retention <= 0 {
		printInfo("Retention is disabled; nothing to clean.")
		return nil
	}

	removed, err := s.Cleanup(retention)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries older than %d days.", removed, retention)
	return nil
}
