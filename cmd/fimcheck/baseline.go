package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/session"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline [path]",
	Short: "Record a baseline of file digests",
	Long: `Digest every file under the directory and replace the stored baseline.

The previous baseline is kept if the new one cannot be written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBaseline,
}

func init() {
	rootCmd.AddCommand(baselineCmd)
}

func runBaseline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	c, cleanup, err := newChecker(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := resolveRoot(args, cfg)
	result, err := c.CreateBaseline(ctx, root)
	if err != nil {
		return &operationError{msg: session.Describe(root, err), err: err}
	}

	for _, e := range result.Scan.Errors {
		fmt.Fprintf(os.Stderr, "Error reading %s: %s\n", e.Path, e.Error)
	}
	printInfo("%s", session.BaselineCreated(result.BaselinePath))
	if result.Replaced {
		printVerbose("Replaced the previous baseline")
	}
	printVerbose("%d files (%s) hashed in %s",
		result.Scan.Snapshot.Len(),
		humanize.IBytes(uint64(result.Scan.Snapshot.TotalSize())),
		result.Scan.Elapsed.Round(time.Millisecond))
	if result.HistoryID != "" {
		printVerbose("History entry: %s", result.HistoryID)
	}
	return nil
}
