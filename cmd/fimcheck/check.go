package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/output"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/session"
)

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Compare a directory against its baseline",
	Long: `Digest every file under the directory and report files that were added,
removed or modified since the baseline was recorded.

The report format is selected with --output (text, pretty, json, yaml).
With --fail-on-change the command exits with status 2 when changes are found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var failOnChange bool

func init() {
	checkCmd.Flags().BoolVar(&failOnChange, "fail-on-change", false, "exit with status 2 when changes are found")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	formatter, err := output.Get(cfg.Output)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", cfg.Output, output.Available())
	}

	c, cleanup, err := newChecker(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := resolveRoot(args, cfg)
	result, err := c.Check(ctx, root)
	if err != nil {
		return &operationError{msg: session.Describe(root, err), err: err}
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, output.FromCheck(result)); err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return err
	}

	if result.HistoryID != "" {
		printVerbose("History entry: %s", result.HistoryID)
	}
	if failOnChange && result.Changes.HasChanges() {
		return errChangesDetected
	}
	return nil
}
