package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/fimcheck/cmd/fimcheck/tui"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/config"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/output"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/session"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// progressBuffer is the capacity of the progress channel feeding the TUI.
const progressBuffer = 100

// runInteractive serves the baseline/check menu until the operator exits.
func runInteractive(cmd *cobra.Command, args []string) error {
	useTUI := !v.GetBool("plain") &&
		isatty.IsTerminal(os.Stdin.Fd()) &&
		isatty.IsTerminal(os.Stdout.Fd())

	// Console logging would draw over the terminal UI.
	cfg, err := loadConfig(!useTUI)
	if err != nil {
		return err
	}

	root := cfg.Root
	if len(args) > 0 {
		root = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The first interrupt cancels the running operation; a second one
	// terminates the process while it waits for input.
	go func() {
		<-ctx.Done()
		stop()
	}()

	if useTUI {
		return runTUI(ctx, cfg, root)
	}
	return runSession(ctx, cfg, root)
}

func runSession(ctx context.Context, cfg *config.Config, root string) error {
	formatter, err := output.Get(cfg.Output)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", cfg.Output, output.Available())
	}

	c, cleanup, err := newChecker(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := []session.Option{session.WithFormatter(formatter)}
	if root != "" {
		opts = append(opts, session.WithRoot(root))
	}

	err = session.New(c, os.Stdin, os.Stdout, opts...).Run(ctx)
	if errors.Is(err, context.Canceled) {
		printInfo("\nInterrupted.")
		return nil
	}
	return err
}

func runTUI(ctx context.Context, cfg *config.Config, root string) error {
	progress := make(chan types.ScanProgress, progressBuffer)
	onProgress := func(p types.ScanProgress) {
		select {
		case progress <- p:
		default:
		}
	}

	c, cleanup, err := newChecker(cfg, onProgress)
	if err != nil {
		return err
	}
	defer cleanup()

	model := tui.NewModel(tui.Options{
		Root:         root,
		Operations:   c,
		Progress:     progress,
		BaselinePath: c.Store.Path(),
		Algorithm:    string(c.Algorithm),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
