// Package session implements the line-oriented interactive controller:
// it asks for a directory once and then loops over a three-item menu
// until the operator exits or input ends.
package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/baseline"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/checker"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/logging"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/output"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/scanner"
)

// Prompts and messages shown to the operator.
const (
	RootPrompt       = "Enter the directory path to monitor: "
	MenuTitle        = "File Integrity Checker Menu:"
	ChoicePrompt     = "Enter your choice (1-3): "
	InvalidChoice    = "Invalid choice. Please try again."
	ExitMessage      = "Exiting..."
	BaselineMissing  = "Baseline file not found! Please create a baseline first."
	baselineCreated  = "Baseline created successfully: %s"
	rootMissing      = "Directory %s does not exist!"
	saveFailed       = "Error saving baseline: %v"
	loadFailed       = "Error loading baseline: %v"
	operationFailed  = "Error: %v"
	unreadableReport = "Error reading %s: %s"
)

// Menu choices.
const (
	ChoiceBaseline = "1"
	ChoiceCheck    = "2"
	ChoiceExit     = "3"
)

var logger = logging.Get("session")

// Operations are the two integrity operations the menu drives.
type Operations interface {
	CreateBaseline(ctx context.Context, root string) (*checker.BaselineResult, error)
	Check(ctx context.Context, root string) (*checker.CheckResult, error)
}

// Session is a prompt/menu loop over a reader and a writer.
type Session struct {
	ops       Operations
	in        *bufio.Scanner
	out       io.Writer
	root      string
	formatter output.Formatter
}

// Option configures a Session.
type Option func(*Session)

// WithRoot skips the directory prompt.
func WithRoot(root string) Option {
	return func(s *Session) { s.root = root }
}

// WithFormatter replaces the text formatter used for check results.
func WithFormatter(f output.Formatter) Option {
	return func(s *Session) { s.formatter = f }
}

// New creates a session reading answers from in and writing to out.
func New(ops Operations, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		ops:       ops,
		in:        bufio.NewScanner(in),
		out:       out,
		formatter: &output.TextFormatter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the monitored directory, empty until it has been entered.
func (s *Session) Root() string {
	return s.root
}

// Run prompts for the directory if needed and serves the menu until the
// operator exits or input ends. Operation failures are printed, not
// returned; only context cancellation and write errors end Run with an error.
func (s *Session) Run(ctx context.Context) error {
	for strings.TrimSpace(s.root) == "" {
		s.printf("%s", RootPrompt)
		line, ok := s.readLine()
		if !ok {
			s.println("")
			return nil
		}
		s.root = line
	}
	logger.Info("session started", "root", s.root)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.println("\n" + MenuTitle)
		s.println("1. Create baseline")
		s.println("2. Check integrity")
		s.println("3. Exit")
		s.printf("%s", ChoicePrompt)

		choice, ok := s.readLine()
		choice = strings.TrimSpace(choice)
		if !ok {
			s.println("")
			s.println(ExitMessage)
			return nil
		}

		var err error
		switch choice {
		case ChoiceBaseline:
			err = s.createBaseline(ctx)
		case ChoiceCheck:
			err = s.check(ctx)
		case ChoiceExit:
			s.println(ExitMessage)
			return nil
		default:
			s.println(InvalidChoice)
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) createBaseline(ctx context.Context) error {
	result, err := s.ops.CreateBaseline(ctx, s.root)
	if err != nil {
		return s.report(ctx, err)
	}

	for _, e := range result.Scan.Errors {
		s.printf(unreadableReport+"\n", e.Path, e.Error)
	}
	s.println(BaselineCreated(result.BaselinePath))
	return nil
}

func (s *Session) check(ctx context.Context) error {
	result, err := s.ops.Check(ctx, s.root)
	if err != nil {
		return s.report(ctx, err)
	}

	var buf bytes.Buffer
	if err := s.formatter.Format(&buf, output.FromCheck(result)); err != nil {
		return fmt.Errorf("formatting report: %w", err)
	}
	_, err = s.out.Write(buf.Bytes())
	return err
}

// report prints a failed operation. Cancellation is returned instead.
func (s *Session) report(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}

	logger.Warn("operation failed", "root", s.root, "err", err)
	s.println(Describe(s.root, err))
	return nil
}

// Describe returns the operator message for a failed operation on root.
func Describe(root string, err error) string {
	switch {
	case errors.Is(err, scanner.ErrRootNotFound):
		return fmt.Sprintf(rootMissing, root)
	case errors.Is(err, checker.ErrBaselineNotFound):
		return BaselineMissing
	case errors.Is(err, baseline.ErrCorrupt):
		return fmt.Sprintf(loadFailed, err)
	case errors.Is(err, baseline.ErrWriteFailed):
		return fmt.Sprintf(saveFailed, err)
	default:
		return fmt.Sprintf(operationFailed, err)
	}
}

// BaselineCreated returns the success message for a saved baseline.
func BaselineCreated(path string) string {
	return fmt.Sprintf(baselineCreated, path)
}

// readLine returns the next input line without its line ending, or false
// at end of input. Other whitespace is kept so directory names may start
// or end with spaces.
func (s *Session) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSuffix(s.in.Text(), "\r"), true
}

func (s *Session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) println(line string) {
	fmt.Fprintln(s.out, line)
}
