package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/baseline"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/checker"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/config"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/digest"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/history"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/logging"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/output"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/scanner"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/tuner"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

var (
	cfgFile string
	v       = config.NewViper("")
	rootCmd = &cobra.Command{
		Use:   "fimcheck [path]",
		Short: "Detect added, removed and modified files under a directory",
		Long: `Fimcheck records a baseline of content digests for every file under a
directory and later reports which files were added, removed or modified.

Without a subcommand, fimcheck starts an interactive session: a terminal UI
when attached to a terminal, otherwise a line-oriented menu.

Examples:
  fimcheck                       # Interactive session, prompts for a directory
  fimcheck /etc                  # Interactive session for /etc
  fimcheck baseline /etc         # Record a baseline
  fimcheck check /etc            # Compare /etc against the baseline
  fimcheck check -o json /etc    # Machine-readable report
  fimcheck history               # View operation history`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runInteractive,
	}
)

// errChangesDetected is returned by check --fail-on-change when the tree
// differs from its baseline.
var errChangesDetected = errors.New("changes detected")

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, errChangesDetected) {
		return 2
	}
	return 1
}

// boundFlags are persistent flags whose values override config keys of the same name.
var boundFlags = []string{
	"baseline", "algorithm", "symlinks", "exclude", "workers", "output",
	"verbose", "quiet", "plain",
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/fimcheck/config.yaml)")
	pf.StringP("baseline", "b", "", "baseline file (default: $XDG_DATA_HOME/fimcheck/file_hashes.json)")
	pf.StringP("algorithm", "a", "", "digest algorithm for new baselines ("+strings.Join(digest.Algorithms(), ", ")+")")
	pf.String("symlinks", "", "symbolic link policy (skip, follow, record)")
	pf.StringSliceP("exclude", "e", nil, "exclude patterns (can be specified multiple times)")
	pf.IntP("workers", "w", 0, "override digest worker count (0=auto)")
	pf.StringP("output", "o", "", "report format ("+strings.Join(output.Available(), ", ")+")")
	pf.BoolP("quiet", "q", false, "minimal output")
	pf.BoolP("verbose", "v", false, "debug output")
	pf.Bool("plain", false, "use the line-oriented menu instead of the terminal UI")
}

// initConfig creates the viper instance for the selected config file and
// binds the command-line flags to it.
func initConfig() {
	v = config.NewViper(cfgFile)
	bindFlags(v, rootCmd.PersistentFlags())
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for _, name := range boundFlags {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

// Execute runs the root command and prints its error, if any.
func Execute() error {
	defer func() { _ = logging.Close() }()

	err := rootCmd.Execute()
	var opErr *operationError
	switch {
	case err == nil, errors.Is(err, errChangesDetected):
	case errors.As(err, &opErr):
		fmt.Fprintln(os.Stderr, opErr.msg)
	default:
		printError("%v", err)
	}
	return err
}

// operationError carries the operator message for a failed baseline or check.
type operationError struct {
	msg string
	err error
}

func (e *operationError) Error() string { return e.msg }

func (e *operationError) Unwrap() error { return e.err }

// loadConfig loads and validates the configuration and starts logging.
// console enables stderr log output when --verbose is set.
func loadConfig(console bool) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	level := ""
	if console && getVerbose() {
		level = "debug"
	}
	logOpts, err := cfg.LoggingOptions(level)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(logOpts); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if cfg.File != "" {
		printVerbose("Config file: %s", cfg.File)
	}
	return cfg, nil
}

// newChecker wires a Checker from cfg. The returned cleanup closes the
// history store.
func newChecker(cfg *config.Config, onProgress func(types.ScanProgress)) (*checker.Checker, func(), error) {
	alg, err := digest.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, nil, err
	}
	policy, err := scanner.ParseSymlinkPolicy(cfg.Symlinks)
	if err != nil {
		return nil, nil, err
	}

	store := baseline.New(cfg.Baseline)

	resources, err := tuner.Detect()
	if err != nil {
		printVerbose("Failed to detect system resources, using defaults: %v", err)
		resources = tuner.SystemResources{
			CPUCores:     4,
			TotalRAM:     8 * types.GiB,
			AvailableRAM: 4 * types.GiB,
		}
	}
	tuned := tuner.CalculateWithOverrides(resources, cfg.Workers, cfg.ChunkSizeBytes())

	printVerbose("System: %d CPUs, %s RAM, %s available",
		resources.CPUCores,
		humanize.IBytes(uint64(resources.TotalRAM)),
		humanize.IBytes(uint64(resources.AvailableRAM)))
	printVerbose("Config: %d digest workers, %d walk workers, %s chunks",
		tuned.DigestWorkers, tuned.WalkWorkers, humanize.IBytes(uint64(tuned.ChunkSize)))

	opts := scanner.Options{
		ChunkSize:   tuned.ChunkSize,
		Workers:     tuned.DigestWorkers,
		WalkWorkers: tuned.WalkWorkers,
		Symlinks:    policy,
		Exclude:     cfg.Exclude,
		SkipPaths:   []string{store.Path()},
		OnProgress:  onProgress,
	}

	c := &checker.Checker{Store: store, Algorithm: alg}
	cleanup := func() {}

	if cfg.History.Enabled {
		opts.SkipPaths = append(opts.SkipPaths, cfg.History.Path)
		h, err := history.Open(cfg.History.Path)
		if err != nil {
			logging.Get("cli").Warn("history disabled", "path", cfg.History.Path, "err", err)
			printVerbose("History disabled: %v", err)
		} else {
			c.History = h
			cleanup = func() { _ = h.Close() }
		}
	}

	c.Builder = checker.ScanBuilder{Options: opts}
	return c, cleanup, nil
}

// resolveRoot returns the directory named on the command line, the
// configured root, or the current directory.
func resolveRoot(args []string, cfg *config.Config) string {
	if len(args) > 0 {
		return args[0]
	}
	if cfg.Root != "" {
		return cfg.Root
	}
	return "."
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return v.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return v.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
