// Package logging provides component loggers backed by charmbracelet/log
// with a rotating log file and optional console output.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("scanner")
//	logger.Warn("skipping unreadable file", "path", path, "err", err)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components maps component names to level overrides.
	Components map[string]string

	// ConsoleLevel enables stderr output at the given level. Empty disables it.
	ConsoleLevel string
}

// Logger is a component-scoped logger writing to the log file and,
// when enabled, to the console. A Logger obtained before Init picks up
// the configured outputs on its next call.
type Logger struct {
	component string
	args      []interface{}
	gen       atomic.Uint64
	cur       atomic.Pointer[sinks]
}

type sinks struct {
	file    *log.Logger
	console *log.Logger
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	s := l.outputs()
	s.file.Debug(msg, args...)
	if s.console != nil {
		s.console.Debug(msg, args...)
	}
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	s := l.outputs()
	s.file.Info(msg, args...)
	if s.console != nil {
		s.console.Info(msg, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	s := l.outputs()
	s.file.Warn(msg, args...)
	if s.console != nil {
		s.console.Warn(msg, args...)
	}
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	s := l.outputs()
	s.file.Error(msg, args...)
	if s.console != nil {
		s.console.Error(msg, args...)
	}
}

// With returns a new logger with additional key/value context.
func (l *Logger) With(args ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.args)+len(args))
	merged = append(merged, l.args...)
	merged = append(merged, args...)
	return &Logger{component: l.component, args: merged}
}

// Component returns the component name the logger was created for.
func (l *Logger) Component() string {
	return l.component
}

// outputs returns the sinks for the current logging generation,
// rebuilding them after Init or Close.
func (l *Logger) outputs() *sinks {
	gen := global.gen.Load()
	if s := l.cur.Load(); s != nil && l.gen.Load() == gen {
		return s
	}

	global.mu.RLock()
	s := buildSinks(l.component)
	gen = global.gen.Load()
	global.mu.RUnlock()

	if len(l.args) > 0 {
		s.file = s.file.With(l.args...)
		if s.console != nil {
			s.console = s.console.With(l.args...)
		}
	}
	l.cur.Store(s)
	l.gen.Store(gen)
	return s
}

type state struct {
	mu          sync.RWMutex
	gen         atomic.Uint64
	initialized bool
	writer      *RotatingWriter
	level       Level
	components  map[string]Level
	console     bool
	consoleLvl  Level
	consoleOut  io.Writer
	loggers     map[string]*Logger
}

var global = &state{
	loggers:    make(map[string]*Logger),
	components: make(map[string]Level),
	consoleOut: os.Stderr,
}

// Init configures the logging system. Before Init every logger discards
// its output.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	var consoleLvl Level
	if cfg.ConsoleLevel != "" {
		consoleLvl, err = ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.writer != nil {
		_ = global.writer.Close()
	}

	global.writer = writer
	global.level = level
	global.components = components
	global.console = cfg.ConsoleLevel != ""
	global.consoleLvl = consoleLvl
	global.initialized = true
	global.gen.Add(1)
	return nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	global.mu.RLock()
	if l, ok := global.loggers[component]; ok {
		global.mu.RUnlock()
		return l
	}
	global.mu.RUnlock()

	global.mu.Lock()
	defer global.mu.Unlock()

	if l, ok := global.loggers[component]; ok {
		return l
	}
	l := &Logger{component: component}
	global.loggers[component] = l
	return l
}

// buildSinks must be called with global.mu held for reading.
func buildSinks(component string) *sinks {
	level := global.level
	if lvl, ok := global.components[component]; ok {
		level = lvl
	}

	if !global.initialized {
		return &sinks{
			file: log.NewWithOptions(io.Discard, log.Options{
				Level:  level.charm(),
				Prefix: component,
			}),
		}
	}

	s := &sinks{
		file: log.NewWithOptions(global.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
	}

	if global.console {
		s.console = log.NewWithOptions(global.consoleOut, log.Options{
			Level:           global.consoleLvl.charm(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}
	return s
}

// Close flushes and closes the log file. Loggers discard output afterwards.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}

	global.initialized = false
	global.console = false
	global.components = make(map[string]Level)
	global.gen.Add(1)

	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// SetConsoleOutput redirects console logging. Intended for tests.
func SetConsoleOutput(w io.Writer) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.consoleOut = w
	global.gen.Add(1)
}

// DefaultLogPath returns $XDG_STATE_HOME/fimcheck/fimcheck.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "fimcheck", "fimcheck.log")
}
