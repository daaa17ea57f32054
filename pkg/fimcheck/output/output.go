// Package output renders integrity check reports in several formats
// (text, pretty, json, yaml).
//
// The package uses a registry pattern so formatters can be selected by
// name at runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.FromCheck(result)); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/checker"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// Stats contains statistics about the build that fed a report.
type Stats struct {
	// DirsScanned is the number of directories traversed.
	DirsScanned int64 `json:"dirs_scanned" yaml:"dirs_scanned"`

	// FilesScanned is the number of files digested.
	FilesScanned int64 `json:"files_scanned" yaml:"files_scanned"`

	// FilesSkipped is the number of unreadable files left out.
	FilesSkipped int64 `json:"files_skipped" yaml:"files_skipped"`

	// BytesHashed is the total number of bytes digested.
	BytesHashed int64 `json:"bytes_hashed" yaml:"bytes_hashed"`

	// Duration is the time taken by the check.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Report is the data handed to a formatter.
type Report struct {
	// Root is the monitored directory.
	Root string

	// BaselinePath is the location of the baseline file.
	BaselinePath string

	// Algorithm is the hash function used for the comparison.
	Algorithm string

	// Changes is the classified difference.
	Changes types.ChangeReport

	// Stats describes the current snapshot build.
	Stats Stats

	// Skipped lists files that could not be read.
	Skipped []types.ScanError

	// Warnings contains non-fatal notices such as an algorithm override.
	Warnings []string
}

// FromCheck converts a check result into a report.
func FromCheck(r *checker.CheckResult) *Report {
	report := &Report{
		Root:         r.Root,
		BaselinePath: r.BaselinePath,
		Algorithm:    string(r.Algorithm),
		Changes:      r.Changes,
		Warnings:     r.Warnings,
	}
	if r.Scan != nil {
		report.Stats = Stats{
			DirsScanned:  r.Scan.DirsScanned,
			FilesScanned: r.Scan.FilesScanned,
			FilesSkipped: r.Scan.FilesSkipped,
			BytesHashed:  r.Scan.BytesHashed,
			Duration:     r.Scan.Elapsed,
		}
		report.Skipped = r.Scan.Errors
	}
	return report
}

// change is one line of a report in display order.
type change struct {
	kind types.ChangeKind
	path string
	mod  *types.Modification
}

// orderedChanges merges added and modified paths in path order and appends
// the removed paths, the order in which the report is printed.
func orderedChanges(c types.ChangeReport) []change {
	out := make([]change, 0, c.TotalChanges())
	for _, p := range c.Added {
		out = append(out, change{kind: types.ChangeAdded, path: p})
	}
	for i := range c.Modified {
		out = append(out, change{kind: types.ChangeModified, path: c.Modified[i].Path, mod: &c.Modified[i]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].path < out[j].path })

	for _, p := range c.Removed {
		out = append(out, change{kind: types.ChangeRemoved, path: p})
	}
	return out
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted report to the buffer.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
