// Package checker runs the two integrity operations: recording a baseline
// and checking a tree against it.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/baseline"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/diff"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/digest"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/history"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/logging"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/scanner"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// ErrBaselineNotFound is returned by Check when no baseline has been saved.
var ErrBaselineNotFound = fmt.Errorf("check requires a baseline: %w", baseline.ErrNotFound)

var logger = logging.Get("checker")

// SnapshotBuilder builds a snapshot of root using the given algorithm.
type SnapshotBuilder interface {
	Build(ctx context.Context, root string, alg digest.Algorithm) (*scanner.Result, error)
}

// BaselineStore persists a single baseline snapshot.
type BaselineStore interface {
	Save(snap *types.Snapshot) error
	Load() (*types.Snapshot, error)
	Exists() bool
	Path() string
}

// Recorder stores history entries.
type Recorder interface {
	Record(e history.Entry) (*history.Entry, error)
}

// Checker wires the builder, the baseline store and the optional history.
type Checker struct {
	// Store holds the baseline.
	Store BaselineStore

	// Builder captures snapshots.
	Builder SnapshotBuilder

	// History records operations. Nil disables history.
	History Recorder

	// Algorithm is used for new baselines. Empty means digest.DefaultAlgorithm.
	Algorithm digest.Algorithm
}

// BaselineResult describes a created baseline.
type BaselineResult struct {
	Root         string
	BaselinePath string
	Scan         *scanner.Result
	HistoryID    string

	// Replaced is true when an earlier baseline was overwritten.
	Replaced bool
}

// CheckResult describes a completed integrity check.
type CheckResult struct {
	Root         string
	BaselinePath string
	Algorithm    digest.Algorithm
	Baseline     *types.Snapshot
	Scan         *scanner.Result
	Changes      types.ChangeReport
	Warnings     []string
	HistoryID    string
}

func (c *Checker) algorithm() digest.Algorithm {
	if c.Algorithm == "" {
		return digest.DefaultAlgorithm
	}
	return c.Algorithm
}

// CreateBaseline captures root and replaces the stored baseline with it.
// On failure the previous baseline is left untouched.
func (c *Checker) CreateBaseline(ctx context.Context, root string) (*BaselineResult, error) {
	start := time.Now()
	alg := c.algorithm()

	scan, err := c.Builder.Build(ctx, root, alg)
	if err != nil {
		return nil, err
	}

	replaced := c.Store.Exists()
	if err := c.Store.Save(scan.Snapshot); err != nil {
		return nil, err
	}

	result := &BaselineResult{
		Root:         scan.Root,
		BaselinePath: c.Store.Path(),
		Scan:         scan,
		Replaced:     replaced,
	}

	result.HistoryID = c.record(history.Entry{
		Operation:    history.OpBaseline,
		Root:         scan.Root,
		BaselinePath: c.Store.Path(),
		Algorithm:    string(alg),
		Duration:     time.Since(start),
		Summary: history.Summary{
			Files:   scan.FilesScanned,
			Bytes:   scan.BytesHashed,
			Skipped: scan.FilesSkipped,
		},
	})

	logger.Info("baseline created", "root", scan.Root, "path", c.Store.Path(),
		"files", scan.Snapshot.Len(), "replaced", replaced)
	return result, nil
}

// Check compares root against the stored baseline. The baseline is loaded
// before anything is digested, so a missing or corrupt baseline fails fast.
func (c *Checker) Check(ctx context.Context, root string) (*CheckResult, error) {
	start := time.Now()

	base, err := c.Store.Load()
	if err != nil {
		if errors.Is(err, baseline.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBaselineNotFound, c.Store.Path())
		}
		return nil, err
	}

	alg, warnings, err := c.baselineAlgorithm(base)
	if err != nil {
		return nil, err
	}

	scan, err := c.Builder.Build(ctx, root, alg)
	if err != nil {
		return nil, err
	}

	changes := diff.Compare(base, scan.Snapshot)

	result := &CheckResult{
		Root:         scan.Root,
		BaselinePath: c.Store.Path(),
		Algorithm:    alg,
		Baseline:     base,
		Scan:         scan,
		Changes:      changes,
		Warnings:     warnings,
	}

	result.HistoryID = c.record(history.Entry{
		Operation:    history.OpCheck,
		Root:         scan.Root,
		BaselinePath: c.Store.Path(),
		Algorithm:    string(alg),
		Duration:     time.Since(start),
		Summary: history.Summary{
			Files:     scan.FilesScanned,
			Bytes:     scan.BytesHashed,
			Skipped:   scan.FilesSkipped,
			Added:     len(changes.Added),
			Removed:   len(changes.Removed),
			Modified:  len(changes.Modified),
			Unchanged: changes.Unchanged,
		},
		Added:    changes.Added,
		Removed:  changes.Removed,
		Modified: changes.ModifiedPaths(),
	})

	logger.Info("integrity check complete",
		"root", scan.Root,
		"added", len(changes.Added),
		"removed", len(changes.Removed),
		"modified", len(changes.Modified),
		"unchanged", changes.Unchanged)
	return result, nil
}

// baselineAlgorithm picks the algorithm the baseline digests were made
// with, so a check never compares digests of different functions.
func (c *Checker) baselineAlgorithm(base *types.Snapshot) (digest.Algorithm, []string, error) {
	configured := c.algorithm()

	records := base.Records()
	if len(records) == 0 {
		return configured, nil, nil
	}

	alg, err := digest.AlgorithmOf(records[0].Digest)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", baseline.ErrCorrupt, c.Store.Path(), err)
	}

	for _, r := range records[1:] {
		other, err := digest.AlgorithmOf(r.Digest)
		if err != nil || other != alg {
			return "", nil, fmt.Errorf("%w: %s: mixed digest algorithms (%s at %s)",
				baseline.ErrCorrupt, c.Store.Path(), alg, r.Path)
		}
	}

	if alg == configured {
		return alg, nil, nil
	}

	msg := fmt.Sprintf("baseline uses %s digests; configured algorithm %s ignored for this check", alg, configured)
	logger.Warn("baseline algorithm differs from configuration", "baseline", alg, "configured", configured)
	return alg, []string{msg}, nil
}

// record stores a history entry. Failures are logged, never returned.
func (c *Checker) record(e history.Entry) string {
	if c.History == nil {
		return ""
	}

	stored, err := c.History.Record(e)
	if err != nil {
		logger.Warn("recording history failed", "operation", e.Operation, "err", err)
		return ""
	}
	return stored.ID
}
