// Package scanner builds integrity snapshots of a directory tree. It walks
// the tree with fastwalk and digests regular files in a bounded worker pool;
// the resulting snapshot does not depend on worker count or scheduling.
package scanner

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/digest"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// SymlinkPolicy decides how symbolic links found during the walk are captured.
type SymlinkPolicy string

const (
	// SymlinkSkip ignores symbolic links entirely.
	SymlinkSkip SymlinkPolicy = "skip"

	// SymlinkFollow digests the contents of link targets and descends into
	// linked directories.
	SymlinkFollow SymlinkPolicy = "follow"

	// SymlinkRecord captures the link itself: the digest covers the link
	// target string, so retargeting a link is reported as a modification.
	SymlinkRecord SymlinkPolicy = "record"
)

// DefaultSymlinkPolicy is used when no policy is configured.
const DefaultSymlinkPolicy = SymlinkRecord

// ParseSymlinkPolicy validates a policy name. Empty selects DefaultSymlinkPolicy.
func ParseSymlinkPolicy(s string) (SymlinkPolicy, error) {
	switch p := SymlinkPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultSymlinkPolicy, nil
	case SymlinkSkip, SymlinkFollow, SymlinkRecord:
		return p, nil
	default:
		return "", fmt.Errorf("unknown symlink policy %q (want skip, follow or record)", s)
	}
}

// Options configures the scanner behavior.
type Options struct {
	// Root is the directory whose files are captured.
	Root string

	// Algorithm selects the hash function. Empty means digest.DefaultAlgorithm.
	Algorithm digest.Algorithm

	// ChunkSize is the read buffer size per worker. Zero means digest.DefaultChunkSize.
	ChunkSize int

	// Workers is the number of concurrent digest workers.
	Workers int

	// WalkWorkers is the number of fastwalk directory readers. Zero lets fastwalk decide.
	WalkWorkers int

	// Symlinks selects how symbolic links are handled.
	Symlinks SymlinkPolicy

	// Exclude contains glob patterns matched against the root-relative
	// slash path and against the base name. A matching directory is not
	// descended.
	Exclude []string

	// SkipPaths are absolute paths that are never captured, such as the
	// baseline file itself when it lives under Root.
	SkipPaths []string

	// OnProgress is called periodically with build progress.
	// It must be safe to call from multiple goroutines.
	OnProgress func(types.ScanProgress)
}

// defaultWorkers is used when Workers is not set.
const defaultWorkers = 4

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Root:      ".",
		Algorithm: digest.DefaultAlgorithm,
		ChunkSize: digest.DefaultChunkSize,
		Workers:   defaultWorkers,
		Symlinks:  DefaultSymlinkPolicy,
	}
}

// Validate fills in defaults for unset fields and rejects invalid values.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = "."
	}
	if o.Algorithm == "" {
		o.Algorithm = digest.DefaultAlgorithm
	}
	if _, err := digest.ParseAlgorithm(string(o.Algorithm)); err != nil {
		return err
	}
	if o.Workers < 1 {
		o.Workers = defaultWorkers
	}
	if o.WalkWorkers < 0 {
		o.WalkWorkers = 0
	}
	policy, err := ParseSymlinkPolicy(string(o.Symlinks))
	if err != nil {
		return err
	}
	o.Symlinks = policy
	return nil
}
