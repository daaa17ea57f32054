package checker

import (
	"context"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/digest"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/scanner"
)

// ScanBuilder builds snapshots with the filesystem scanner.
type ScanBuilder struct {
	// Options is the template for every build. Root and Algorithm are
	// replaced per call.
	Options scanner.Options
}

// Build implements SnapshotBuilder.
func (b ScanBuilder) Build(ctx context.Context, root string, alg digest.Algorithm) (*scanner.Result, error) {
	opts := b.Options
	opts.Root = root
	opts.Algorithm = alg

	s, err := scanner.New(opts)
	if err != nil {
		return nil, err
	}
	return s.Build(ctx)
}
