// Package diff classifies the differences between two snapshots.
//
// The digest is the only criterion for a modification: a file whose bytes are
// unchanged is never reported, whatever happened to its timestamp or size.
package diff

import (
	"sort"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// Compare classifies every path of baseline and current as added, removed,
// modified or unchanged. Nil snapshots are treated as empty. Compare does
// not modify its inputs and the returned lists are sorted by path.
func Compare(baseline, current *types.Snapshot) types.ChangeReport {
	report := types.ChangeReport{
		Added:    make([]string, 0),
		Removed:  make([]string, 0),
		Modified: make([]types.Modification, 0),
	}

	for _, cur := range current.Records() {
		old, ok := baseline.Get(cur.Path)
		switch {
		case !ok:
			report.Added = append(report.Added, cur.Path)
		case old.Digest != cur.Digest:
			report.Modified = append(report.Modified, types.Modification{
				Path: cur.Path,
				Old:  old,
				New:  cur,
			})
		default:
			report.Unchanged++
		}
	}

	for _, path := range baseline.Paths() {
		if !current.Has(path) {
			report.Removed = append(report.Removed, path)
		}
	}

	// Records and Paths are already sorted; keep the guarantee explicit.
	sort.Strings(report.Added)
	sort.Strings(report.Removed)
	sort.Slice(report.Modified, func(i, j int) bool {
		return report.Modified[i].Path < report.Modified[j].Path
	})

	return report
}
