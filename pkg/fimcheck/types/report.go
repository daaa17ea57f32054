package types

// ChangeKind is the category of a reported change.
type ChangeKind string

// Change kinds.
const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// Modification pairs the baseline and current records of a file whose digest changed.
type Modification struct {
	Path string     `json:"path" yaml:"path"`
	Old  FileRecord `json:"old" yaml:"old"`
	New  FileRecord `json:"new" yaml:"new"`
}

// ChangeReport is the classified difference between a baseline and a current snapshot.
// Added, Removed and Modified are pairwise disjoint and sorted by path.
// Paths present in both snapshots with equal digests are only counted in Unchanged.
type ChangeReport struct {
	Added     []string       `json:"added" yaml:"added"`
	Removed   []string       `json:"removed" yaml:"removed"`
	Modified  []Modification `json:"modified" yaml:"modified"`
	Unchanged int            `json:"unchanged" yaml:"unchanged"`
}

// HasChanges reports whether any path was added, removed or modified.
func (r *ChangeReport) HasChanges() bool {
	return len(r.Added)+len(r.Removed)+len(r.Modified) > 0
}

// TotalChanges returns the number of classified changes.
func (r *ChangeReport) TotalChanges() int {
	return len(r.Added) + len(r.Removed) + len(r.Modified)
}

// ModifiedPaths returns the paths of all modified files.
func (r *ChangeReport) ModifiedPaths() []string {
	paths := make([]string, len(r.Modified))
	for i, m := range r.Modified {
		paths[i] = m.Path
	}
	return paths
}
