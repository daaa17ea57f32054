package types

import "sort"

// Snapshot maps relative paths to the records captured for them.
// A Snapshot is immutable once built; every accessor returns copies.
type Snapshot struct {
	records map[string]FileRecord
}

// NewSnapshot builds a Snapshot from records. When two records share a
// path the later one wins.
func NewSnapshot(records []FileRecord) *Snapshot {
	m := make(map[string]FileRecord, len(records))
	for _, r := range records {
		m[r.Path] = r
	}
	return &Snapshot{records: m}
}

// SnapshotFromMap builds a Snapshot from a path-keyed map. The map is copied
// and each record's Path is set to its key.
func SnapshotFromMap(records map[string]FileRecord) *Snapshot {
	m := make(map[string]FileRecord, len(records))
	for path, r := range records {
		r.Path = path
		m[path] = r
	}
	return &Snapshot{records: m}
}

// Get returns the record stored for path.
func (s *Snapshot) Get(path string) (FileRecord, bool) {
	if s == nil {
		return FileRecord{}, false
	}
	r, ok := s.records[path]
	return r, ok
}

// Has reports whether path is present.
func (s *Snapshot) Has(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Paths returns all keys in ascending order.
func (s *Snapshot) Paths() []string {
	if s == nil {
		return []string{}
	}
	paths := make([]string, 0, len(s.records))
	for p := range s.records {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Records returns all records ordered by path.
func (s *Snapshot) Records() []FileRecord {
	paths := s.Paths()
	out := make([]FileRecord, len(paths))
	for i, p := range paths {
		out[i] = s.records[p]
	}
	return out
}

// TotalSize returns the sum of all record sizes.
func (s *Snapshot) TotalSize() int64 {
	if s == nil {
		return 0
	}
	var total int64
	for _, r := range s.records {
		total += r.Size
	}
	return total
}

// Equal reports whether both snapshots hold the same paths with the same
// digests. Metadata is ignored.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	if s == nil {
		return true
	}
	for p, r := range s.records {
		o, ok := other.Get(p)
		if !ok || o.Digest != r.Digest {
			return false
		}
	}
	return true
}
