package output

// document is the structured form shared by the json and yaml formatters.
type document struct {
	Root      string          `json:"root" yaml:"root"`
	Baseline  string          `json:"baseline" yaml:"baseline"`
	Algorithm string          `json:"algorithm" yaml:"algorithm"`
	Changed   bool            `json:"changed" yaml:"changed"`
	Added     []string        `json:"added" yaml:"added"`
	Removed   []string        `json:"removed" yaml:"removed"`
	Modified  []modifiedEntry `json:"modified" yaml:"modified"`
	Summary   summary         `json:"summary" yaml:"summary"`
	Skipped   []skippedEntry  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Warnings  []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type modifiedEntry struct {
	Path    string `json:"path" yaml:"path"`
	OldHash string `json:"old_hash" yaml:"old_hash"`
	NewHash string `json:"new_hash" yaml:"new_hash"`
	OldSize int64  `json:"old_size" yaml:"old_size"`
	NewSize int64  `json:"new_size" yaml:"new_size"`
}

type summary struct {
	Added        int    `json:"added" yaml:"added"`
	Removed      int    `json:"removed" yaml:"removed"`
	Modified     int    `json:"modified" yaml:"modified"`
	Unchanged    int    `json:"unchanged" yaml:"unchanged"`
	FilesScanned int64  `json:"files_scanned" yaml:"files_scanned"`
	FilesSkipped int64  `json:"files_skipped" yaml:"files_skipped"`
	BytesHashed  int64  `json:"bytes_hashed" yaml:"bytes_hashed"`
	Duration     string `json:"duration" yaml:"duration"`
}

type skippedEntry struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

func buildDocument(r *Report) document {
	c := r.Changes

	doc := document{
		Root:      r.Root,
		Baseline:  r.BaselinePath,
		Algorithm: r.Algorithm,
		Changed:   c.HasChanges(),
		Added:     nonNil(c.Added),
		Removed:   nonNil(c.Removed),
		Modified:  make([]modifiedEntry, len(c.Modified)),
		Summary: summary{
			Added:        len(c.Added),
			Removed:      len(c.Removed),
			Modified:     len(c.Modified),
			Unchanged:    c.Unchanged,
			FilesScanned: r.Stats.FilesScanned,
			FilesSkipped: r.Stats.FilesSkipped,
			BytesHashed:  r.Stats.BytesHashed,
			Duration:     r.Stats.Duration.String(),
		},
		Warnings: r.Warnings,
	}

	for i, m := range c.Modified {
		doc.Modified[i] = modifiedEntry{
			Path:    m.Path,
			OldHash: m.Old.Digest,
			NewHash: m.New.Digest,
			OldSize: m.Old.Size,
			NewSize: m.New.Size,
		}
	}
	for _, e := range r.Skipped {
		doc.Skipped = append(doc.Skipped, skippedEntry{Path: e.Path, Error: e.Error})
	}
	return doc
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
