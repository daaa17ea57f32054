package history

import (
	"time"

	"github.com/goccy/go-json"
)

// Operation identifies the kind of recorded operation.
type Operation string

const (
	// OpBaseline records the creation of a baseline.
	OpBaseline Operation = "baseline"
	// OpCheck records an integrity check.
	OpCheck Operation = "check"
)

// Entry is one recorded operation.
type Entry struct {
	ID           string        `json:"id" yaml:"id"`
	Timestamp    time.Time     `json:"timestamp" yaml:"timestamp"`
	Operation    Operation     `json:"operation" yaml:"operation"`
	Root         string        `json:"root" yaml:"root"`
	BaselinePath string        `json:"baseline_path" yaml:"baseline_path"`
	Algorithm    string        `json:"algorithm" yaml:"algorithm"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Summary      Summary       `json:"summary" yaml:"summary"`

	// Change lists are only set for checks.
	Added    []string `json:"added,omitempty" yaml:"added,omitempty"`
	Removed  []string `json:"removed,omitempty" yaml:"removed,omitempty"`
	Modified []string `json:"modified,omitempty" yaml:"modified,omitempty"`
}

// Summary contains the counters of an operation.
type Summary struct {
	Files     int64 `json:"files" yaml:"files"`
	Bytes     int64 `json:"bytes" yaml:"bytes"`
	Skipped   int64 `json:"skipped" yaml:"skipped"`
	Added     int   `json:"added" yaml:"added"`
	Removed   int   `json:"removed" yaml:"removed"`
	Modified  int   `json:"modified" yaml:"modified"`
	Unchanged int   `json:"unchanged" yaml:"unchanged"`
}

// Changed reports whether a check found any difference.
func (e *Entry) Changed() bool {
	return e.Summary.Added+e.Summary.Removed+e.Summary.Modified > 0
}

// Encode serializes the entry.
func (e *Entry) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode deserializes data into the entry.
func (e *Entry) Decode(data []byte) error {
	return json.Unmarshal(data, e)
}
