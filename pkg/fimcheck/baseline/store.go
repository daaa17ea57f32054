// Package baseline persists snapshots as the JSON baseline document.
//
// The document is a single object keyed by root-relative path:
//
//	{
//	    "docs/readme.txt": {
//	        "hash": "2cf24dba...",
//	        "last_modified": 1700000000.25,
//	        "size": 5
//	    }
//	}
//
// Path bytes that are not valid UTF-8 are stored as \udcXX escapes.
//
// Saves are atomic: the new document is written to a temporary file in the
// destination directory and renamed over the old one.
package baseline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/goccy/go-json"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/logging"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// DefaultFileName is the baseline file name.
const DefaultFileName = "file_hashes.json"

const indent = "    "

var (
	// ErrNotFound is returned by Load when no baseline exists.
	ErrNotFound = errors.New("baseline not found")

	// ErrCorrupt is returned by Load when the baseline cannot be decoded.
	ErrCorrupt = errors.New("baseline corrupt")

	// ErrWriteFailed is returned by Save when the baseline could not be
	// persisted. A previously saved baseline is left intact.
	ErrWriteFailed = errors.New("baseline write failed")
)

var logger = logging.Get("baseline")

// DefaultPath returns $XDG_DATA_HOME/fimcheck/file_hashes.json.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "fimcheck", DefaultFileName)
}

// record is the persisted form of a FileRecord.
type record struct {
	Hash         string  `json:"hash"`
	LastModified float64 `json:"last_modified"`
	Size         int64   `json:"size"`
}

// wireRecord decodes with pointers so missing fields can be detected.
type wireRecord struct {
	Hash         *string  `json:"hash"`
	LastModified *float64 `json:"last_modified"`
	Size         *int64   `json:"size"`
}

// Store reads and writes a baseline file.
type Store struct {
	path string
}

// New returns a store for the baseline at path. Empty path uses DefaultPath.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

// Path returns the baseline file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a baseline file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Mode().IsRegular()
}

// Save replaces the stored baseline with snap.
func (s *Store) Save(snap *types.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return fmt.Errorf("%w: encoding: %v", ErrWriteFailed, err)
	}

	if err := writeAtomic(s.path, data); err != nil {
		logger.Error("saving baseline failed", "path", s.path, "err", err)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	logger.Info("baseline saved", "path", s.path, "files", snap.Len(), "bytes", len(data))
	return nil
}

// encode renders the document with four-space indentation and keys in
// ascending path order.
func encode(snap *types.Snapshot) ([]byte, error) {
	records := snap.Records()
	if len(records) == 0 {
		return []byte("{}\n"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, r := range records {
		key, err := quotePath(r.Path)
		if err != nil {
			return nil, err
		}
		value, err := json.MarshalIndent(record{Hash: r.Digest, LastModified: r.ModTime, Size: r.Size}, indent, indent)
		if err != nil {
			return nil, err
		}

		buf.WriteString(indent)
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
		if i < len(records)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Load reads the stored baseline.
func (s *Store) Load() (*types.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("reading baseline %s: %w", s.path, err)
	}

	snap, err := decode(data)
	if err != nil {
		logger.Warn("baseline rejected", "path", s.path, "err", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	logger.Debug("baseline loaded", "path", s.path, "files", snap.Len())
	return snap, nil
}

// decode validates the document and converts it to a snapshot.
func decode(data []byte) (*types.Snapshot, error) {
	var doc map[string]*wireRecord
	if err := json.Unmarshal(markEscapedBytes(data), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("document is not an object")
	}

	records := make(map[string]types.FileRecord, len(doc))
	for key, w := range doc {
		path, err := restorePath(key)
		if err != nil {
			return nil, fmt.Errorf("%q: %v", key, err)
		}
		switch {
		case path == "":
			return nil, errors.New("empty path key")
		case w == nil:
			return nil, fmt.Errorf("%s: entry is null", path)
		case w.Hash == nil || *w.Hash == "":
			return nil, fmt.Errorf("%s: missing hash", path)
		case w.LastModified == nil:
			return nil, fmt.Errorf("%s: missing last_modified", path)
		case w.Size == nil:
			return nil, fmt.Errorf("%s: missing size", path)
		case *w.Size < 0:
			return nil, fmt.Errorf("%s: negative size %d", path, *w.Size)
		}
		records[path] = types.FileRecord{
			Path:    path,
			Digest:  *w.Hash,
			ModTime: *w.LastModified,
			Size:    *w.Size,
		}
	}
	return types.SnapshotFromMap(records), nil
}

// writeAtomic writes data to a temporary sibling of path and renames it
// into place once it is synced.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing baseline: %w", err)
	}

	committed = true
	return nil
}
