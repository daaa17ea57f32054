// Package history keeps an audit trail of baseline and check operations in
// an embedded badger database.
//
// Entries are keyed by timestamp so listing newest first is a reverse
// prefix scan; a secondary id key points at the entry key.
package history

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/logging"
)

var (
	// ErrNotFound is returned when no entry matches an id.
	ErrNotFound = errors.New("history entry not found")

	// ErrAmbiguous is returned when an id prefix matches several entries.
	ErrAmbiguous = errors.New("history id prefix is ambiguous")
)

var (
	entryPrefix = []byte("entry/")
	idPrefix    = []byte("id/")
)

var logger = logging.Get("history")

// DefaultDir returns $XDG_DATA_HOME/fimcheck/history.
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "fimcheck", "history")
}

// Store wraps badger for history operations.
type Store struct {
	db  *badger.DB
	dir string
	now func() time.Time
}

// Open opens or creates a history store in dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening history store %s: %w", dir, err)
	}

	return &Store{db: db, dir: dir, now: time.Now}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the database directory.
func (s *Store) Dir() string {
	return s.dir
}

// Record stores e, assigning an ID and timestamp when they are unset.
// The stored entry is returned.
func (s *Store) Record(e Entry) (*Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	e.Timestamp = e.Timestamp.UTC()

	value, err := e.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding history entry: %w", err)
	}

	key := entryKey(e.Timestamp, e.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(idKey(e.ID), key)
	})
	if err != nil {
		return nil, fmt.Errorf("writing history entry: %w", err)
	}

	logger.Debug("recorded history entry", "id", e.ID, "operation", e.Operation)
	return &e, nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns every entry.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(bytes.Clone(entryPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(entryPrefix); it.Next() {
			var e Entry
			if err := it.Item().Value(e.Decode); err != nil {
				logger.Warn("skipping undecodable history entry", "key", string(it.Item().Key()), "err", err)
				continue
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return entries, nil
}

// Get returns the entry whose ID equals id or, failing that, the single
// entry whose ID starts with id.
func (s *Store) Get(id string) (*Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		key, err := resolveID(txn, id)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAmbiguous) {
			return nil, fmt.Errorf("%w: %s", err, id)
		}
		return nil, fmt.Errorf("reading history entry: %w", err)
	}
	return &entry, nil
}

// resolveID maps an id or unique id prefix to the entry key.
func resolveID(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(idKey(id))
	if err == nil {
		return item.ValueCopy(nil)
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, err
	}

	prefix := idKey(id)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var found []byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if found != nil {
			return nil, ErrAmbiguous
		}
		found, err = it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// Cleanup removes entries older than retentionDays and returns how many
// were removed. A retention of zero or less keeps everything.
func (s *Store) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := entryKey(s.now().AddDate(0, 0, -retentionDays).UTC(), "")

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(entryPrefix); it.ValidForPrefix(entryPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if bytes.Compare(key, cutoff) >= 0 {
				break
			}
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning history: %w", err)
	}

	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
		if id := idFromEntryKey(key); id != "" {
			if err := wb.Delete(idKey(id)); err != nil {
				return 0, err
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("deleting history entries: %w", err)
	}

	logger.Info("cleaned history", "removed", len(stale), "retention_days", retentionDays)
	return len(stale), nil
}

// entryKey builds entry/<unix nanos, zero padded>/<id>.
func entryKey(ts time.Time, id string) []byte {
	return fmt.Appendf(bytes.Clone(entryPrefix), "%020d/%s", ts.UnixNano(), id)
}

func idKey(id string) []byte {
	return append(bytes.Clone(idPrefix), id...)
}

func idFromEntryKey(key []byte) string {
	rest := bytes.TrimPrefix(key, entryPrefix)
	idx := bytes.IndexByte(rest, '/')
	if idx == -1 {
		return ""
	}
	return string(rest[idx+1:])
}
