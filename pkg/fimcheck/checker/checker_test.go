package checker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/baseline"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/checker"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/digest"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/history"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/scanner"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// countingBuilder wraps a builder and records how often it ran.
type countingBuilder struct {
	inner checker.SnapshotBuilder
	calls atomic.Int64
	algs  []digest.Algorithm
}

func (b *countingBuilder) Build(ctx context.Context, root string, alg digest.Algorithm) (*scanner.Result, error) {
	b.calls.Add(1)
	b.algs = append(b.algs, alg)
	return b.inner.Build(ctx, root, alg)
}

type failingRecorder struct{}

func (failingRecorder) Record(history.Entry) (*history.Entry, error) {
	return nil, errors.New("disk full")
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newChecker(t *testing.T) (*checker.Checker, *countingBuilder, string) {
	t.Helper()
	root := t.TempDir()
	b := &countingBuilder{inner: checker.ScanBuilder{Options: scanner.Options{Workers: 2}}}
	c := &checker.Checker{
		Store:   baseline.New(filepath.Join(t.TempDir(), "file_hashes.json")),
		Builder: b,
	}
	return c, b, root
}

func TestCheck_WithoutBaselineDoesNotDigest(t *testing.T) {
	t.Parallel()

	c, b, root := newChecker(t)
	writeFile(t, root, "a.txt", "content")

	_, err := c.Check(context.Background(), root)
	assert.ErrorIs(t, err, checker.ErrBaselineNotFound)
	assert.ErrorIs(t, err, baseline.ErrNotFound)
	assert.Zero(t, b.calls.Load())
}

func TestCheck_Idempotent(t *testing.T) {
	t.Parallel()

	c, _, root := newChecker(t)
	writeFile(t, root, "a.txt", "one")
	writeFile(t, root, "dir/b.txt", "two")

	created, err := c.CreateBaseline(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, created.Scan.Snapshot.Len())
	assert.False(t, created.Replaced)

	result, err := c.Check(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, result.Changes.HasChanges())
	assert.Equal(t, 2, result.Changes.Unchanged)
	assert.Empty(t, result.Warnings)

	again, err := c.CreateBaseline(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, again.Replaced)
}

func TestCheck_IdempotentWithNonUTF8Names(t *testing.T) {
	t.Parallel()

	c, _, root := newChecker(t)
	for _, name := range []string{"caf\xe9.txt", "caf\xe8.txt"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0o644); err != nil {
			t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
		}
	}

	created, err := c.CreateBaseline(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, created.Scan.Snapshot.Len())

	result, err := c.Check(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, result.Changes.HasChanges(), "added=%q removed=%q", result.Changes.Added, result.Changes.Removed)
	assert.Equal(t, 2, result.Changes.Unchanged)

	writeFile(t, root, "caf\xe9.txt", "edited")
	result, err = c.Check(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"caf\xe9.txt"}, result.Changes.ModifiedPaths())
	assert.Empty(t, result.Changes.Added)
	assert.Empty(t, result.Changes.Removed)
}

func TestCheck_DetectsChanges(t *testing.T) {
	t.Parallel()

	c, _, root := newChecker(t)
	writeFile(t, root, "a.txt", "original")
	writeFile(t, root, "b.txt", "to be deleted")
	writeFile(t, root, "touched.txt", "same bytes")

	_, err := c.CreateBaseline(context.Background(), root)
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "Original")
	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))
	writeFile(t, root, "c.txt", "new")
	writeFile(t, root, "touched.txt", "same bytes")

	result, err := c.Check(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"c.txt"}, result.Changes.Added)
	assert.Equal(t, []string{"b.txt"}, result.Changes.Removed)
	assert.Equal(t, []string{"a.txt"}, result.Changes.ModifiedPaths())
	assert.Equal(t, 1, result.Changes.Unchanged)
	assert.NotEqual(t, result.Changes.Modified[0].Old.Digest, result.Changes.Modified[0].New.Digest)
}

func TestCreateBaseline_RootNotFound(t *testing.T) {
	t.Parallel()

	c, _, root := newChecker(t)
	_, err := c.CreateBaseline(context.Background(), filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, scanner.ErrRootNotFound)

	_, err = c.Store.Load()
	assert.ErrorIs(t, err, baseline.ErrNotFound)
}

func TestCheck_CorruptBaseline(t *testing.T) {
	t.Parallel()

	c, b, root := newChecker(t)
	require.NoError(t, os.WriteFile(c.Store.Path(), []byte("{not json"), 0o644))

	_, err := c.Check(context.Background(), root)
	assert.ErrorIs(t, err, baseline.ErrCorrupt)
	assert.Zero(t, b.calls.Load())
}

func TestCheck_UsesBaselineAlgorithm(t *testing.T) {
	t.Parallel()

	c, b, root := newChecker(t)
	writeFile(t, root, "f", "data")

	c.Algorithm = digest.BLAKE3
	_, err := c.CreateBaseline(context.Background(), root)
	require.NoError(t, err)

	c.Algorithm = digest.SHA256
	result, err := c.Check(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, digest.BLAKE3, result.Algorithm)
	assert.Equal(t, []digest.Algorithm{digest.BLAKE3, digest.BLAKE3}, b.algs)
	assert.False(t, result.Changes.HasChanges())
	assert.Len(t, result.Warnings, 1)
}

func TestCheck_MixedAlgorithmsRejected(t *testing.T) {
	t.Parallel()

	c, b, root := newChecker(t)
	require.NoError(t, c.Store.Save(types.NewSnapshot([]types.FileRecord{
		{Path: "a", Digest: "abcd", Size: 1},
		{Path: "b", Digest: "blake3:abcd", Size: 1},
	})))

	_, err := c.Check(context.Background(), root)
	assert.ErrorIs(t, err, baseline.ErrCorrupt)
	assert.Zero(t, b.calls.Load())
}

func TestHistoryRecorded(t *testing.T) {
	t.Parallel()

	c, _, root := newChecker(t)
	store, err := history.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	c.History = store

	writeFile(t, root, "a", "1")
	created, err := c.CreateBaseline(context.Background(), root)
	require.NoError(t, err)
	require.NotEmpty(t, created.HistoryID)

	writeFile(t, root, "b", "2")
	checked, err := c.Check(context.Background(), root)
	require.NoError(t, err)

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, history.OpCheck, entries[0].Operation)
	assert.Equal(t, checked.HistoryID, entries[0].ID)
	assert.Equal(t, []string{"b"}, entries[0].Added)
	assert.Equal(t, 1, entries[0].Summary.Added)
	assert.Equal(t, history.OpBaseline, entries[1].Operation)
	assert.EqualValues(t, 1, entries[1].Summary.Files)
}

func TestHistoryFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()

	c, _, root := newChecker(t)
	c.History = failingRecorder{}
	writeFile(t, root, "a", "1")

	created, err := c.CreateBaseline(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, created.HistoryID)

	_, err = c.Check(context.Background(), root)
	require.NoError(t, err)
}
