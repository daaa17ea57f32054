package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/baseline"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/checker"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/scanner"
)

// fakeOps returns canned errors and counts calls.
type fakeOps struct {
	baselineErr error
	checkErr    error
	baselines   int
	checks      int
	roots       []string
}

func (f *fakeOps) CreateBaseline(_ context.Context, root string) (*checker.BaselineResult, error) {
	f.baselines++
	f.roots = append(f.roots, root)
	if f.baselineErr != nil {
		return nil, f.baselineErr
	}
	return &checker.BaselineResult{BaselinePath: "/tmp/file_hashes.json", Scan: &scanner.Result{}}, nil
}

func (f *fakeOps) Check(_ context.Context, root string) (*checker.CheckResult, error) {
	f.checks++
	f.roots = append(f.roots, root)
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &checker.CheckResult{}, nil
}

func run(t *testing.T, ops Operations, input string, opts ...Option) string {
	t.Helper()
	var out bytes.Buffer
	s := New(ops, strings.NewReader(input), &out, opts...)
	require.NoError(t, s.Run(context.Background()))
	return out.String()
}

func TestRun_MenuAndExit(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{}
	out := run(t, ops, "/data\n3\n")

	assert.True(t, strings.HasPrefix(out, RootPrompt))
	assert.Contains(t, out, "\nFile Integrity Checker Menu:\n1. Create baseline\n2. Check integrity\n3. Exit\n"+ChoicePrompt)
	assert.True(t, strings.HasSuffix(out, ExitMessage+"\n"))
	assert.Zero(t, ops.baselines+ops.checks)
}

func TestRun_InvalidChoiceLoops(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{}
	out := run(t, ops, "/data\n9\nfoo\n\n3\n")

	assert.Equal(t, 3, strings.Count(out, InvalidChoice))
	assert.Equal(t, 4, strings.Count(out, MenuTitle))
}

func TestRun_EOFEndsSession(t *testing.T) {
	t.Parallel()

	out := run(t, &fakeOps{}, "/data\n1\n")
	assert.Contains(t, out, "Baseline created successfully: /tmp/file_hashes.json")
	assert.True(t, strings.HasSuffix(out, ExitMessage+"\n"))

	// End of input at the directory prompt.
	out = run(t, &fakeOps{}, "")
	assert.Equal(t, RootPrompt+"\n", out)
}

func TestRun_EmptyRootReprompts(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{}
	out := run(t, ops, "\n   \n/data\n2\n3\n")

	assert.Equal(t, 3, strings.Count(out, RootPrompt))
	assert.Equal(t, []string{"/data"}, ops.roots)
}

func TestRun_RootKeepsSurroundingSpaces(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{}
	out := run(t, ops, " dir with spaces \r\n 2 \r\n3\n")

	assert.Equal(t, []string{" dir with spaces "}, ops.roots)
	assert.Equal(t, 1, ops.checks)
	assert.NotContains(t, out, InvalidChoice)
}

func TestRun_WithRootSkipsPrompt(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{}
	out := run(t, ops, "1\n2\n3\n", WithRoot("/preset"))

	assert.NotContains(t, out, RootPrompt)
	assert.Equal(t, []string{"/preset", "/preset"}, ops.roots)
	assert.Equal(t, 1, ops.baselines)
	assert.Equal(t, 1, ops.checks)
}

func TestRun_ErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ops    *fakeOps
		choice string
		want   string
	}{
		{
			name:   "missing root on baseline",
			ops:    &fakeOps{baselineErr: fmt.Errorf("%w: /nope", scanner.ErrRootNotFound)},
			choice: "1",
			want:   "Directory /nope does not exist!",
		},
		{
			name:   "write failure",
			ops:    &fakeOps{baselineErr: fmt.Errorf("%w: disk full", baseline.ErrWriteFailed)},
			choice: "1",
			want:   "Error saving baseline: baseline write failed: disk full",
		},
		{
			name:   "missing baseline",
			ops:    &fakeOps{checkErr: fmt.Errorf("%w: /x.json", checker.ErrBaselineNotFound)},
			choice: "2",
			want:   BaselineMissing,
		},
		{
			name:   "corrupt baseline",
			ops:    &fakeOps{checkErr: fmt.Errorf("%w: /x.json: bad", baseline.ErrCorrupt)},
			choice: "2",
			want:   "Error loading baseline: baseline corrupt: /x.json: bad",
		},
		{
			name:   "missing root on check",
			ops:    &fakeOps{checkErr: fmt.Errorf("%w: /nope", scanner.ErrRootNotFound)},
			choice: "2",
			want:   "Directory /nope does not exist!",
		},
		{
			name:   "other failure",
			ops:    &fakeOps{checkErr: errors.New("boom")},
			choice: "2",
			want:   "Error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := run(t, tt.ops, "/nope\n"+tt.choice+"\n3\n")
			assert.Contains(t, out, tt.want+"\n")
			// The session keeps going after a failed operation.
			assert.True(t, strings.HasSuffix(out, ExitMessage+"\n"))
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := New(&fakeOps{}, strings.NewReader("/data\n1\n"), &out).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one"), 0o644))

	c := &checker.Checker{
		Store:   baseline.New(filepath.Join(t.TempDir(), "file_hashes.json")),
		Builder: checker.ScanBuilder{},
	}

	// Check before any baseline, then create one, then check clean.
	out := run(t, c, root+"\n2\n1\n2\n3\n")

	assert.Contains(t, out, BaselineMissing)
	assert.Contains(t, out, "Baseline created successfully: "+c.Store.Path())
	assert.Contains(t, out, "\nFile Integrity Check Results:\n============================\n"+
		"No changes detected. All files match the baseline.\n")

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("two"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("new"), 0o644))

	out = run(t, c, root+"\n2\n3\n")
	assert.Contains(t, out, "MODIFIED FILE: a.txt\nOld hash: ")
	assert.Contains(t, out, "NEW FILE DETECTED: b.txt\n")
}
