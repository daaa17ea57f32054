package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/digest"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/logging"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

var logger = logging.Get("scanner")

// ErrRootNotFound is returned when the root does not exist or is not a directory.
var ErrRootNotFound = errors.New("root directory not found")

// Result is a built snapshot together with statistics about the build.
type Result struct {
	// Snapshot maps root-relative paths to captured records.
	Snapshot *types.Snapshot

	// Root is the resolved absolute root that was walked.
	Root string

	// Algorithm is the hash algorithm used for every digest.
	Algorithm digest.Algorithm

	// DirsScanned is the number of directories visited.
	DirsScanned int64

	// FilesScanned is the number of files captured in the snapshot.
	FilesScanned int64

	// FilesSkipped is the number of files left out because they could not be read.
	FilesSkipped int64

	// BytesHashed is the total number of bytes digested.
	BytesHashed int64

	// Elapsed is the wall-clock build time.
	Elapsed time.Duration

	// Errors lists recoverable per-path failures.
	Errors []types.ScanError
}

// Scanner builds snapshots of a directory tree. A Scanner can be reused;
// each Build starts from a clean state.
type Scanner struct {
	opts   Options
	engine *digest.Engine
}

// New creates a Scanner with the given options.
func New(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	engine, err := digest.New(opts.Algorithm, opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	return &Scanner{opts: opts, engine: engine}, nil
}

// Options returns the validated options.
func (s *Scanner) Options() Options {
	return s.opts
}

// WithAlgorithm returns a copy of the scanner using a different hash algorithm.
func (s *Scanner) WithAlgorithm(a digest.Algorithm) (*Scanner, error) {
	opts := s.opts
	opts.Algorithm = a
	return New(opts)
}

// fileJob is a regular file waiting to be digested.
type fileJob struct {
	abs  string
	rel  string
	info fs.FileInfo
}

// build holds the state of a single Build call.
type build struct {
	s     *Scanner
	root  string
	skip  map[string]struct{}
	start time.Time

	dirsScanned  atomic.Int64
	filesScanned atomic.Int64
	filesSkipped atomic.Int64
	bytesHashed  atomic.Int64
	walkComplete atomic.Bool
	currentPath  atomic.Value
	lastProgress atomic.Int64

	mu      sync.Mutex
	records map[string]types.FileRecord
	errors  []types.ScanError
}

// Build walks the root and returns a snapshot of every captured file.
// Files that cannot be read are skipped and reported in Result.Errors.
// The walk is not atomic: files changing during the build may be captured
// in either state.
func (s *Scanner) Build(ctx context.Context) (*Result, error) {
	root, err := resolveRoot(s.opts.Root)
	if err != nil {
		return nil, err
	}

	b := &build{
		s:       s,
		root:    root,
		skip:    resolveSkipPaths(s.opts.SkipPaths),
		start:   time.Now(),
		records: make(map[string]types.FileRecord),
	}
	b.currentPath.Store(root)
	b.reportProgressForce()

	log := logger.With("root", root)
	log.Info("building snapshot",
		"algorithm", s.engine.Algorithm(),
		"workers", s.opts.Workers,
		"symlinks", s.opts.Symlinks)

	if err := b.run(ctx); err != nil {
		log.Error("snapshot build aborted", "err", err)
		return nil, err
	}

	b.walkComplete.Store(true)
	b.reportProgressForce()

	result := &Result{
		Snapshot:     types.SnapshotFromMap(b.records),
		Root:         root,
		Algorithm:    s.engine.Algorithm(),
		DirsScanned:  b.dirsScanned.Load(),
		FilesScanned: b.filesScanned.Load(),
		FilesSkipped: b.filesSkipped.Load(),
		BytesHashed:  b.bytesHashed.Load(),
		Elapsed:      time.Since(b.start),
		Errors:       b.errors,
	}

	log.Info("snapshot built",
		"files", result.FilesScanned,
		"skipped", result.FilesSkipped,
		"bytes", result.BytesHashed,
		"elapsed", result.Elapsed)

	return result, nil
}

// run starts the digest workers and the walker and waits for both.
func (b *build) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan fileJob, b.s.opts.Workers*4)

	for range b.s.opts.Workers {
		g.Go(func() error {
			for job := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				b.digest(job)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)

		conf := fastwalk.Config{
			Follow:     b.s.opts.Symlinks == SymlinkFollow,
			NumWorkers: b.s.opts.WalkWorkers,
		}
		err := fastwalk.Walk(&conf, b.root, b.walkCallback(gctx, jobs))
		if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	// A cancellation that raced with the last job leaves no error in the group.
	return ctx.Err()
}

// walkCallback returns the fastwalk callback. It is called concurrently.
func (b *build) walkCallback(ctx context.Context, jobs chan<- fileJob) fs.WalkDirFunc {
	return func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			// Unreadable directories are reported and skipped.
			b.addError(p, err)
			logger.Warn("cannot read directory entry", "path", p, "err", err)
			if d != nil && d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if p == b.root {
			b.dirsScanned.Add(1)
			return nil
		}

		rel, relErr := b.relative(p)
		if relErr != nil {
			b.addError(p, relErr)
			return nil
		}

		if _, skip := b.skip[p]; skip || b.isExcluded(rel) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		mode := d.Type()
		switch {
		case d.IsDir():
			b.dirsScanned.Add(1)
			b.currentPath.Store(p)
			b.reportProgress()
			return nil

		case mode&fs.ModeSymlink != 0:
			return b.handleSymlink(ctx, p, rel, jobs)

		case mode.IsRegular():
			info, err := d.Info()
			if err != nil {
				b.skipFile(p, err)
				return nil
			}
			return b.enqueue(ctx, jobs, fileJob{abs: p, rel: rel, info: info})

		default:
			// FIFOs, sockets and devices could block or never end.
			logger.Debug("skipping special file", "path", p, "mode", mode.String())
			return nil
		}
	}
}

// handleSymlink applies the configured symlink policy.
func (b *build) handleSymlink(ctx context.Context, p, rel string, jobs chan<- fileJob) error {
	switch b.s.opts.Symlinks {
	case SymlinkSkip:
		return nil

	case SymlinkRecord:
		target, err := os.Readlink(p)
		if err != nil {
			b.skipFile(p, err)
			return nil
		}
		info, err := os.Lstat(p)
		if err != nil {
			b.skipFile(p, err)
			return nil
		}
		b.addRecord(types.FileRecord{
			Path:    rel,
			Digest:  b.s.engine.DigestBytes([]byte(target)),
			ModTime: types.EpochSeconds(info.ModTime()),
			Size:    int64(len(target)),
		}, int64(len(target)))
		return nil

	default:
		info, err := os.Stat(p)
		if err != nil {
			b.skipFile(p, err)
			return nil
		}
		if info.IsDir() {
			// fastwalk descends into followed directory links itself.
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return b.enqueue(ctx, jobs, fileJob{abs: p, rel: rel, info: info})
	}
}

func (b *build) enqueue(ctx context.Context, jobs chan<- fileJob, job fileJob) error {
	select {
	case jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// digest hashes one file and stores its record, or records it as skipped.
func (b *build) digest(job fileJob) {
	sum, n, err := b.s.engine.DigestFileSize(job.abs)
	if err != nil {
		b.skipFile(job.abs, err)
		return
	}

	b.addRecord(types.FileRecord{
		Path:    job.rel,
		Digest:  sum,
		ModTime: types.EpochSeconds(job.info.ModTime()),
		Size:    job.info.Size(),
	}, n)
}

func (b *build) addRecord(r types.FileRecord, hashed int64) {
	b.mu.Lock()
	b.records[r.Path] = r
	b.mu.Unlock()

	b.filesScanned.Add(1)
	b.bytesHashed.Add(hashed)
	b.reportProgress()
}

// skipFile records a file that could not be captured. The build continues.
func (b *build) skipFile(p string, err error) {
	b.filesSkipped.Add(1)
	b.addError(p, err)
	logger.Warn("skipping unreadable file", "path", p, "err", err)
}

func (b *build) addError(p string, err error) {
	b.mu.Lock()
	b.errors = append(b.errors, types.ScanError{Path: p, Error: err.Error()})
	b.mu.Unlock()
}

// relative returns the root-relative path using '/' separators.
func (b *build) relative(p string) (string, error) {
	rel, err := filepath.Rel(b.root, p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// isExcluded checks if a root-relative path matches any exclusion pattern.
func (b *build) isExcluded(rel string) bool {
	for _, pattern := range b.s.opts.Exclude {
		if matchesExclusionPattern(rel, pattern) {
			return true
		}
	}
	return false
}

// matchesExclusionPattern matches a pattern against the full relative path,
// any directory prefix of it, and its base name.
func matchesExclusionPattern(rel, pattern string) bool {
	pattern = strings.TrimSuffix(filepath.ToSlash(pattern), "/")
	if pattern == "" {
		return false
	}

	if rel == pattern || strings.HasPrefix(rel, pattern+"/") {
		return true
	}
	if matched, err := path.Match(pattern, path.Base(rel)); err == nil && matched {
		return true
	}
	if matched, err := path.Match(pattern, rel); err == nil && matched {
		return true
	}
	return false
}

// reportProgress calls the progress callback at most every 10ms.
func (b *build) reportProgress() {
	if b.s.opts.OnProgress == nil {
		return
	}

	now := time.Now().UnixMilli()
	last := b.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !b.lastProgress.CompareAndSwap(last, now) {
		return
	}
	b.sendProgress()
}

// reportProgressForce bypasses the throttle for start and end of a build.
func (b *build) reportProgressForce() {
	if b.s.opts.OnProgress == nil {
		return
	}
	b.lastProgress.Store(time.Now().UnixMilli())
	b.sendProgress()
}

func (b *build) sendProgress() {
	current, _ := b.currentPath.Load().(string)
	b.s.opts.OnProgress(types.ScanProgress{
		DirsScanned:  b.dirsScanned.Load(),
		FilesScanned: b.filesScanned.Load(),
		FilesSkipped: b.filesSkipped.Load(),
		BytesHashed:  b.bytesHashed.Load(),
		CurrentPath:  current,
		WalkComplete: b.walkComplete.Load(),
	})
}

// resolveRoot returns the absolute, symlink-free root or ErrRootNotFound.
func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRootNotFound, root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRootNotFound, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, abs)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRootNotFound, abs, err)
	}
	return resolved, nil
}

// resolveSkipPaths normalizes skip paths the same way the root is resolved.
// Paths that do not exist yet are kept with a resolved parent directory.
func resolveSkipPaths(paths []string) map[string]struct{} {
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		} else if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
			abs = filepath.Join(dir, filepath.Base(abs))
		}
		out[abs] = struct{}{}
	}
	return out
}
