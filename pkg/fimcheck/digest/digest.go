// Package digest streams file contents through a cryptographic hash function.
//
// Files are read in fixed-size chunks so memory stays bounded regardless of
// file size. The hash algorithm is a parameter of the Engine; all supported
// algorithms produce at least 256 bits of output.
//
// Basic usage:
//
//	eng, err := digest.New(digest.SHA256, 64*types.KiB)
//	if err != nil {
//	    return err
//	}
//	sum, err := eng.DigestFile("/etc/passwd")
package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a supported hash function.
type Algorithm string

// Supported algorithms.
const (
	SHA256     Algorithm = "sha256"
	SHA512     Algorithm = "sha512"
	SHA3_256   Algorithm = "sha3-256"
	BLAKE2b256 Algorithm = "blake2b-256"
	BLAKE3     Algorithm = "blake3"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = SHA256

// DefaultChunkSize is the read buffer size used when none is configured.
const DefaultChunkSize = 64 * 1024

// minChunkSize keeps tiny configured values from degenerating into byte-at-a-time reads.
const minChunkSize = 512

// algorithmSeparator separates the algorithm prefix from the hex digest.
const algorithmSeparator = ":"

// ErrUnknownAlgorithm is returned for an algorithm name that is not supported.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

var constructors = map[Algorithm]func() hash.Hash{
	SHA256:   sha256.New,
	SHA512:   sha512.New,
	SHA3_256: sha3.New256,
	BLAKE2b256: func() hash.Hash {
		// New256 only fails for keys longer than 64 bytes.
		h, _ := blake2b.New256(nil)
		return h
	},
	BLAKE3: func() hash.Hash { return blake3.New() },
}

// Algorithms returns the names of all supported algorithms, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(constructors))
	for a := range constructors {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return names
}

// ParseAlgorithm validates an algorithm name. An empty name selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if a == "" {
		return DefaultAlgorithm, nil
	}
	if _, ok := constructors[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return a, nil
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	ctor, ok := constructors[a]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
	return ctor(), nil
}

// Encode renders a raw sum. SHA-256 sums are plain lowercase hex so baselines
// stay compatible with earlier tools; other algorithms carry an "algo:" prefix.
func (a Algorithm) Encode(sum []byte) string {
	h := hex.EncodeToString(sum)
	if a == SHA256 {
		return h
	}
	return string(a) + algorithmSeparator + h
}

// AlgorithmOf returns the algorithm that produced an encoded digest.
func AlgorithmOf(encoded string) (Algorithm, error) {
	prefix, _, found := strings.Cut(encoded, algorithmSeparator)
	if !found {
		return SHA256, nil
	}
	return ParseAlgorithm(prefix)
}

// UnreadableError reports a file whose contents could not be read.
type UnreadableError struct {
	Path string
	Err  error
}

func (e *UnreadableError) Error() string {
	return fmt.Sprintf("unreadable %s: %v", e.Path, e.Err)
}

func (e *UnreadableError) Unwrap() error {
	return e.Err
}

// Engine computes digests with a fixed algorithm and chunk size.
// It is safe for concurrent use; each call gets its own hash state and a
// pooled read buffer.
type Engine struct {
	algorithm Algorithm
	chunkSize int
	buffers   sync.Pool
}

// New creates an Engine. A chunkSize of zero selects DefaultChunkSize.
func New(algorithm Algorithm, chunkSize int) (*Engine, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	if _, ok := constructors[algorithm]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(algorithm))
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkSize = max(chunkSize, minChunkSize)

	e := &Engine{
		algorithm: algorithm,
		chunkSize: chunkSize,
	}
	e.buffers.New = func() any {
		buf := make([]byte, e.chunkSize)
		return &buf
	}
	return e, nil
}

// Algorithm returns the engine's hash algorithm.
func (e *Engine) Algorithm() Algorithm {
	return e.algorithm
}

// ChunkSize returns the size of each read.
func (e *Engine) ChunkSize() int {
	return e.chunkSize
}

// DigestFile hashes the full contents of the file at path.
// Any failure to open or read the file is returned as *UnreadableError.
func (e *Engine) DigestFile(path string) (string, error) {
	sum, _, err := e.digestFile(path)
	return sum, err
}

// DigestFileSize is DigestFile that also returns the number of bytes hashed.
func (e *Engine) DigestFileSize(path string) (string, int64, error) {
	return e.digestFile(path)
}

func (e *Engine) digestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, &UnreadableError{Path: path, Err: err}
	}
	defer f.Close()

	sum, n, err := e.Digest(f)
	if err != nil {
		return "", n, &UnreadableError{Path: path, Err: err}
	}
	return sum, n, nil
}

// Digest hashes everything readable from r and returns the encoded digest
// together with the number of bytes consumed.
func (e *Engine) Digest(r io.Reader) (string, int64, error) {
	h, err := e.algorithm.New()
	if err != nil {
		return "", 0, err
	}

	bufp, _ := e.buffers.Get().(*[]byte)
	defer e.buffers.Put(bufp)

	n, err := io.CopyBuffer(onlyWriter{h}, onlyReader{r}, *bufp)
	if err != nil {
		return "", n, err
	}
	return e.algorithm.Encode(h.Sum(nil)), n, nil
}

// DigestBytes hashes an in-memory value.
func (e *Engine) DigestBytes(data []byte) string {
	h, _ := e.algorithm.New()
	h.Write(data)
	return e.algorithm.Encode(h.Sum(nil))
}

// onlyReader and onlyWriter hide ReadFrom/WriteTo so io.CopyBuffer always
// goes through the fixed-size buffer.
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

type onlyWriter struct{ w io.Writer }

func (o onlyWriter) Write(p []byte) (int, error) { return o.w.Write(p) }
