// Package types provides core data types for the fimcheck integrity checker.
// It includes the per-file record captured at scan time, the immutable
// snapshot that maps relative paths to records, the change report produced
// by comparing two snapshots, and helpers for parsing and formatting sizes.
package types

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// FileRecord captures the integrity-relevant state of one file at a point in time.
type FileRecord struct {
	// Path is relative to the monitored root and always uses '/' as separator.
	Path string `json:"path"`

	// Digest is the encoded output of the hash function over the full file contents.
	Digest string `json:"hash"`

	// ModTime is the modification time in seconds since the epoch.
	// It is informational only and never used to decide whether a file changed.
	ModTime float64 `json:"last_modified"`

	// Size is the file size in bytes. Informational only.
	Size int64 `json:"size"`
}

// ModifiedAt returns ModTime as a time.Time.
func (r FileRecord) ModifiedAt() time.Time {
	sec, frac := math.Modf(r.ModTime)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// HumanSize returns the file size formatted as a human-readable string.
func (r FileRecord) HumanSize() string {
	return FormatSize(r.Size)
}

// EpochSeconds converts a time.Time to fractional seconds since the epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// ScanProgress reports real-time snapshot build progress.
type ScanProgress struct {
	// DirsScanned is the number of directories visited so far.
	DirsScanned int64 `json:"dirs_scanned"`

	// FilesScanned is the number of files digested so far.
	FilesScanned int64 `json:"files_scanned"`

	// FilesSkipped is the number of files that could not be read.
	FilesSkipped int64 `json:"files_skipped"`

	// BytesHashed is the total number of bytes fed through the hash so far.
	BytesHashed int64 `json:"bytes_hashed"`

	// CurrentPath is the path most recently visited.
	CurrentPath string `json:"current_path"`

	// WalkComplete indicates that directory traversal is finished.
	WalkComplete bool `json:"walk_complete,omitempty"`
}

// ScanError represents a recoverable error encountered while building a snapshot.
type ScanError struct {
	// Path is the file or directory path where the error occurred.
	Path string `json:"path"`

	// Error is the error message describing what went wrong.
	Error string `json:"error"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It accepts plain byte counts ("4096") and K/M/G/T suffixes with optional
// "B" or "iB" ("64K", "64KiB", "1.5GB"). All suffixes are binary multiples.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using IEC units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
