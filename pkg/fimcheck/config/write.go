package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/baseline"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/history"
)

const defaultTemplate = `# fimcheck configuration

# Directory to monitor when none is given on the command line.
# Empty means fimcheck asks for it.
root: ""

# Baseline file (JSON, keyed by relative path)
baseline: %s

# Digest algorithm for new baselines: sha256, sha512, sha3-256, blake2b-256, blake3
# Checks always use the algorithm the baseline was created with.
algorithm: %s

# Symbolic links: record (hash the link target path), follow, or skip
symlinks: %s

# Glob patterns matched against relative paths and base names
exclude:
  - .git
  - .hg
  - .svn

# Digest workers and read buffer size (0 / empty tunes automatically)
workers: 0
chunk_size: ""

# Default report format for 'fimcheck check': text, pretty, json, yaml
output: %s

# Operation history
history:
  enabled: true
  path: %s
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/fimcheck/fimcheck.log)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    scanner: info
    checker: info
    history: warn
`

// WriteDefault writes a default config file to path, or to DefaultFile when
// path is empty. An existing file is left alone and created is false.
func WriteDefault(path string) (written string, created bool, err error) {
	if path == "" {
		path = DefaultFile()
	}

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return path, false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, false, fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(defaultTemplate,
		baseline.DefaultPath(),
		DefaultAlgorithm,
		DefaultSymlinks,
		DefaultOutput,
		history.DefaultDir(),
		DefaultRetentionDays)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return path, false, fmt.Errorf("failed to write default config: %w", err)
	}
	return path, true, nil
}
