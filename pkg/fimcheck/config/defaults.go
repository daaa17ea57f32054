// Package config loads fimcheck configuration from a YAML file, FIMCHECK_*
// environment variables and command-line flags.
package config

// Default configuration values.
const (
	// DefaultAlgorithm is the digest algorithm for new baselines.
	DefaultAlgorithm = "sha256"

	// DefaultSymlinks is the symlink policy.
	DefaultSymlinks = "record"

	// DefaultOutput is the report format of the check command.
	DefaultOutput = "text"

	// DefaultRetentionDays is how long history entries are kept.
	DefaultRetentionDays = 90

	// DefaultLogLevel is the file log level.
	DefaultLogLevel = "info"

	// EnvPrefix prefixes environment overrides, e.g. FIMCHECK_ALGORITHM.
	EnvPrefix = "FIMCHECK"

	// FileName is the config file name without extension.
	FileName = "config"
)

// DefaultExclusions are version control directories that churn constantly.
var DefaultExclusions = []string{
	".git",
	".hg",
	".svn",
}
