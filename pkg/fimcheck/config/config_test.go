package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every XDG directory at a temp dir for the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(dir, "etc"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(NewViper(""))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data", "fimcheck", "file_hashes.json"), cfg.Baseline)
	assert.Equal(t, DefaultAlgorithm, cfg.Algorithm)
	assert.Equal(t, DefaultSymlinks, cfg.Symlinks)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultExclusions, cfg.Exclude)
	assert.Zero(t, cfg.Workers)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, DefaultRetentionDays, cfg.History.RetentionDays)
	assert.Equal(t, filepath.Join(dir, "data", "fimcheck", "history"), cfg.History.Path)
	assert.Empty(t, cfg.File)
}

func TestLoad_FromFile(t *testing.T) {
	dir := isolate(t)

	content := `
root: ~/site
baseline: /var/lib/fimcheck/site.json
algorithm: BLAKE3
symlinks: follow
exclude:
  - "*.log"
workers: 6
chunk_size: 128KiB
output: json
history:
  enabled: false
  retention_days: 7
logging:
  level: debug
`
	require.NoError(t, os.MkdirAll(ConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(DefaultFile(), []byte(content), 0o644))

	cfg, err := Load(NewViper(""))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "site"), cfg.Root)
	assert.Equal(t, "/var/lib/fimcheck/site.json", cfg.Baseline)
	assert.Equal(t, "blake3", cfg.Algorithm)
	assert.Equal(t, "follow", cfg.Symlinks)
	assert.Equal(t, []string{"*.log"}, cfg.Exclude)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 128*1024, cfg.ChunkSizeBytes())
	assert.Equal(t, "json", cfg.Output)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 7, cfg.History.RetentionDays)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, DefaultFile(), cfg.File)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: pretty\n"), 0o644))

	cfg, err := Load(NewViper(path))
	require.NoError(t, err)
	assert.Equal(t, "pretty", cfg.Output)

	_, err = Load(NewViper(filepath.Join(dir, "missing.yaml")))
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("FIMCHECK_ALGORITHM", "sha512")
	t.Setenv("FIMCHECK_HISTORY_RETENTION_DAYS", "3")

	cfg, err := Load(NewViper(""))
	require.NoError(t, err)
	assert.Equal(t, "sha512", cfg.Algorithm)
	assert.Equal(t, 3, cfg.History.RetentionDays)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown algorithm", "algorithm: md5\n"},
		{"unknown symlink policy", "symlinks: chase\n"},
		{"unknown output", "output: xml\n"},
		{"too many workers", "workers: 1000\n"},
		{"bad chunk size", "chunk_size: lots\n"},
		{"negative retention", "history:\n  retention_days: -1\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"bad component level", "logging:\n  components:\n    scanner: chatty\n"},
		{"empty baseline", "baseline: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(NewViper(path))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoggingOptions(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{
		Level:      "warn",
		Path:       "/tmp/x.log",
		Rotation:   RotationConfig{MaxSize: "1MiB", MaxAge: 2, MaxBackups: 3, Daily: false},
		Components: map[string]string{"scanner": "debug"},
	}}

	opts, err := cfg.LoggingOptions("error")
	require.NoError(t, err)
	assert.Equal(t, "warn", opts.Level)
	assert.Equal(t, "/tmp/x.log", opts.Path)
	assert.EqualValues(t, 1024*1024, opts.Rotation.MaxSize)
	assert.Equal(t, 2, opts.Rotation.MaxAge)
	assert.Equal(t, 3, opts.Rotation.MaxBackups)
	assert.False(t, opts.Rotation.Daily)
	assert.Equal(t, "error", opts.ConsoleLevel)

	cfg.Logging.Rotation.MaxSize = "huge"
	_, err = cfg.LoggingOptions("")
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	isolate(t)

	path, created, err := WriteDefault("")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DefaultFile(), path)

	cfg, err := Load(NewViper(path))
	require.NoError(t, err)
	assert.Equal(t, DefaultAlgorithm, cfg.Algorithm)
	assert.Equal(t, DefaultRetentionDays, cfg.History.RetentionDays)

	_, created, err = WriteDefault("")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/data", filepath.Join(home, "data")},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~user/x", "~user/x"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
