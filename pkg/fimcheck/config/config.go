package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/baseline"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/digest"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/history"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/logging"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size" validate:"omitempty,bytesize"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components" validate:"dive,oneof=debug info warn warning error"`
}

// HistoryConfig configures the operation history store.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days" validate:"gte=0"`
}

// Config represents the application configuration.
type Config struct {
	// Root is the directory monitored when none is given. Empty prompts.
	Root      string   `mapstructure:"root" yaml:"root"`
	Baseline  string   `mapstructure:"baseline" yaml:"baseline" validate:"required"`
	Algorithm string   `mapstructure:"algorithm" yaml:"algorithm" validate:"required,digestalgo"`
	Symlinks  string   `mapstructure:"symlinks" yaml:"symlinks" validate:"required,oneof=skip follow record"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude"`

	// Workers is the number of digest workers. Zero tunes automatically.
	Workers int `mapstructure:"workers" yaml:"workers" validate:"gte=0,lte=64"`

	// ChunkSize is the read buffer per worker, e.g. "64KiB". Empty tunes automatically.
	ChunkSize string `mapstructure:"chunk_size" yaml:"chunk_size" validate:"omitempty,bytesize"`

	Output  string        `mapstructure:"output" yaml:"output" validate:"required,oneof=text pretty json yaml"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

// ChunkSizeBytes returns the parsed chunk size, or zero when unset.
func (c *Config) ChunkSizeBytes() int {
	if c.ChunkSize == "" {
		return 0
	}
	n, err := types.ParseSize(c.ChunkSize)
	if err != nil {
		return 0
	}
	return int(n)
}

// LoggingOptions converts the logging section for logging.Init.
// consoleLevel enables stderr output; empty disables it.
func (c *Config) LoggingOptions(consoleLevel string) (logging.Config, error) {
	rotation := logging.DefaultRotationConfig()
	if c.Logging.Rotation.MaxSize != "" {
		size, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("logging.rotation.max_size: %w", err)
		}
		rotation.MaxSize = size
	}
	rotation.MaxAge = c.Logging.Rotation.MaxAge
	rotation.MaxBackups = c.Logging.Rotation.MaxBackups
	rotation.Daily = c.Logging.Rotation.Daily

	return logging.Config{
		Level:        c.Logging.Level,
		Path:         c.Logging.Path,
		Rotation:     rotation,
		Components:   c.Logging.Components,
		ConsoleLevel: consoleLevel,
	}, nil
}

// ErrInvalid is returned when the loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// NewViper returns a viper instance with defaults, search paths and
// environment binding set. A non-empty file is used instead of the search
// paths.
func NewViper(file string) *viper.Viper {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		for _, dir := range xdg.ConfigDirs {
			v.AddConfigPath(filepath.Join(dir, "fimcheck"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return v
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", "")
	v.SetDefault("baseline", baseline.DefaultPath())
	v.SetDefault("algorithm", DefaultAlgorithm)
	v.SetDefault("symlinks", DefaultSymlinks)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("workers", 0)
	v.SetDefault("chunk_size", "")
	v.SetDefault("output", DefaultOutput)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", history.DefaultDir())
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"scanner": "info",
		"checker": "info",
		"history": "warn",
	})
}

// Load reads the configuration from v, which is typically created by
// NewViper and has command-line flags bound to it. A missing config file
// is not an error when the search paths were used.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = NewViper("")
	}

	// An explicitly named file must exist.
	if explicit := v.ConfigFileUsed(); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize lowercases enum fields and expands ~ in paths.
func (c *Config) normalize() error {
	c.Algorithm = strings.ToLower(strings.TrimSpace(c.Algorithm))
	c.Symlinks = strings.ToLower(strings.TrimSpace(c.Symlinks))
	c.Output = strings.ToLower(strings.TrimSpace(c.Output))

	for _, p := range []*string{&c.Root, &c.Baseline, &c.History.Path, &c.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bytesize", func(fl validator.FieldLevel) bool {
		_, err := types.ParseSize(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("digestalgo", func(fl validator.FieldLevel) bool {
		_, err := digest.ParseAlgorithm(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ConfigDir returns $XDG_CONFIG_HOME/fimcheck.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "fimcheck")
}

// DefaultFile returns the default config file path.
func DefaultFile() string {
	return filepath.Join(ConfigDir(), FileName+".yaml")
}

// DataDir returns $XDG_DATA_HOME/fimcheck for the baseline and history.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "fimcheck")
}

// StateDir returns $XDG_STATE_HOME/fimcheck for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "fimcheck")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}
