package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/config"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"changes", errChangesDetected, 2},
		{"wrapped changes", fmt.Errorf("check: %w", errChangesDetected), 2},
		{"other", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolveRoot(t *testing.T) {
	cfg := &config.Config{}
	if got := resolveRoot(nil, cfg); got != "." {
		t.Errorf("expected '.', got %q", got)
	}

	cfg.Root = "/srv"
	if got := resolveRoot(nil, cfg); got != "/srv" {
		t.Errorf("expected configured root, got %q", got)
	}
	if got := resolveRoot([]string{"/etc"}, cfg); got != "/etc" {
		t.Errorf("expected argument to win, got %q", got)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	env := []string{"HOME=/root", "FIMCHECK_OUTPUT=json", "FIMCHECK_ALGORITHM=blake3", "PATH=/bin"}
	got := environmentOverrides(env)

	want := []string{"FIMCHECK_ALGORITHM=blake3", "FIMCHECK_OUTPUT=json"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("baseline", "", "")
	flags.String("algorithm", "", "")
	flags.String("symlinks", "", "")
	flags.StringSlice("exclude", nil, "")
	flags.Int("workers", 0, "")
	flags.String("output", "", "")
	flags.Bool("verbose", false, "")
	flags.Bool("quiet", false, "")
	flags.Bool("plain", false, "")

	baselinePath := filepath.Join(dir, "hashes.json")
	if err := flags.Parse([]string{"--algorithm", "blake3", "--baseline", baselinePath, "--workers", "3"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	vp := config.NewViper("")
	bindFlags(vp, flags)

	if got := vp.GetString("algorithm"); got != "blake3" {
		t.Errorf("expected algorithm blake3, got %q", got)
	}
	if got := vp.GetString("baseline"); got != baselinePath {
		t.Errorf("expected baseline %q, got %q", baselinePath, got)
	}
	if got := vp.GetInt("workers"); got != 3 {
		t.Errorf("expected workers 3, got %d", got)
	}
	if got := vp.GetString("symlinks"); got != config.DefaultSymlinks {
		t.Errorf("unset flag should keep the default, got %q", got)
	}
}
