package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/config"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/logging"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/session"
)

// useConfig points the command globals at a config file under a temp dir
// and returns the directory to monitor.
func useConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	doc := fmt.Sprintf("baseline: %s\nhistory:\n  enabled: false\nlogging:\n  path: %s\n",
		filepath.Join(dir, "file_hashes.json"), filepath.Join(dir, "fimcheck.log"))
	if err := os.WriteFile(cfgPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	prevV, prevFail := v, failOnChange
	v = config.NewViper(cfgPath)
	t.Cleanup(func() {
		v, failOnChange = prevV, prevFail
		checkCmd.SetOut(nil)
		_ = logging.Close()
	})

	root := filepath.Join(dir, "tree")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return root
}

func TestRunCheck_WithoutBaseline(t *testing.T) {
	root := useConfig(t)

	var out bytes.Buffer
	checkCmd.SetOut(&out)
	err := runCheck(checkCmd, []string{root})

	var opErr *operationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected an operationError, got %v", err)
	}
	if opErr.msg != session.BaselineMissing {
		t.Errorf("expected %q, got %q", session.BaselineMissing, opErr.msg)
	}
	if exitCode(err) != 1 {
		t.Errorf("expected exit status 1, got %d", exitCode(err))
	}
}

func TestRunCheck_FailOnChange(t *testing.T) {
	root := useConfig(t)
	failOnChange = true

	if err := runBaseline(baselineCmd, []string{root}); err != nil {
		t.Fatalf("baseline: %v", err)
	}

	var out bytes.Buffer
	checkCmd.SetOut(&out)
	if err := runCheck(checkCmd, []string{root}); err != nil {
		t.Fatalf("check of an unchanged tree: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("changed"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	out.Reset()
	err := runCheck(checkCmd, []string{root})
	if exitCode(err) != 2 {
		t.Fatalf("expected exit status 2, got %v", err)
	}
	if !strings.Contains(out.String(), "a.txt") {
		t.Errorf("expected the modified file in the report, got:\n%s", out.String())
	}
}
