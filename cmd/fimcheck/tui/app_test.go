package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/checker"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/scanner"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/session"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

type fakeOps struct {
	baselineErr error
	checkErr    error
	roots       []string
}

func (f *fakeOps) CreateBaseline(_ context.Context, root string) (*checker.BaselineResult, error) {
	f.roots = append(f.roots, root)
	if f.baselineErr != nil {
		return nil, f.baselineErr
	}
	return &checker.BaselineResult{
		Root:         root,
		BaselinePath: "/var/lib/fimcheck/file_hashes.json",
		Scan: &scanner.Result{
			Snapshot: types.NewSnapshot([]types.FileRecord{
				{Path: "a", Digest: "1", Size: 1024},
				{Path: "b", Digest: "2", Size: 1024},
			}),
			FilesScanned: 2,
			BytesHashed:  2048,
			Elapsed:      time.Second,
		},
	}, nil
}

func (f *fakeOps) Check(_ context.Context, root string) (*checker.CheckResult, error) {
	f.roots = append(f.roots, root)
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &checker.CheckResult{
		Root: root,
		Changes: types.ChangeReport{
			Added:    []string{"new.txt"},
			Removed:  []string{},
			Modified: []types.Modification{},
		},
	}, nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", next)
	}
	return model, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestNewModelStartsAtPrompt(t *testing.T) {
	m := NewModel(Options{Operations: &fakeOps{}})
	if m.State() != StatePath {
		t.Errorf("expected StatePath, got %v", m.State())
	}
	if !strings.Contains(m.View(), session.RootPrompt) {
		t.Error("expected the directory prompt in the view")
	}
}

func TestNewModelWithRootStartsAtMenu(t *testing.T) {
	m := NewModel(Options{Root: "/data", Operations: &fakeOps{}})
	if m.State() != StateMenu {
		t.Errorf("expected StateMenu, got %v", m.State())
	}
	view := m.View()
	for _, want := range []string{session.MenuTitle, "1. Create baseline", "2. Check integrity", "3. Exit"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestPathEntry(t *testing.T) {
	m := NewModel(Options{Operations: &fakeOps{}})

	m, _ = update(t, m, key("enter"))
	if m.State() != StatePath {
		t.Fatalf("empty path should stay at the prompt, got %v", m.State())
	}

	m, _ = update(t, m, key("/data"))
	m, _ = update(t, m, key("enter"))
	if m.State() != StateMenu {
		t.Fatalf("expected StateMenu, got %v", m.State())
	}
	if m.Root() != "/data" {
		t.Errorf("expected root /data, got %q", m.Root())
	}
}

func TestPathEntryKeepsSpaces(t *testing.T) {
	m := NewModel(Options{Operations: &fakeOps{}})

	m, _ = update(t, m, key("   "))
	m, _ = update(t, m, key("enter"))
	if m.State() != StatePath {
		t.Fatalf("blank path should stay at the prompt, got %v", m.State())
	}

	m, _ = update(t, m, key(" data "))
	m, _ = update(t, m, key("enter"))
	if m.Root() != "    data " {
		t.Errorf("expected the entered text verbatim, got %q", m.Root())
	}
}

func TestMenuExit(t *testing.T) {
	m := NewModel(Options{Root: "/data", Operations: &fakeOps{}})

	_, cmd := update(t, m, key(session.ChoiceExit))
	if !isQuit(cmd) {
		t.Error("expected choice 3 to quit")
	}

	_, cmd = update(t, m, key("q"))
	if !isQuit(cmd) {
		t.Error("expected q to quit")
	}
}

func TestMenuInvalidChoice(t *testing.T) {
	m := NewModel(Options{Root: "/data", Operations: &fakeOps{}})

	m, cmd := update(t, m, key("9"))
	if cmd != nil {
		t.Error("expected no command for an invalid choice")
	}
	if m.State() != StateMenu {
		t.Errorf("expected StateMenu, got %v", m.State())
	}
	if !strings.Contains(m.View(), session.InvalidChoice) {
		t.Error("expected the invalid choice notice")
	}
}

func TestMenuCursorSelects(t *testing.T) {
	ops := &fakeOps{}
	m := NewModel(Options{Root: "/data", Operations: ops})

	m, _ = update(t, m, key("down"))
	m, cmd := update(t, m, key("enter"))
	if m.State() != StateRunning {
		t.Fatalf("expected StateRunning, got %v", m.State())
	}
	if cmd == nil {
		t.Fatal("expected a command to run the check")
	}
	if !strings.Contains(m.View(), "Checking integrity") {
		t.Error("expected the check label while running")
	}
}

func TestBaselineFlow(t *testing.T) {
	ops := &fakeOps{}
	m := NewModel(Options{Root: "/data", Operations: ops})

	m, cmd := update(t, m, key(session.ChoiceBaseline))
	if m.State() != StateRunning || cmd == nil {
		t.Fatalf("expected a running baseline, got state %v", m.State())
	}

	res, _ := ops.CreateBaseline(context.Background(), "/data")
	m, _ = update(t, m, BaselineDoneMsg{Result: res})
	if m.State() != StateResult {
		t.Fatalf("expected StateResult, got %v", m.State())
	}
	if !strings.Contains(m.View(), "Baseline created successfully") {
		t.Error("expected the success message")
	}
	if !strings.Contains(m.View(), "2 files, 2.0 KiB") {
		t.Error("expected the snapshot totals")
	}

	m, _ = update(t, m, key("enter"))
	if m.State() != StateMenu {
		t.Errorf("expected enter to return to the menu, got %v", m.State())
	}
}

func TestCheckFlow(t *testing.T) {
	ops := &fakeOps{}
	m := NewModel(Options{Root: "/data", Operations: ops})

	m, _ = update(t, m, key(session.ChoiceCheck))
	res, _ := ops.Check(context.Background(), "/data")
	m, _ = update(t, m, CheckDoneMsg{Result: res})

	if m.State() != StateResult {
		t.Fatalf("expected StateResult, got %v", m.State())
	}
	if !strings.Contains(m.View(), "new.txt") {
		t.Error("expected the added path in the result")
	}
}

func TestOperationFailures(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.Msg
		want string
	}{
		{"missing baseline", CheckDoneMsg{Err: checker.ErrBaselineNotFound}, session.BaselineMissing},
		{"missing root", BaselineDoneMsg{Err: scanner.ErrRootNotFound}, "Directory /data does not exist!"},
		{"cancelled", CheckDoneMsg{Err: context.Canceled}, "Operation cancelled."},
		{"other", BaselineDoneMsg{Err: errors.New("boom")}, "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(Options{Root: "/data", Operations: &fakeOps{}})
			m, _ = update(t, m, tt.msg)
			if m.State() != StateResult {
				t.Fatalf("expected StateResult, got %v", m.State())
			}
			if !strings.Contains(m.View(), tt.want) {
				t.Errorf("expected view to contain %q", tt.want)
			}
		})
	}
}

func TestProgressWhileRunning(t *testing.T) {
	progress := make(chan types.ScanProgress, 1)
	m := NewModel(Options{Root: "/data", Operations: &fakeOps{}, Progress: progress})

	m, _ = update(t, m, key(session.ChoiceBaseline))
	m, cmd := update(t, m, ProgressMsg{FilesScanned: 1234, CurrentPath: "/data/a.txt"})
	if cmd == nil {
		t.Error("expected progress listener to be re-armed")
	}
	if m.runModel.progress.FilesScanned != 1234 {
		t.Errorf("expected FilesScanned 1234, got %d", m.runModel.progress.FilesScanned)
	}
	if !strings.Contains(m.View(), "1,234") {
		t.Error("expected the file count in the view")
	}
}

func TestCtrlCCancelsRunningOperation(t *testing.T) {
	m := NewModel(Options{Root: "/data", Operations: &fakeOps{}})
	m, _ = update(t, m, key(session.ChoiceCheck))
	if m.cancel == nil {
		t.Fatal("expected a cancel func while running")
	}

	_, cmd := update(t, m, key("ctrl+c"))
	if !isQuit(cmd) {
		t.Error("expected ctrl+c to quit")
	}
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		path  string
		width int
		want  string
	}{
		{"/short", 20, "/short"},
		{"/a/very/long/path/to/file.txt", 12, ".../file.txt"},
		{"/abcdef", 2, "ef"},
	}

	for _, tt := range tests {
		if got := truncatePath(tt.path, tt.width); got != tt.want {
			t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.path, tt.width, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(75 * time.Second); got != "1:15" {
		t.Errorf("expected 1:15, got %s", got)
	}
}
