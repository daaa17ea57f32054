package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/fimcheck/pkg/fimcheck/checker"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/output"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/session"
	"github.com/jamesainslie/fimcheck/pkg/fimcheck/types"
)

// AppState represents the current screen.
type AppState int

const (
	StatePath AppState = iota
	StateMenu
	StateRunning
	StateResult
)

// Options configures the TUI application.
type Options struct {
	// Root is the monitored directory. Empty starts at the directory prompt.
	Root string

	// Operations runs baselines and checks.
	Operations session.Operations

	// Progress delivers build progress while an operation runs. May be nil.
	Progress <-chan types.ScanProgress

	// BaselinePath and Algorithm are shown in the header.
	BaselinePath string
	Algorithm    string
}

type menuItem struct {
	key   string
	label string
}

var menuItems = []menuItem{
	{session.ChoiceBaseline, "Create baseline"},
	{session.ChoiceCheck, "Check integrity"},
	{session.ChoiceExit, "Exit"},
}

// Model is the Bubble Tea model for the fimcheck TUI.
type Model struct {
	state   AppState
	options Options
	root    string

	input    textinput.Model
	cursor   int
	notice   string
	runModel RunModel
	result   string

	cancel context.CancelFunc

	width  int
	height int
}

// ProgressMsg carries build progress from the scanner.
type ProgressMsg types.ScanProgress

// BaselineDoneMsg is sent when a baseline operation finishes.
type BaselineDoneMsg struct {
	Result *checker.BaselineResult
	Err    error
}

// CheckDoneMsg is sent when a check operation finishes.
type CheckDoneMsg struct {
	Result *checker.CheckResult
	Err    error
}

// NewModel creates a new TUI model with the given options.
func NewModel(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "/path/to/monitor"
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Focus()

	m := Model{
		state:   StatePath,
		options: opts,
		input:   ti,
		width:   80,
		height:  24,
	}
	if strings.TrimSpace(opts.Root) != "" {
		m.root = opts.Root
		m.state = StateMenu
	}
	return m
}

// State returns the current screen.
func (m Model) State() AppState {
	return m.state
}

// Root returns the monitored directory, empty until it has been entered.
func (m Model) Root() string {
	return m.root
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listenForProgress())
}

// listenForProgress waits for the next progress update. Exactly one
// listener is outstanding for the lifetime of the program.
func (m Model) listenForProgress() tea.Cmd {
	ch := m.options.Progress
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return ProgressMsg(p)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-10, 20)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ProgressMsg:
		if m.state == StateRunning {
			m.runModel.SetProgress(types.ScanProgress(msg))
		}
		return m, m.listenForProgress()

	case spinner.TickMsg:
		if m.state != StateRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.runModel, cmd = m.runModel.Update(msg)
		return m, cmd

	case BaselineDoneMsg:
		m.finish()
		if msg.Err != nil {
			m.result = m.renderFailure(msg.Err)
		} else {
			m.result = renderBaseline(msg.Result)
		}
		return m, nil

	case CheckDoneMsg:
		m.finish()
		if msg.Err != nil {
			m.result = m.renderFailure(msg.Err)
		} else {
			m.result = renderCheck(msg.Result)
		}
		return m, nil
	}

	if m.state == StatePath {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) finish() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = StateResult
}

// handleKey handles keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		if m.state == StateRunning && m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}

	switch m.state {
	case StatePath:
		return m.handlePathKey(msg)
	case StateMenu:
		return m.handleMenuKey(key)
	case StateRunning:
		if key == "esc" && m.cancel != nil {
			m.cancel()
		}
		return m, nil
	case StateResult:
		switch key {
		case "q":
			return m, tea.Quit
		case "enter", "esc", " ", "backspace":
			m.state = StateMenu
			m.result = ""
		}
	}
	return m, nil
}

func (m Model) handlePathKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "enter":
		root := m.input.Value()
		if strings.TrimSpace(root) == "" {
			m.notice = "Please enter a directory."
			return m, nil
		}
		m.root = root
		m.notice = ""
		m.state = StateMenu
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleMenuKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(menuItems)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		return m.choose(menuItems[m.cursor].key)
	case "q", "esc":
		return m, tea.Quit
	}
	return m.choose(key)
}

// choose dispatches a menu choice.
func (m Model) choose(choice string) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch choice {
	case session.ChoiceBaseline:
		return m.start("Creating baseline...", func(ctx context.Context, ops session.Operations, root string) tea.Msg {
			res, err := ops.CreateBaseline(ctx, root)
			return BaselineDoneMsg{Result: res, Err: err}
		})
	case session.ChoiceCheck:
		return m.start("Checking integrity...", func(ctx context.Context, ops session.Operations, root string) tea.Msg {
			res, err := ops.Check(ctx, root)
			return CheckDoneMsg{Result: res, Err: err}
		})
	case session.ChoiceExit:
		return m, tea.Quit
	}

	m.notice = session.InvalidChoice
	return m, nil
}

type operation func(ctx context.Context, ops session.Operations, root string) tea.Msg

func (m Model) start(label string, op operation) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateRunning
	m.runModel = NewRunModel(label)

	ops, root := m.options.Operations, m.root
	return m, tea.Batch(m.runModel.Init(), func() tea.Msg {
		return op(ctx, ops, root)
	})
}

func (m Model) renderFailure(err error) string {
	if errors.Is(err, context.Canceled) {
		return warningTextStyle.Render("Operation cancelled.")
	}
	return errorTextStyle.Render(session.Describe(m.root, err))
}

func renderBaseline(r *checker.BaselineResult) string {
	var b strings.Builder
	for _, e := range r.Scan.Errors {
		b.WriteString(warningTextStyle.Render(fmt.Sprintf("Error reading %s: %s", e.Path, e.Error)))
		b.WriteString("\n")
	}
	b.WriteString(successTextStyle.Render(session.BaselineCreated(r.BaselinePath)))
	b.WriteString("\n")
	b.WriteString(mutedTextStyle.Render(fmt.Sprintf("%s files, %s in %s",
		humanize.Comma(int64(r.Scan.Snapshot.Len())),
		humanize.IBytes(uint64(r.Scan.Snapshot.TotalSize())),
		formatDuration(r.Scan.Elapsed))))
	return b.String()
}

func renderCheck(r *checker.CheckResult) string {
	var buf bytes.Buffer
	if err := (&output.PrettyFormatter{}).Format(&buf, output.FromCheck(r)); err != nil {
		return errorTextStyle.Render(fmt.Sprintf("Error: %v", err))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// View renders the current screen.
func (m Model) View() string {
	contentWidth := max(m.width-4, 40)

	var b strings.Builder
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", contentWidth)))
	b.WriteString("\n\n")

	switch m.state {
	case StatePath:
		b.WriteString(session.RootPrompt)
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
		if m.notice != "" {
			b.WriteString(warningTextStyle.Render(m.notice))
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("enter confirm • esc quit"))

	case StateMenu:
		b.WriteString(titleStyle.Render(session.MenuTitle))
		b.WriteString("\n\n")
		for i, item := range menuItems {
			line := fmt.Sprintf("%s. %s", item.key, item.label)
			if i == m.cursor {
				b.WriteString(selectedItemStyle.Render("› " + line))
			} else {
				b.WriteString(normalItemStyle.Render("  " + line))
			}
			b.WriteString("\n")
		}
		if m.notice != "" {
			b.WriteString("\n")
			b.WriteString(warningTextStyle.Render(m.notice))
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render(
			keyStyle.Render("1-3") + " select • " +
				keyStyle.Render("↑/↓") + " move • " +
				keyStyle.Render("enter") + " choose • " +
				keyStyle.Render("q") + " quit"))

	case StateRunning:
		b.WriteString(m.runModel.View(contentWidth))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc cancel • ctrl+c quit"))

	case StateResult:
		b.WriteString(m.result)
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter back to menu • q quit"))
	}

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m Model) renderHeader(width int) string {
	title := titleStyle.Render("fimcheck")
	if m.root != "" {
		title += "  " + accentTextStyle.Render(truncatePath(m.root, max(width/2, 10)))
	}

	var details []string
	if m.options.Algorithm != "" {
		details = append(details, m.options.Algorithm)
	}
	if m.options.BaselinePath != "" {
		details = append(details, truncatePath(m.options.BaselinePath, max(width/3, 10)))
	}
	hint := mutedTextStyle.Render(strings.Join(details, " • "))

	spacing := max(width-lipgloss.Width(title)-lipgloss.Width(hint), 1)
	return title + strings.Repeat(" ", spacing) + hint
}
