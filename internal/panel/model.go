// Package panel renders a search session in the terminal.
package panel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/standardbeagle/lcs/internal/session"
	"github.com/standardbeagle/lcs/pkg/pathutil"
)

// Controller is the part of session.Controller the panel drives.
type Controller interface {
	Open()
	SetQuery(query string)
	SetIncludePattern(pattern string)
	SetExcludePattern(pattern string)
	ToggleFilters()
	TriggerNow()
	Cancel()
	Clear()
	Dispose()
	State() session.State
}

// StateMsg carries a session snapshot into the program. The program never
// receives it through Program.Send: the controller reports changes from
// inside Update, where Send would block the event loop.
type StateMsg session.State

type focus int

const (
	focusQuery focus = iota
	focusInclude
	focusExclude
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	fileStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	lineNumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	matchStyle   = lipgloss.NewStyle().Reverse(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
)

// headerLines is the height of everything above the results with filters hidden.
const headerLines = 5

// Model is the bubbletea model of the results panel.
type Model struct {
	ctrl    Controller
	changes *Notifier
	root    string
	state   session.State
	focus   focus
	query   textinput.Model
	include textinput.Model
	exclude textinput.Model
	results viewport.Model
	spin    spinner.Model
	width   int
	height  int
}

// New creates a panel for ctrl. root is used to shorten result paths.
// changes, when not nil, must be wired to the controller's OnChange.
func New(ctrl Controller, root string, changes *Notifier) Model {
	newInput := func(prompt, placeholder string) textinput.Model {
		ti := textinput.New()
		ti.Prompt = prompt
		ti.Placeholder = placeholder
		ti.CharLimit = 256
		ti.Width = 60
		return ti
	}

	m := Model{
		ctrl:    ctrl,
		changes: changes,
		root:    root,
		query:   newInput("Search:  ", "text to find"),
		include: newInput("Include: ", "e.g. *.go, src/**/*.ts"),
		exclude: newInput("Exclude: ", "e.g. dist, *.min.js"),
		results: viewport.New(80, 20),
		spin:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.query.Focus()

	ctrl.Open()
	m.state = ctrl.State()
	m.query.SetValue(m.state.Query)
	m.include.SetValue(m.state.IncludePattern)
	m.exclude.SetValue(m.state.ExcludePattern)
	m.refresh()
	return m
}

// Init starts the cursor blink, the spinner and the wait for state changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, m.changes.wait(m.ctrl))
}

// Update handles terminal input and session updates.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case StateMsg:
		m.state = session.State(msg)
		m.refresh()
		return m, m.changes.wait(m.ctrl)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.ctrl.Dispose()
		if m.changes != nil {
			m.changes.Close()
		}
		return m, tea.Quit

	case "ctrl+f":
		m.ctrl.ToggleFilters()
		m.sync()
		if !m.state.ShowFilters {
			m.setFocus(focusQuery)
		}
		m.resize()
		return m, nil

	case "tab":
		next := focusQuery
		if m.state.ShowFilters {
			next = (m.focus + 1) % 3
		}
		m.setFocus(next)
		return m, nil

	case "enter":
		m.ctrl.TriggerNow()
		m.sync()
		return m, nil

	case "esc":
		if m.state.IsSearching {
			m.ctrl.Cancel()
		} else {
			m.ctrl.Clear()
			m.query.SetValue("")
		}
		m.sync()
		return m, nil

	case "up", "down", "pgup", "pgdown":
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}

	return m.updateInput(msg)
}

// updateInput forwards a key to the focused input and reports edits to
// the controller.
func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusQuery:
		before := m.query.Value()
		m.query, cmd = m.query.Update(msg)
		if v := m.query.Value(); v != before {
			m.ctrl.SetQuery(v)
		}
	case focusInclude:
		before := m.include.Value()
		m.include, cmd = m.include.Update(msg)
		if v := m.include.Value(); v != before {
			m.ctrl.SetIncludePattern(v)
		}
	case focusExclude:
		before := m.exclude.Value()
		m.exclude, cmd = m.exclude.Update(msg)
		if v := m.exclude.Value(); v != before {
			m.ctrl.SetExcludePattern(v)
		}
	}
	m.sync()
	return m, cmd
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	inputs := []*textinput.Model{&m.query, &m.include, &m.exclude}
	for i, in := range inputs {
		if focus(i) == f {
			in.Focus()
		} else {
			in.Blur()
		}
	}
}

// sync pulls the controller state after a local action so the view does not
// wait for the asynchronous StateMsg.
func (m *Model) sync() {
	m.state = m.ctrl.State()
	m.refresh()
}

func (m *Model) resize() {
	if m.width == 0 {
		return
	}
	used := headerLines
	if m.state.ShowFilters {
		used += 2
	}
	m.results.Width = m.width
	m.results.Height = max(m.height-used, 1)
	m.query.Width = max(m.width-12, 10)
	m.include.Width = m.query.Width
	m.exclude.Width = m.query.Width
}

func (m *Model) refresh() {
	m.results.SetContent(m.renderResults())
}

func (m Model) renderResults() string {
	if len(m.state.Results) == 0 {
		return ""
	}
	var b strings.Builder
	for _, file := range m.state.Results {
		fmt.Fprintf(&b, "%s %s\n",
			fileStyle.Render(pathutil.ToRelative(file.FilePath, m.root)),
			countStyle.Render(fmt.Sprintf("(%d)", len(file.Matches))))
		for _, match := range file.Matches {
			fmt.Fprintf(&b, "  %s %s\n",
				lineNumStyle.Render(fmt.Sprintf("%5d:", match.LineNumber)),
				highlight(match.LineText, match.MatchStart, match.MatchLength))
		}
	}
	return b.String()
}

// highlight marks the matched characters when they fall inside the
// (possibly truncated) line text.
func highlight(line string, start, length int) string {
	runes := []rune(line)
	if start < 0 || start >= len(runes) {
		return line
	}
	end := min(start+length, len(runes))
	return string(runes[:start]) + matchStyle.Render(string(runes[start:end])) + string(runes[end:])
}

// Status returns the one-line summary under the inputs.
func (m Model) Status() string {
	s := m.state
	switch {
	case s.Error != "":
		return errorStyle.Render("Error: " + s.Error)
	case s.IsSearching:
		return fmt.Sprintf("%s Searching... %d files searched, %d matches in %d files",
			m.spin.View(), s.FilesSearched, s.TotalMatches, s.TotalFiles)
	case strings.TrimSpace(s.Query) == "":
		return ""
	case s.TotalMatches == 0:
		return fmt.Sprintf("No results (%d files searched)", s.FilesSearched)
	default:
		return fmt.Sprintf("%d matches in %d files (%d files searched)",
			s.TotalMatches, s.TotalFiles, s.FilesSearched)
	}
}

// View renders the panel.
func (m Model) View() string {
	lines := []string{titleStyle.Render("Find in Files"), m.query.View()}
	if m.state.ShowFilters {
		lines = append(lines, m.include.View(), m.exclude.View())
	}
	lines = append(lines,
		m.Status(),
		helpStyle.Render("enter: search • ctrl+f: filters • tab: next field • esc: cancel/clear • ctrl+c: quit"),
		m.results.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
