package panel

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lcs/internal/protocol"
	"github.com/standardbeagle/lcs/internal/session"
)

// fakeController records calls and keeps just enough state for the panel.
type fakeController struct {
	calls []string
	state session.State
}

func (f *fakeController) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeController) Open() {
	f.record("open")
	f.state.SearchOpen = true
}

func (f *fakeController) SetQuery(q string) {
	f.record("query:" + q)
	f.state.Query = q
}

func (f *fakeController) SetIncludePattern(p string) {
	f.record("include:" + p)
	f.state.IncludePattern = p
}

func (f *fakeController) SetExcludePattern(p string) {
	f.record("exclude:" + p)
	f.state.ExcludePattern = p
}

func (f *fakeController) ToggleFilters() {
	f.record("filters")
	f.state.ShowFilters = !f.state.ShowFilters
}

func (f *fakeController) TriggerNow() {
	f.record("trigger")
	f.state.IsSearching = true
}

func (f *fakeController) Cancel() {
	f.record("cancel")
	f.state.IsSearching = false
}

func (f *fakeController) Clear() {
	f.record("clear")
	f.state = session.State{SearchOpen: f.state.SearchOpen, ShowFilters: f.state.ShowFilters}
}

func (f *fakeController) Dispose()             { f.record("dispose") }
func (f *fakeController) State() session.State { return f.state }

func press(t *testing.T, m tea.Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m.(Model)
}

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNew_OpensSession(t *testing.T) {
	ctrl := &fakeController{}
	New(ctrl, "/work", nil)
	assert.Equal(t, []string{"open"}, ctrl.calls)
}

func TestModel_TypingUpdatesQuery(t *testing.T) {
	ctrl := &fakeController{}
	m := press(t, New(ctrl, "/work", nil), typeText("a"), typeText("b"))

	assert.Equal(t, []string{"open", "query:a", "query:ab"}, ctrl.calls)
	assert.Equal(t, "ab", m.state.Query)
}

func TestModel_FiltersAndFocus(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl, "/work", nil)

	// Without filters tab stays on the query
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusQuery, m.focus)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlF}, tea.KeyMsg{Type: tea.KeyTab}, typeText("*.go"))
	assert.Equal(t, focusInclude, m.focus)
	assert.Equal(t, "*.go", ctrl.state.IncludePattern)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}, typeText("dist"))
	assert.Equal(t, "dist", ctrl.state.ExcludePattern)
	assert.Contains(t, m.View(), "Exclude:")

	// Hiding the filters returns focus to the query
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlF})
	assert.Equal(t, focusQuery, m.focus)
	assert.NotContains(t, m.View(), "Exclude:")
}

func TestModel_EnterAndEscape(t *testing.T) {
	ctrl := &fakeController{}
	m := press(t, New(ctrl, "/work", nil), typeText("x"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.state.IsSearching)

	// First escape cancels the running search, the second clears
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "cancel", ctrl.calls[len(ctrl.calls)-1])
	assert.Equal(t, "x", m.query.Value())

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "clear", ctrl.calls[len(ctrl.calls)-1])
	assert.Empty(t, m.query.Value())
}

func TestModel_CtrlCDisposesAndQuits(t *testing.T) {
	ctrl := &fakeController{}
	_, cmd := New(ctrl, "/work", nil).Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, "dispose", ctrl.calls[len(ctrl.calls)-1])
}

func TestModel_RendersGroupedResults(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl, "/work", nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	updated, _ = updated.Update(StateMsg{
		Query:        "needle",
		TotalMatches: 3,
		TotalFiles:   2,
		Results: []protocol.SearchFileResult{
			{SearchID: 1, FilePath: "/work/src/a.go", Matches: []protocol.SearchMatch{
				{LineNumber: 4, LineText: "a needle here", MatchStart: 2, MatchLength: 6},
				{LineNumber: 9, LineText: "needle", MatchStart: 0, MatchLength: 6},
			}},
			{SearchID: 1, FilePath: "/work/b.txt", Matches: []protocol.SearchMatch{
				{LineNumber: 1, LineText: "needle", MatchStart: 0, MatchLength: 6},
			}},
		},
		FilesSearched: 12,
	})
	view := updated.View()

	assert.Contains(t, view, "src/a.go")
	assert.NotContains(t, view, "/work/src/a.go")
	assert.Contains(t, view, "(2)")
	assert.Contains(t, view, "b.txt")
	assert.Contains(t, updated.(Model).Status(), "3 matches in 2 files (12 files searched)")
}

func TestModel_Status(t *testing.T) {
	m := New(&fakeController{}, "/work", nil)

	m.state = session.State{Query: "x", IsSearching: true, FilesSearched: 4}
	assert.Contains(t, m.Status(), "Searching... 4 files searched")

	m.state = session.State{Query: "x", Error: "root missing"}
	assert.Contains(t, m.Status(), "root missing")

	m.state = session.State{Query: "x", FilesSearched: 8}
	assert.Contains(t, m.Status(), "No results (8 files searched)")

	m.state = session.State{}
	assert.Empty(t, m.Status())
}

func TestHighlight(t *testing.T) {
	// Matches past the truncated text are left as-is
	assert.Equal(t, "short", highlight("short", 600, 3))
	assert.True(t, strings.HasPrefix(highlight("héllo", 1, 1), "h"))
	assert.True(t, strings.HasSuffix(highlight("héllo", 1, 1), "llo"))
}
