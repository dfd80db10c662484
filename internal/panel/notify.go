package panel

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/standardbeagle/lcs/internal/session"
)

// Notifier wakes the panel when the controller state changes. Notify never
// blocks, so it is safe to call from inside Update; bursts of changes
// collapse into one wake-up and the panel reads the latest state.
type Notifier struct {
	ch        chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewNotifier creates a notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		ch:   make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Notify records that the state changed.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// OnChange adapts Notify to session.Options.OnChange.
func (n *Notifier) OnChange(session.State) {
	n.Notify()
}

// Close releases a panel waiting for changes.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
}

// wait returns a command that blocks until the next change and then
// delivers the controller's current state.
func (n *Notifier) wait(ctrl Controller) tea.Cmd {
	if n == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-n.ch:
			return StateMsg(ctrl.State())
		case <-n.done:
			return nil
		}
	}
}
