// Package session owns the client side of a search: the state a results
// panel renders, debouncing of edits, request correlation and cancellation.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/lcs/internal/debug"
	"github.com/standardbeagle/lcs/internal/protocol"
)

// DefaultDebounce is the delay between the last edit and the search it
// triggers.
const DefaultDebounce = 500 * time.Millisecond

// Transport sends named messages to the host and delivers the host's
// messages to subscribed handlers.
type Transport interface {
	Send(channel protocol.Channel, payload any) error
	Subscribe(channel protocol.Channel, handler protocol.Handler) (unsubscribe func())
}

// Settings are owned outside the session and read at every search start.
type Settings struct {
	MaxFileSize int64
	Extensions  []string
}

// SettingsSource supplies the current Settings.
type SettingsSource interface {
	SearchSettings() Settings
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func() Settings

// SearchSettings calls f.
func (f SettingsFunc) SearchSettings() Settings {
	return f()
}

// State is a snapshot of what the results panel shows.
type State struct {
	SearchOpen     bool
	Query          string
	IncludePattern string
	ExcludePattern string
	RootPath       string
	ShowFilters    bool
	IsSearching    bool
	Results        []protocol.SearchFileResult
	TotalMatches   int
	TotalFiles     int
	FilesSearched  int
	// Error holds the message of a search that ended in failure.
	Error string
}

// Options configure a Controller.
type Options struct {
	RootPath string
	Settings SettingsSource
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// OnChange is called with a fresh snapshot after every state change.
	// It runs without the controller lock held.
	OnChange func(State)
}

// Controller drives one search session.
type Controller struct {
	transport Transport
	settings  SettingsSource
	onChange  func(State)
	debounce  *debouncer

	// startMu keeps start requests on the wire in search id order.
	startMu sync.Mutex

	mu        sync.Mutex
	state     State
	currentID protocol.SearchID
	nextID    protocol.SearchID
	unsubs    []func()
	disposed  bool
	// cancelDue is set under the lock and sent once the lock is released.
	cancelDue bool
}

// NewController creates a controller and subscribes it to the host's
// messages on transport.
func NewController(transport Transport, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Settings == nil {
		opts.Settings = SettingsFunc(func() Settings { return Settings{} })
	}
	c := &Controller{
		transport: transport,
		settings:  opts.Settings,
		onChange:  opts.OnChange,
		debounce:  newDebouncer(opts.Debounce),
		state:     State{RootPath: opts.RootPath},
	}
	c.unsubs = []func(){
		transport.Subscribe(protocol.ChannelResult, c.handleResult),
		transport.Subscribe(protocol.ChannelProgress, c.handleProgress),
		transport.Subscribe(protocol.ChannelComplete, c.handleComplete),
		transport.Subscribe(protocol.ChannelError, c.handleError),
	}
	return c
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CurrentSearchID returns the id of the live search, or 0 if there is none.
func (c *Controller) CurrentSearchID() protocol.SearchID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Results = append([]protocol.SearchFileResult(nil), c.state.Results...)
	return s
}

// update applies fn under the lock and then notifies the listener. It
// reports false once the controller has been disposed.
func (c *Controller) update(fn func() bool) bool {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return false
	}
	changed := fn()
	snap := c.snapshotLocked()
	sendCancel := c.cancelDue
	c.cancelDue = false
	c.mu.Unlock()

	if sendCancel {
		c.sendCancel()
	}
	if changed && c.onChange != nil {
		c.onChange(snap)
	}
	return true
}

func (c *Controller) sendCancel() {
	if err := c.transport.Send(protocol.ChannelCancel, nil); err != nil {
		debug.LogSession("failed to send cancel: %v", err)
	}
}

// Open shows the search panel.
func (c *Controller) Open() {
	c.update(func() bool {
		c.state.SearchOpen = true
		return true
	})
}

// Close hides the search panel and cancels any running search.
func (c *Controller) Close() {
	c.debounce.stop()
	c.update(func() bool {
		c.state.SearchOpen = false
		c.cancelLocked()
		return true
	})
}

// ToggleFilters shows or hides the include and exclude inputs.
func (c *Controller) ToggleFilters() {
	c.update(func() bool {
		c.state.ShowFilters = !c.state.ShowFilters
		return true
	})
}

// SetQuery records an edit of the query. A non-empty query schedules a
// debounced search; an empty one cancels and clears right away.
func (c *Controller) SetQuery(query string) {
	if strings.TrimSpace(query) == "" {
		c.debounce.stop()
		c.update(func() bool {
			c.state.Query = query
			c.cancelLocked()
			c.resetResultsLocked()
			return true
		})
		return
	}
	applied := c.update(func() bool {
		c.state.Query = query
		return true
	})
	if applied {
		c.debounce.schedule(c.startSearch)
	}
}

// SetIncludePattern records an edit of the include list.
func (c *Controller) SetIncludePattern(pattern string) {
	c.setAndRetrigger(func() { c.state.IncludePattern = pattern })
}

// SetExcludePattern records an edit of the exclude list.
func (c *Controller) SetExcludePattern(pattern string) {
	c.setAndRetrigger(func() { c.state.ExcludePattern = pattern })
}

// SetRootPath changes the directory searched.
func (c *Controller) SetRootPath(root string) {
	c.setAndRetrigger(func() { c.state.RootPath = root })
}

// setAndRetrigger applies set and schedules a search when a query is present.
func (c *Controller) setAndRetrigger(set func()) {
	var hasQuery bool
	c.update(func() bool {
		set()
		hasQuery = strings.TrimSpace(c.state.Query) != ""
		return true
	})
	if hasQuery {
		c.debounce.schedule(c.startSearch)
	}
}

// TriggerNow starts a search immediately, skipping the debounce.
func (c *Controller) TriggerNow() {
	c.debounce.stop()
	c.startSearch()
}

// Cancel stops the running search. Results received so far are kept.
func (c *Controller) Cancel() {
	c.debounce.stop()
	c.update(func() bool {
		return c.cancelLocked()
	})
}

// Clear cancels any search and empties the query and results.
func (c *Controller) Clear() {
	c.debounce.stop()
	c.update(func() bool {
		c.cancelLocked()
		c.state.Query = ""
		c.resetResultsLocked()
		return true
	})
}

// Dispose cancels any search and drops every subscription. The controller
// ignores all calls afterwards.
func (c *Controller) Dispose() {
	c.debounce.stop()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	cancelled := c.cancelLocked()
	c.cancelDue = false
	c.disposed = true
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	if cancelled {
		c.sendCancel()
	}
	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
}

// cancelLocked forgets the live search and queues a cancel message. It
// reports whether there was a search to cancel.
func (c *Controller) cancelLocked() bool {
	if c.currentID == 0 {
		return false
	}
	debug.LogSession("cancelling search %d", c.currentID)
	c.currentID = 0
	c.state.IsSearching = false
	c.cancelDue = true
	return true
}

func (c *Controller) resetResultsLocked() {
	c.state.Results = nil
	c.state.TotalMatches = 0
	c.state.TotalFiles = 0
	c.state.FilesSearched = 0
	c.state.IsSearching = false
	c.state.Error = ""
}

// startSearch begins a new search for the current query and filters.
func (c *Controller) startSearch() {
	settings := c.settings.SearchSettings()

	c.startMu.Lock()
	defer c.startMu.Unlock()

	var req protocol.SearchRequest
	started := false
	c.update(func() bool {
		if strings.TrimSpace(c.state.Query) == "" {
			return false
		}
		c.nextID++
		c.currentID = c.nextID
		c.resetResultsLocked()
		c.state.IsSearching = true

		req = protocol.SearchRequest{
			SearchID:       c.currentID,
			RootPath:       c.state.RootPath,
			Query:          c.state.Query,
			IncludePattern: c.state.IncludePattern,
			ExcludePattern: c.state.ExcludePattern,
			CaseSensitive:  false,
			MaxFileSize:    settings.MaxFileSize,
			Extensions:     settings.Extensions,
		}
		started = true
		return true
	})
	if !started {
		return
	}

	debug.LogSession("starting search %d for %q in %s", req.SearchID, req.Query, req.RootPath)
	if err := c.transport.Send(protocol.ChannelStart, req); err != nil {
		debug.LogSession("failed to start search %d: %v", req.SearchID, err)
		c.update(func() bool {
			if c.currentID != req.SearchID {
				return false
			}
			c.currentID = 0
			c.state.IsSearching = false
			c.state.Error = fmt.Sprintf("search could not be started: %v", err)
			return true
		})
	}
}

func decode(payload json.RawMessage, v any) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		debug.LogSession("dropping undecodable message: %v", err)
		return false
	}
	return true
}

// live reports whether id belongs to the current search. Every handler
// drops messages for any other id unread.
func (c *Controller) live(id protocol.SearchID) bool {
	return id != 0 && id == c.currentID
}

func (c *Controller) handleResult(payload json.RawMessage) {
	var msg protocol.SearchFileResult
	if !decode(payload, &msg) {
		return
	}
	c.update(func() bool {
		if !c.live(msg.SearchID) {
			return false
		}
		c.state.Results = append(c.state.Results, msg)
		c.state.TotalMatches += len(msg.Matches)
		c.state.TotalFiles++
		return true
	})
}

func (c *Controller) handleProgress(payload json.RawMessage) {
	var msg protocol.SearchProgress
	if !decode(payload, &msg) {
		return
	}
	c.update(func() bool {
		if !c.live(msg.SearchID) {
			return false
		}
		c.state.FilesSearched = msg.FilesSearched
		return true
	})
}

func (c *Controller) handleComplete(payload json.RawMessage) {
	var msg protocol.SearchComplete
	if !decode(payload, &msg) {
		return
	}
	c.update(func() bool {
		if !c.live(msg.SearchID) {
			return false
		}
		c.state.IsSearching = false
		c.state.TotalMatches = msg.TotalMatches
		c.state.TotalFiles = msg.TotalFiles
		c.state.FilesSearched = msg.FilesSearched
		return true
	})
}

func (c *Controller) handleError(payload json.RawMessage) {
	var msg protocol.SearchError
	if !decode(payload, &msg) {
		return
	}
	c.update(func() bool {
		if !c.live(msg.SearchID) {
			return false
		}
		debug.LogSession("search %d failed: %s", msg.SearchID, msg.Message)
		c.state.IsSearching = false
		c.state.Error = msg.Message
		return true
	})
}
