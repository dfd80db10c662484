// Package search walks a directory tree for one request at a time, filters
// the files it finds, scans their content and streams the outcome back to
// the requesting connection.
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/standardbeagle/lcs/internal/debug"
	lcserrors "github.com/standardbeagle/lcs/internal/errors"
	"github.com/standardbeagle/lcs/internal/pattern"
	"github.com/standardbeagle/lcs/internal/protocol"
)

// Sender delivers a message to the connection that asked for the search.
type Sender interface {
	Send(channel protocol.Channel, payload any) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(channel protocol.Channel, payload any) error

// Send calls f.
func (f SenderFunc) Send(channel protocol.Channel, payload any) error {
	return f(channel, payload)
}

// Options tune an Executor.
type Options struct {
	// DefaultExclude is always merged ahead of the request's exclude list.
	// Empty means protocol.DefaultExcludePattern.
	DefaultExclude string

	// ProgressInterval is the minimum gap between progress messages.
	// Zero means protocol.ProgressInterval.
	ProgressInterval time.Duration
}

// Executor runs searches. A single Executor serves every connection; each
// Run call is one cooperative unit of work.
type Executor struct {
	registry *Registry
	opts     Options
}

// NewExecutor creates an executor bound to registry.
func NewExecutor(registry *Registry, opts Options) *Executor {
	if opts.DefaultExclude == "" {
		opts.DefaultExclude = protocol.DefaultExcludePattern
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = protocol.ProgressInterval
	}
	return &Executor{registry: registry, opts: opts}
}

// Registry returns the registry the executor checks for cancellation.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// run holds the state of one search.
type run struct {
	ctx    context.Context
	conn   ConnID
	req    protocol.SearchRequest
	out    Sender
	reg    *Registry
	root   string
	inc    *pattern.Include
	exc    *pattern.Exclude
	exts   map[string]struct{}
	maxSz  int64
	ticker *rate.Limiter

	filesSearched int
	totalMatches  int
	totalFiles    int
}

// Run executes req for conn and streams results through out. The caller
// registers the search first (Registry.Begin) and passes the returned
// context. Run returns once the search completes, fails or notices it has
// been cancelled or superseded.
func (e *Executor) Run(ctx context.Context, conn ConnID, req protocol.SearchRequest, out Sender) {
	r := &run{ctx: ctx, conn: conn, req: req, out: out, reg: e.registry}
	defer e.registry.finish(conn, req.SearchID)

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			msg := lcserrors.DefaultSearchFailure
			switch v := p.(type) {
			case error:
				msg = v.Error()
			case string:
				msg = v
			}
			debug.LogSearch("search %d panicked: %v", req.SearchID, p)
			r.fail(lcserrors.NewSearchError(uint64(req.SearchID), "walk", errors.New(msg)))
		}
	}()

	if err := r.setup(e.opts); err != nil {
		debug.LogSearch("%s", err.Detail())
		r.fail(err)
		return
	}

	debug.LogSearch("search %d started: query=%q root=%s", req.SearchID, req.Query, r.root)
	if !r.walk() {
		debug.LogSearch("search %d cancelled after %d files", req.SearchID, r.filesSearched)
		return
	}

	r.send(protocol.ChannelComplete, protocol.SearchComplete{
		SearchID:      req.SearchID,
		TotalMatches:  r.totalMatches,
		TotalFiles:    r.totalFiles,
		FilesSearched: r.filesSearched,
	})
	debug.LogSearch("search %d complete: %d matches in %d files (%d searched) in %v",
		req.SearchID, r.totalMatches, r.totalFiles, r.filesSearched, time.Since(start))
}

func (r *run) setup(opts Options) *lcserrors.SearchError {
	id := uint64(r.req.SearchID)
	if r.req.SearchID == 0 {
		return lcserrors.NewSearchError(id, "setup", errors.New("invalid search id"))
	}
	if r.req.Query == "" {
		return lcserrors.NewSearchError(id, "setup", errors.New("query must not be empty"))
	}
	if r.req.RootPath == "" {
		return lcserrors.NewSearchError(id, "setup", errors.New("root path must not be empty"))
	}

	root, err := filepath.Abs(r.req.RootPath)
	if err != nil {
		return lcserrors.NewSearchError(id, "setup", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return lcserrors.NewSearchError(id, "setup", lcserrors.NewFileError("stat", root, err))
	}
	if !info.IsDir() {
		return lcserrors.NewSearchError(id, "setup", fmt.Errorf("%s is not a directory", root))
	}
	r.root = root

	r.inc = pattern.NewInclude(r.req.IncludePattern)
	r.exc = pattern.NewExclude(pattern.Merge(opts.DefaultExclude, r.req.ExcludePattern))
	r.exts = extensionSet(r.req.Extensions)

	r.maxSz = r.req.MaxFileSize
	if r.maxSz <= 0 {
		r.maxSz = protocol.DefaultMaxFileSize
	}

	// Consume the initial token so the first progress message waits a full interval.
	r.ticker = rate.NewLimiter(rate.Every(opts.ProgressInterval), 1)
	r.ticker.Allow()
	return nil
}

// extensionSet normalises extensions to lower case with a leading dot.
func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = protocol.DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// cancelled is the cooperative cancellation checkpoint.
func (r *run) cancelled() bool {
	return r.ctx.Err() != nil || !r.reg.IsLive(r.conn, r.req.SearchID)
}

// send checks for cancellation and then delivers the message. It reports
// false when the search is no longer live. Delivery failures are ignored:
// the search carries on even if nobody is listening.
func (r *run) send(channel protocol.Channel, payload any) bool {
	if r.cancelled() {
		return false
	}
	if err := r.out.Send(channel, payload); err != nil {
		debug.LogSearch("search %d: dropping %s message: %v", r.req.SearchID, channel, err)
	}
	return true
}

func (r *run) fail(err *lcserrors.SearchError) {
	r.send(protocol.ChannelError, protocol.SearchError{
		SearchID: r.req.SearchID,
		Message:  err.Error(),
	})
}

// walk traverses the tree with an explicit stack. It returns false when the
// search was cancelled or superseded.
func (r *run) walk() bool {
	stack := []string{r.root}
	for len(stack) > 0 {
		if r.cancelled() {
			return false
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			debug.LogSearch("%v", lcserrors.NewFileError("readdir", dir, err))
			continue
		}

		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			switch {
			case entry.IsDir():
				if !r.exc.MatchDir(entry.Name()) {
					stack = append(stack, full)
				}
			case entry.Type().IsRegular():
				if !r.visitFile(full) {
					return false
				}
			}
		}
	}
	return true
}

// visitFile filters, scans and reports one file. It returns false when the
// search was cancelled at one of its send checkpoints.
func (r *run) visitFile(full string) bool {
	rel, err := filepath.Rel(r.root, full)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)

	if r.exc.MatchFile(rel) || !r.eligible(full, rel) {
		return true
	}

	info, err := os.Stat(full)
	if err != nil {
		debug.LogSearch("%v", lcserrors.NewFileError("stat", full, err))
		return true
	}
	if info.Size() == 0 || info.Size() > r.maxSz {
		return true
	}

	content, err := os.ReadFile(full)
	if err != nil {
		debug.LogSearch("%v", lcserrors.NewFileError("read", full, err))
		return true
	}

	matches := Scan(string(content), r.req.Query, r.req.CaseSensitive)
	r.filesSearched++

	if len(matches) > 0 {
		r.totalMatches += len(matches)
		r.totalFiles++
		ok := r.send(protocol.ChannelResult, protocol.SearchFileResult{
			SearchID: r.req.SearchID,
			FilePath: full,
			Matches:  matches,
		})
		if !ok {
			return false
		}
	}

	if r.ticker.Allow() {
		ok := r.send(protocol.ChannelProgress, protocol.SearchProgress{
			SearchID:      r.req.SearchID,
			FilesSearched: r.filesSearched,
		})
		if !ok {
			return false
		}
	}
	return true
}

// eligible applies the include patterns, or the extension policy when no
// include patterns were given. Dotfiles such as .gitignore have no extension
// and go to the content classifier.
func (r *run) eligible(full, rel string) bool {
	if !r.inc.Empty() {
		return r.inc.Match(rel)
	}
	base := filepath.Base(full)
	if strings.LastIndexByte(base, '.') <= 0 {
		return IsTextFile(full)
	}
	ext := strings.ToLower(filepath.Ext(base))
	_, known := r.exts[ext]
	return known
}
