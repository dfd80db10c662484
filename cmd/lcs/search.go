package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/lcs/internal/config"
	"github.com/standardbeagle/lcs/internal/debug"
	"github.com/standardbeagle/lcs/internal/protocol"
	"github.com/standardbeagle/lcs/pkg/pathutil"
)

var errSearchCancelled = errors.New("search cancelled")

// searchCommand runs one search and streams its results to stdout
func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("search requires a query")
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if exts := c.StringSlice("ext"); len(exts) > 0 {
		cfg.Search.Extensions = exts
	}
	if size := c.String("max-file-size"); size != "" {
		n, err := config.ParseSize(size)
		if err != nil {
			return fmt.Errorf("invalid --max-file-size %q: %w", size, err)
		}
		cfg.Search.MaxFileSize = n
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("warning: %v", err)
		}
	}()

	req := protocol.SearchRequest{
		SearchID:       1,
		RootPath:       cfg.Project.Root,
		Query:          query,
		IncludePattern: cfg.IncludePattern(),
		ExcludePattern: cfg.ExcludePattern(),
		CaseSensitive:  c.Bool("case-sensitive"),
		MaxFileSize:    cfg.Search.MaxFileSize,
		Extensions:     cfg.Search.Extensions,
	}

	var sink resultSink
	if c.Bool("json") {
		sink = &jsonSink{enc: protocol.NewEncoder(c.App.Writer), id: req.SearchID}
	} else {
		sink = newTextSink(c.App.Writer, cfg.Project.Root, req.SearchID)
	}
	return streamSearch(ctx, conn, req, sink)
}

type event struct {
	channel protocol.Channel
	payload json.RawMessage
}

// streamSearch starts req and feeds every message for it to sink until the
// search ends. Cancelling ctx sends a cancel to the host.
func streamSearch(ctx context.Context, conn *connection, req protocol.SearchRequest, sink resultSink) error {
	events := make(chan event, 64)
	quit := make(chan struct{})

	var unsubs []func()
	for _, ch := range []protocol.Channel{
		protocol.ChannelResult, protocol.ChannelProgress,
		protocol.ChannelComplete, protocol.ChannelError,
	} {
		ch := ch
		unsubs = append(unsubs, conn.Subscribe(ch, func(payload json.RawMessage) {
			select {
			case events <- event{channel: ch, payload: payload}:
			case <-quit:
			}
		}))
	}
	defer func() {
		close(quit)
		for _, unsubscribe := range unsubs {
			unsubscribe()
		}
	}()

	if err := conn.Send(protocol.ChannelStart, req); err != nil {
		return fmt.Errorf("failed to start search: %w", err)
	}

	finished := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(finished)
		for {
			select {
			case ev := <-events:
				done, err := sink.handle(ev.channel, ev.payload)
				if err != nil || done {
					return err
				}
			case <-conn.Done():
				return fmt.Errorf("search host closed the connection")
			case <-gctx.Done():
				return errSearchCancelled
			}
		}
	})
	g.Go(func() error {
		<-finished
		if ctx.Err() != nil {
			if err := conn.Send(protocol.ChannelCancel, nil); err != nil {
				debug.LogSession("failed to send cancel: %v", err)
			}
		}
		return nil
	})
	return g.Wait()
}

// resultSink renders the messages of one search. handle reports done once
// a terminal message has been rendered.
type resultSink interface {
	handle(channel protocol.Channel, payload json.RawMessage) (done bool, err error)
}

// jsonSink copies the protocol messages to the output unchanged.
type jsonSink struct {
	enc *protocol.Encoder
	id  protocol.SearchID
}

func (s *jsonSink) handle(channel protocol.Channel, payload json.RawMessage) (bool, error) {
	var head struct {
		SearchID protocol.SearchID `json:"searchId"`
		Message  string            `json:"message"`
	}
	if err := json.Unmarshal(payload, &head); err != nil || head.SearchID != s.id {
		return false, nil
	}
	if err := s.enc.Encode(protocol.Envelope{Channel: channel, Payload: payload}); err != nil {
		return true, err
	}
	switch channel {
	case protocol.ChannelComplete:
		return true, nil
	case protocol.ChannelError:
		return true, fmt.Errorf("search failed: %s", head.Message)
	}
	return false, nil
}

// textSink prints results grouped by file, as a terminal reader expects.
type textSink struct {
	w     io.Writer
	root  string
	id    protocol.SearchID
	file  *color.Color
	line  *color.Color
	match *color.Color
	dim   *color.Color
}

func newTextSink(w io.Writer, root string, id protocol.SearchID) *textSink {
	return &textSink{
		w:     w,
		root:  root,
		id:    id,
		file:  color.New(color.FgGreen, color.Bold),
		line:  color.New(color.FgYellow),
		match: color.New(color.FgRed, color.Bold),
		dim:   color.New(color.Faint),
	}
}

func (s *textSink) handle(channel protocol.Channel, payload json.RawMessage) (bool, error) {
	switch channel {
	case protocol.ChannelResult:
		var msg protocol.SearchFileResult
		if json.Unmarshal(payload, &msg) != nil || msg.SearchID != s.id {
			return false, nil
		}
		s.printFile(msg)

	case protocol.ChannelComplete:
		var msg protocol.SearchComplete
		if json.Unmarshal(payload, &msg) != nil || msg.SearchID != s.id {
			return false, nil
		}
		s.dim.Fprintf(s.w, "%d matches in %d files (%d files searched)\n",
			msg.TotalMatches, msg.TotalFiles, msg.FilesSearched)
		return true, nil

	case protocol.ChannelError:
		var msg protocol.SearchError
		if json.Unmarshal(payload, &msg) != nil || msg.SearchID != s.id {
			return false, nil
		}
		return true, fmt.Errorf("search failed: %s", msg.Message)
	}
	return false, nil
}

func (s *textSink) printFile(res protocol.SearchFileResult) {
	rel := pathutil.RelativeResults([]protocol.SearchFileResult{res}, s.root)[0]
	s.file.Fprint(s.w, rel.FilePath)
	s.dim.Fprintf(s.w, " (%d)\n", len(rel.Matches))
	for _, m := range rel.Matches {
		s.line.Fprintf(s.w, "%6d", m.LineNumber)
		fmt.Fprint(s.w, ": ")
		s.printLine(m)
		fmt.Fprintln(s.w)
	}
}

// printLine highlights the match when it lies inside the reported text.
func (s *textSink) printLine(m protocol.SearchMatch) {
	runes := []rune(m.LineText)
	if m.MatchStart < 0 || m.MatchStart >= len(runes) {
		fmt.Fprint(s.w, m.LineText)
		return
	}
	end := min(m.MatchStart+m.MatchLength, len(runes))
	fmt.Fprint(s.w, string(runes[:m.MatchStart]))
	s.match.Fprint(s.w, string(runes[m.MatchStart:end]))
	fmt.Fprint(s.w, string(runes[end:]))
}
