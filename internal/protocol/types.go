// Package protocol defines the message contract between the search host and
// its clients. Messages travel as JSON envelopes, one per line, over a
// stream connection. Every host → client message carries the searchId of the
// request it belongs to so that stale messages can be dropped on arrival.
package protocol

import (
	"encoding/json"
	"time"
)

// Channel names a message type on the wire.
type Channel string

const (
	// ChannelStart starts a search. Client → host, payload SearchRequest.
	ChannelStart Channel = "search:start"
	// ChannelCancel cancels the connection's live search. Client → host, no payload.
	ChannelCancel Channel = "search:cancel"
	// ChannelResult carries the matches of one file. Host → client.
	ChannelResult Channel = "search:result"
	// ChannelProgress reports files searched so far. Host → client.
	ChannelProgress Channel = "search:progress"
	// ChannelComplete is the terminal success message. Host → client.
	ChannelComplete Channel = "search:complete"
	// ChannelError is the terminal failure message. Host → client.
	ChannelError Channel = "search:error"
)

// Defaults shared by both sides of the connection. All of them can be
// overridden per request.
const (
	DefaultExcludePattern = "node_modules,.git"
	DefaultMaxFileSize    = 1024 * 1024

	// ProgressInterval is the minimum wall-clock gap between two progress
	// messages of a single search.
	ProgressInterval = 200 * time.Millisecond

	// MaxLineTextLength is the number of characters of a matching line
	// reported back to the client.
	MaxLineTextLength = 500

	// ClassifierSampleSize is how much of an extensionless file is sniffed
	// when deciding whether it is text.
	ClassifierSampleSize = 512
)

// DefaultExtensions lists the file extensions searched when a request does
// not name its own.
var DefaultExtensions = []string{
	// Source
	".go", ".c", ".h", ".cc", ".cpp", ".hpp", ".cs", ".java", ".kt", ".kts",
	".scala", ".swift", ".m", ".mm", ".rs", ".zig", ".py", ".rb", ".php",
	".pl", ".pm", ".lua", ".r", ".dart", ".ex", ".exs", ".erl", ".hs", ".clj",
	".fs", ".vb", ".sql", ".proto", ".graphql",
	// Web
	".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".vue", ".svelte",
	".html", ".htm", ".css", ".scss", ".sass", ".less",
	// Markup and docs
	".md", ".markdown", ".rst", ".txt", ".adoc", ".tex", ".xml", ".svg",
	// Config
	".json", ".jsonc", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf",
	".env", ".properties", ".kdl", ".gradle", ".csv",
	// Scripts
	".sh", ".bash", ".zsh", ".fish", ".ps1", ".bat", ".cmd",
}

// SearchID correlates a request with all of its streamed responses.
// Zero means "no search".
type SearchID uint64

// SearchRequest starts a search over RootPath.
type SearchRequest struct {
	SearchID       SearchID `json:"searchId"`
	RootPath       string   `json:"rootPath"`
	Query          string   `json:"query"`
	IncludePattern string   `json:"includePattern"`
	ExcludePattern string   `json:"excludePattern"`
	CaseSensitive  bool     `json:"caseSensitive"`
	MaxFileSize    int64    `json:"maxFileSize"`
	Extensions     []string `json:"extensions"`
}

// SearchMatch is a single occurrence of the query within a line.
// MatchStart and MatchLength are character offsets into the original line,
// even when LineText has been truncated.
type SearchMatch struct {
	LineNumber  int    `json:"lineNumber"`
	LineText    string `json:"lineText"`
	MatchStart  int    `json:"matchStart"`
	MatchLength int    `json:"matchLength"`
}

// SearchFileResult is emitted once per file with at least one match.
type SearchFileResult struct {
	SearchID SearchID      `json:"searchId"`
	FilePath string        `json:"filePath"`
	Matches  []SearchMatch `json:"matches"`
}

// SearchProgress reports how many files have been scanned so far.
type SearchProgress struct {
	SearchID      SearchID `json:"searchId"`
	FilesSearched int      `json:"filesSearched"`
}

// SearchComplete is the authoritative final tally of a finished search.
type SearchComplete struct {
	SearchID      SearchID `json:"searchId"`
	TotalMatches  int      `json:"totalMatches"`
	TotalFiles    int      `json:"totalFiles"`
	FilesSearched int      `json:"filesSearched"`
}

// SearchError ends a search that failed.
type SearchError struct {
	SearchID SearchID `json:"searchId"`
	Message  string   `json:"message"`
}

// Handler receives the raw payload of a message on a subscribed channel.
type Handler func(payload json.RawMessage)
