package config

import (
	"fmt"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/lcs/internal/debug"
)

// applyKDL overlays a KDL document onto cfg:
//
//	project { root "." }
//	search {
//	    extensions ".go" ".ts"
//	    include "src/**"
//	    exclude "dist" "*.min.js"
//	    max_file_size "1MB"
//	    debounce_ms 500
//	}
//	server { socket "/tmp/lcs.sock" }
//	watch { enabled true; debounce_ms 300 }
func applyKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "extensions":
					if exts := collectStringArgs(cn); len(exts) > 0 {
						cfg.Search.Extensions = exts
					}
				case "include":
					cfg.Search.Include = collectStringArgs(cn)
				case "exclude":
					cfg.Search.Exclude = DeduplicatePatterns(append(cfg.Search.Exclude, collectStringArgs(cn)...))
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if sz, err := ParseSize(s); err == nil {
							cfg.Search.MaxFileSize = sz
						} else {
							debug.LogConfig("invalid max_file_size %q: %v", s, err)
						}
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.DebounceMs = v
					}
				}
			}
		case "server":
			for _, cn := range n.Children {
				assignSimpleString(cn, "socket", func(v string) { cfg.Server.Socket = v })
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		default:
			debug.LogConfig("ignoring unknown config section %q", nodeName(n))
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs reads inline arguments (exclude "a" "b") or, failing
// that, a block of children (exclude { "a"; "b" }).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				// In block form the node name itself is the value.
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// ParseSize handles size strings like "10MB", "500KB", "1GB".
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
