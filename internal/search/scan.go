package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/standardbeagle/lcs/internal/protocol"
)

// Scan finds every occurrence of query in content, line by line.
//
// Lines are split on "\r?\n". Offsets are counted in characters (code
// points) of the original line. Case folding maps each character to its
// lower-case form one-for-one, so folded and original lines have the same
// length and offsets need no translation. After a hit the scan resumes one
// character later, which reports overlapping occurrences.
//
// LineText holds at most the first MaxLineTextLength characters of the line.
// Offsets are never rebased onto the truncated text, so a match that starts
// past the cut-off is not visible in LineText.
func Scan(content, query string, caseSensitive bool) []protocol.SearchMatch {
	if query == "" {
		return nil
	}
	if !caseSensitive {
		query = foldCase(query)
	}
	queryLen := utf8.RuneCountInString(query)

	var matches []protocol.SearchMatch
	lineNumber := 0
	for len(content) > 0 || lineNumber == 0 {
		lineNumber++
		var line string
		if i := strings.IndexByte(content, '\n'); i >= 0 {
			line, content = strings.TrimSuffix(content[:i], "\r"), content[i+1:]
		} else {
			// A lone trailing \r is content, not a line ending.
			line, content = content, ""
		}

		haystack := line
		if !caseSensitive {
			haystack = foldCase(line)
		}
		matches = scanLine(matches, line, haystack, query, queryLen, lineNumber)
	}
	return matches
}

func scanLine(matches []protocol.SearchMatch, line, haystack, query string, queryLen, lineNumber int) []protocol.SearchMatch {
	var lineText string
	truncated := false

	pos, runePos := 0, 0 // byte and character offset of haystack[pos:]
	for pos <= len(haystack) {
		idx := strings.Index(haystack[pos:], query)
		if idx < 0 {
			break
		}
		runePos += utf8.RuneCountInString(haystack[pos : pos+idx])
		pos += idx

		if !truncated {
			lineText = truncateChars(line, protocol.MaxLineTextLength)
			truncated = true
		}
		matches = append(matches, protocol.SearchMatch{
			LineNumber:  lineNumber,
			LineText:    lineText,
			MatchStart:  runePos,
			MatchLength: queryLen,
		})

		// Resume one character after the start of this hit.
		_, size := utf8.DecodeRuneInString(haystack[pos:])
		if size == 0 {
			break
		}
		pos += size
		runePos++
	}
	return matches
}

// foldCase lower-cases s one character at a time.
func foldCase(s string) string {
	return strings.Map(unicode.ToLower, s)
}

func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
