// Package pattern compiles comma-separated include and exclude lists into
// path predicates.
//
// Include patterns containing "/" or "**" are matched against the
// root-relative path, all others against the base name. Exclude patterns
// that are plain names (no separator, no wildcard) prune whole directories;
// the rest are globs over the root-relative path.
package pattern

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/lcs/internal/debug"
)

// Split turns a comma-separated list into trimmed, non-empty patterns.
func Split(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Merge joins the default list ahead of the user list so user entries only
// ever add to the defaults.
func Merge(defaults, user string) string {
	defaults = strings.TrimSpace(defaults)
	user = strings.TrimSpace(user)
	switch {
	case defaults == "":
		return user
	case user == "":
		return defaults
	default:
		return defaults + "," + user
	}
}

// IsSimpleName reports whether p has no path separator and no wildcard.
func IsSimpleName(p string) bool {
	return !strings.ContainsAny(p, `/\*?[{`)
}

func isPathPattern(p string) bool {
	return strings.Contains(p, "/") || strings.Contains(p, "**")
}

func validGlobs(patterns []string) []string {
	out := patterns[:0]
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			debug.LogSearch("ignoring invalid glob pattern %q", p)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Include is the include predicate. The zero value matches everything.
type Include struct {
	pathGlobs []string
	nameGlobs []string
}

// NewInclude compiles an include list.
func NewInclude(list string) *Include {
	inc := &Include{}
	for _, p := range validGlobs(Split(list)) {
		if isPathPattern(p) {
			inc.pathGlobs = append(inc.pathGlobs, p)
		} else {
			inc.nameGlobs = append(inc.nameGlobs, p)
		}
	}
	return inc
}

// Empty reports whether no include patterns were supplied.
func (i *Include) Empty() bool {
	return len(i.pathGlobs) == 0 && len(i.nameGlobs) == 0
}

// Match reports whether relPath (forward slashes) satisfies any pattern.
func (i *Include) Match(relPath string) bool {
	if i.Empty() {
		return true
	}
	for _, p := range i.pathGlobs {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
	}
	base := path.Base(relPath)
	for _, p := range i.nameGlobs {
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Exclude is the exclude predicate pair.
type Exclude struct {
	dirNames map[string]struct{}
	segments []string
	globs    []string
}

// NewExclude compiles an exclude list.
func NewExclude(list string) *Exclude {
	ex := &Exclude{dirNames: make(map[string]struct{})}
	var globs []string
	for _, p := range Split(list) {
		if IsSimpleName(p) {
			if _, dup := ex.dirNames[p]; !dup {
				ex.dirNames[p] = struct{}{}
				ex.segments = append(ex.segments, p+"/", p+`\`)
			}
			continue
		}
		globs = append(globs, p)
	}
	ex.globs = validGlobs(globs)
	return ex
}

// MatchDir reports whether a directory with this base name should be pruned.
func (e *Exclude) MatchDir(name string) bool {
	_, ok := e.dirNames[name]
	return ok
}

// MatchFile reports whether the file at relPath should be skipped.
func (e *Exclude) MatchFile(relPath string) bool {
	for _, seg := range e.segments {
		if strings.Contains(relPath, seg) {
			return true
		}
	}
	for _, p := range e.globs {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
	}
	return false
}

// DirNames returns the simple directory names used for pruning.
func (e *Exclude) DirNames() []string {
	names := make([]string, 0, len(e.dirNames))
	for n := range e.dirNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
