// Package pathutil converts between the absolute paths the search host
// reports and the root-relative paths shown to users.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/lcs/internal/protocol"
)

// ToRelative converts an absolute path to one relative to rootDir, using
// forward slashes. Paths that are already relative, outside the root or
// otherwise not convertible are returned unchanged.
//
// Examples:
//   - ToRelative("/home/user/project/src/main.go", "/home/user/project") → "src/main.go"
//   - ToRelative("/other/location/file.go", "/home/user/project") → "/other/location/file.go"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" || !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}
	return filepath.ToSlash(relPath)
}

// RelativeResults returns a copy of results with every FilePath made
// relative to rootDir. The input is not modified.
func RelativeResults(results []protocol.SearchFileResult, rootDir string) []protocol.SearchFileResult {
	if len(results) == 0 {
		return results
	}
	out := make([]protocol.SearchFileResult, len(results))
	for i, r := range results {
		out[i] = r
		out[i].FilePath = ToRelative(r.FilePath, rootDir)
	}
	return out
}
