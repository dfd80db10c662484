// Build output detection from language-specific configuration files.
// Parses package.json, tsconfig.json, vite configs, Cargo.toml and
// pyproject.toml to find directories that hold generated files.
package config

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/lcs/internal/pattern"
)

// BuildArtifactDetector finds language-specific build output directories
type BuildArtifactDetector struct {
	projectRoot string
}

// NewBuildArtifactDetector creates a new build artifact detector
func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories returns the names of declared output directories
// (e.g. "dist", "target"), usable directly as exclude entries.
func (bad *BuildArtifactDetector) DetectOutputDirectories() []string {
	var dirs []string
	dirs = append(dirs, bad.detectJavaScriptOutputs()...)
	dirs = append(dirs, bad.detectRustOutputs()...)
	dirs = append(dirs, bad.detectPythonOutputs()...)

	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if name := outputDirName(d); name != "" {
			out = append(out, name)
		}
	}
	return DeduplicatePatterns(out)
}

// outputDirName reduces a configured output path like "./build/web/" to a
// directory name the exclude matcher can prune by. Paths that escape the
// project or carry wildcards are dropped.
func outputDirName(dir string) string {
	dir = strings.Trim(strings.TrimSpace(filepath.ToSlash(dir)), "\"'")
	dir = path.Clean(dir)
	if dir == "." || dir == "/" || strings.HasPrefix(dir, "..") || path.IsAbs(dir) {
		return ""
	}
	name := strings.SplitN(dir, "/", 2)[0]
	if !pattern.IsSimpleName(name) {
		return ""
	}
	return name
}

func readJSON(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc map[string]any
	if json.Unmarshal(data, &doc) != nil {
		return nil
	}
	return doc
}

func readTOML(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc map[string]any
	if toml.Unmarshal(data, &doc) != nil {
		return nil
	}
	return doc
}

// lookup walks nested tables by key.
func lookup(doc map[string]any, keys ...string) (string, bool) {
	cur := any(doc)
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur = m[k]
	}
	s, ok := cur.(string)
	return s, ok
}

// detectJavaScriptOutputs finds JS/TS build outputs
func (bad *BuildArtifactDetector) detectJavaScriptOutputs() []string {
	var dirs []string

	if pkg := readJSON(filepath.Join(bad.projectRoot, "package.json")); pkg != nil {
		if scripts, ok := pkg["scripts"].(map[string]any); ok {
			for _, script := range scripts {
				s, ok := script.(string)
				if !ok {
					continue
				}
				parts := strings.Fields(s)
				for i, part := range parts {
					if (part == "--outDir" || part == "-outDir" || part == "--out-dir") && i+1 < len(parts) {
						dirs = append(dirs, parts[i+1])
					}
				}
			}
		}
		if outDir, ok := lookup(pkg, "build", "outDir"); ok {
			dirs = append(dirs, outDir)
		}
	}

	if tsconfig := readJSON(filepath.Join(bad.projectRoot, "tsconfig.json")); tsconfig != nil {
		if outDir, ok := lookup(tsconfig, "compilerOptions", "outDir"); ok {
			dirs = append(dirs, outDir)
		}
	}

	// vite.config.*: look for outDir: 'dist' without evaluating the file.
	for _, name := range []string{"vite.config.js", "vite.config.ts"} {
		data, err := os.ReadFile(filepath.Join(bad.projectRoot, name))
		if err != nil {
			continue
		}
		content := string(data)
		idx := strings.Index(content, "outDir")
		if idx < 0 {
			continue
		}
		rest := content[idx+len("outDir"):]
		colon := strings.Index(rest, ":")
		if colon < 0 {
			continue
		}
		rest = strings.TrimSpace(rest[colon+1:])
		if rest == "" || (rest[0] != '\'' && rest[0] != '"') {
			continue
		}
		if end := strings.IndexByte(rest[1:], rest[0]); end > 0 {
			dirs = append(dirs, rest[1:end+1])
		}
	}
	return dirs
}

// detectRustOutputs reads a custom target directory from Cargo.toml.
func (bad *BuildArtifactDetector) detectRustOutputs() []string {
	cargo := readTOML(filepath.Join(bad.projectRoot, "Cargo.toml"))
	if cargo == nil {
		return nil
	}
	var dirs []string
	if dir, ok := lookup(cargo, "build", "target-dir"); ok {
		dirs = append(dirs, dir)
	}
	if dir, ok := lookup(cargo, "profile", "release", "target-dir"); ok {
		dirs = append(dirs, dir)
	}
	return dirs
}

// detectPythonOutputs reads build directories from pyproject.toml.
func (bad *BuildArtifactDetector) detectPythonOutputs() []string {
	pyproject := readTOML(filepath.Join(bad.projectRoot, "pyproject.toml"))
	if pyproject == nil {
		return nil
	}
	var dirs []string
	if dir, ok := lookup(pyproject, "tool", "poetry", "build", "target-dir"); ok {
		dirs = append(dirs, dir)
	}
	if dir, ok := lookup(pyproject, "tool", "hatch", "build", "directory"); ok {
		dirs = append(dirs, dir)
	}
	return dirs
}

// DeduplicatePatterns removes duplicate patterns, keeping the first
// occurrence of each.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, pattern := range patterns {
		if !seen[pattern] {
			seen[pattern] = true
			result = append(result, pattern)
		}
	}
	return result
}
