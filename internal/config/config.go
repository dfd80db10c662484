package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/lcs/internal/debug"
	"github.com/standardbeagle/lcs/internal/protocol"
)

// File names looked up in the project root and the home directory. KDL wins
// when both exist in the same directory.
const (
	KDLFileName  = ".lcs.kdl"
	TOMLFileName = ".lcs.toml"
)

const (
	DefaultSearchDebounceMs = 500
	DefaultWatchDebounceMs  = 300
)

type Config struct {
	Project Project
	Search  Search
	Server  Server
	Watch   Watch
}

type Project struct {
	Root string
}

type Search struct {
	Extensions  []string
	Include     []string
	Exclude     []string // added to the built-in node_modules,.git
	MaxFileSize int64
	DebounceMs  int
}

type Server struct {
	Socket string // empty derives a per-root socket path
}

type Watch struct {
	Enabled    bool
	DebounceMs int
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	return &Config{
		Project: Project{Root: root},
		Search: Search{
			Extensions:  append([]string(nil), protocol.DefaultExtensions...),
			MaxFileSize: protocol.DefaultMaxFileSize,
			DebounceMs:  DefaultSearchDebounceMs,
		},
		Watch: Watch{DebounceMs: DefaultWatchDebounceMs},
	}
}

// IncludePattern returns the include list in request form.
func (c *Config) IncludePattern() string {
	return strings.Join(c.Search.Include, ",")
}

// ExcludePattern returns the exclude list in request form.
func (c *Config) ExcludePattern() string {
	return strings.Join(c.Search.Exclude, ",")
}

// Load reads configuration for the current directory.
func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot builds the configuration in layers: built-in defaults, then
// the global file in the home directory, then the project file in rootDir
// (or the explicit file at path). Later layers override scalars; exclude
// lists accumulate.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}
	absRoot, err := filepath.Abs(searchDir)
	if err != nil {
		absRoot = searchDir
	}

	cfg := Default(absRoot)

	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != absRoot {
		if _, err := loadDir(cfg, homeDir); err != nil {
			debug.Warn("ignoring global config in %s: %v", homeDir, err)
		}
		// The global file must not move the project.
		cfg.Project.Root = absRoot
	}

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := loadDir(cfg, absRoot); err != nil {
		return nil, err
	}

	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// loadDir applies the config file found in dir, if any.
func loadDir(cfg *Config, dir string) (bool, error) {
	for _, name := range []string{KDLFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return true, loadFile(cfg, path)
	}
	return false, nil
}

func loadFile(cfg *Config, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	prevRoot := cfg.Project.Root
	cfg.Project.Root = ""

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = applyTOML(cfg, content)
	default:
		err = applyKDL(cfg, string(content))
	}
	if err != nil {
		cfg.Project.Root = prevRoot
		return err
	}

	// A relative root is resolved against the directory holding the file.
	switch {
	case cfg.Project.Root == "":
		cfg.Project.Root = prevRoot
	case !filepath.IsAbs(cfg.Project.Root):
		cfg.Project.Root = filepath.Clean(filepath.Join(filepath.Dir(path), cfg.Project.Root))
	}
	debug.LogConfig("loaded %s", path)
	return nil
}

// EnrichExclusionsWithBuildArtifacts adds build output directories declared
// by language tooling in the project root to the exclude list.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}
	detected := NewBuildArtifactDetector(c.Project.Root).DetectOutputDirectories()
	if len(detected) > 0 {
		debug.LogConfig("excluding detected build output: %s", strings.Join(detected, ","))
		c.Search.Exclude = DeduplicatePatterns(append(c.Search.Exclude, detected...))
	}
}
