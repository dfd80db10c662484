package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// tomlFile mirrors the KDL layout:
//
//	[project]
//	root = "."
//
//	[search]
//	extensions = [".go", ".ts"]
//	exclude = ["dist"]
//	max_file_size = "1MB"   # or a byte count
//	debounce_ms = 500
//
//	[server]
//	socket = "/tmp/lcs.sock"
//
//	[watch]
//	enabled = true
type tomlFile struct {
	Project struct {
		Root *string `toml:"root"`
	} `toml:"project"`
	Search struct {
		Extensions  []string `toml:"extensions"`
		Include     []string `toml:"include"`
		Exclude     []string `toml:"exclude"`
		MaxFileSize any      `toml:"max_file_size"`
		DebounceMs  *int     `toml:"debounce_ms"`
	} `toml:"search"`
	Server struct {
		Socket *string `toml:"socket"`
	} `toml:"server"`
	Watch struct {
		Enabled    *bool `toml:"enabled"`
		DebounceMs *int  `toml:"debounce_ms"`
	} `toml:"watch"`
}

// applyTOML overlays a TOML document onto cfg. Only keys present in the
// document change cfg.
func applyTOML(cfg *Config, content []byte) error {
	var f tomlFile
	if err := toml.Unmarshal(content, &f); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	if f.Project.Root != nil {
		cfg.Project.Root = *f.Project.Root
	}

	if len(f.Search.Extensions) > 0 {
		cfg.Search.Extensions = f.Search.Extensions
	}
	if f.Search.Include != nil {
		cfg.Search.Include = f.Search.Include
	}
	cfg.Search.Exclude = DeduplicatePatterns(append(cfg.Search.Exclude, f.Search.Exclude...))
	switch v := f.Search.MaxFileSize.(type) {
	case int64:
		cfg.Search.MaxFileSize = v
	case string:
		sz, err := ParseSize(v)
		if err != nil {
			return fmt.Errorf("invalid max_file_size %q: %w", v, err)
		}
		cfg.Search.MaxFileSize = sz
	}
	if f.Search.DebounceMs != nil {
		cfg.Search.DebounceMs = *f.Search.DebounceMs
	}

	if f.Server.Socket != nil {
		cfg.Server.Socket = *f.Server.Socket
	}
	if f.Watch.Enabled != nil {
		cfg.Watch.Enabled = *f.Watch.Enabled
	}
	if f.Watch.DebounceMs != nil {
		cfg.Watch.DebounceMs = *f.Watch.DebounceMs
	}
	return nil
}
