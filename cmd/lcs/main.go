package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lcs/internal/config"
	"github.com/standardbeagle/lcs/internal/debug"
	"github.com/standardbeagle/lcs/internal/host"
	"github.com/standardbeagle/lcs/internal/pattern"
	"github.com/standardbeagle/lcs/internal/protocol"
	"github.com/standardbeagle/lcs/internal/version"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	rootFlag := c.String("root")

	cfg, err := config.LoadWithRoot(configPath, rootFlag)
	if err != nil {
		if configPath == "" {
			configPath = rootFlag
		}
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	// Apply CLI flag overrides
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Search.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Search.Exclude = config.DeduplicatePatterns(append(cfg.Search.Exclude, excludeFlags...))
	}
	if rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if socket := c.String("socket"); socket != "" {
		cfg.Server.Socket = socket
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// socketPath returns the configured socket or the one derived from the root.
func socketPath(cfg *config.Config) string {
	if cfg.Server.Socket != "" {
		return cfg.Server.Socket
	}
	return host.SocketPathForRoot(cfg.Project.Root)
}

// hostOptions builds host options whose default exclusions carry the
// configured and detected exclusions of the project.
func hostOptions(cfg *config.Config, socket string) host.Options {
	return host.Options{
		SocketPath:     socket,
		DefaultExclude: pattern.Merge(protocol.DefaultExcludePattern, cfg.ExcludePattern()),
	}
}

func newApp() *cli.App {
	var cleanupFuncs []func()

	return &cli.App{
		Name:                   "lcs",
		Usage:                  "Streaming content search over a project tree",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: .lcs.kdl or .lcs.toml in the root)",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory to search (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Only search files matching glob patterns (e.g., --include '*.go' --include 'src/**/*.ts')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip directories or files (e.g., --exclude dist --exclude '*.min.js')",
			},
			&cli.StringFlag{
				Name:  "socket",
				Usage: "Host socket path (default: derived from the project root)",
			},
			&cli.BoolFlag{
				Name:   "debug-log",
				Usage:  "Write debug output to a log file in the temp directory",
				Hidden: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the search host in the foreground",
				Action: serveCommand,
			},
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search file contents under the project root",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output protocol messages as newline-delimited JSON",
					},
					&cli.BoolFlag{
						Name:  "case-sensitive",
						Usage: "Match case exactly",
					},
					&cli.StringFlag{
						Name:  "max-file-size",
						Usage: "Skip files larger than this (e.g., 512KB, 2MB)",
					},
					&cli.StringSliceFlag{
						Name:  "ext",
						Usage: "Extensions to search (e.g., --ext go --ext .md)",
					},
				},
				Action: searchCommand,
			},
			{
				Name:  "panel",
				Usage: "Interactive search panel",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Re-run the search when files change",
					},
				},
				Action: panelCommand,
			},
			{
				Name:   "status",
				Usage:  "Report whether a host is serving the project root",
				Action: statusCommand,
			},
			{
				Name:  "version",
				Usage: "Print version and build id",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.FullInfo())
					return nil
				},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug-log") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					log.Printf("warning: could not open debug log: %v", err)
					return nil
				}
				fmt.Fprintf(c.App.ErrWriter, "Debug log: %s\n", path)
				cleanupFuncs = append(cleanupFuncs, func() { _ = debug.CloseDebugLog() })
			}
			return nil
		},
		After: func(c *cli.Context) error {
			for _, cleanup := range cleanupFuncs {
				cleanup()
			}
			return nil
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
