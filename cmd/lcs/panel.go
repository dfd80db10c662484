package main

import (
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lcs/internal/config"
	"github.com/standardbeagle/lcs/internal/debug"
	"github.com/standardbeagle/lcs/internal/panel"
	"github.com/standardbeagle/lcs/internal/session"
	"github.com/standardbeagle/lcs/internal/watch"
)

// panelCommand runs the interactive search panel
func panelCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	conn, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("warning: %v", err)
		}
	}()

	// The panel owns the terminal until it exits.
	debug.SetQuietMode(true)
	defer debug.SetQuietMode(false)

	changes := panel.NewNotifier()
	defer changes.Close()
	ctrl := session.NewController(conn, session.Options{
		RootPath: cfg.Project.Root,
		Settings: settingsFor(cfg),
		Debounce: time.Duration(cfg.Search.DebounceMs) * time.Millisecond,
		OnChange: changes.OnChange,
	})
	defer ctrl.Dispose()

	ctrl.SetIncludePattern(cfg.IncludePattern())
	ctrl.SetExcludePattern(cfg.ExcludePattern())

	if c.Bool("watch") || cfg.Watch.Enabled {
		w, err := watch.New(watch.Options{
			Root:     cfg.Project.Root,
			Exclude:  cfg.ExcludePattern(),
			Debounce: time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
			OnChange: func() {
				if ctrl.State().Query != "" {
					ctrl.TriggerNow()
				}
			},
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	p := tea.NewProgram(panel.New(ctrl, cfg.Project.Root, changes), tea.WithAltScreen(), tea.WithContext(c.Context))
	_, err = p.Run()
	return err
}

// settingsFor exposes the configured search settings to a session controller.
func settingsFor(cfg *config.Config) session.SettingsSource {
	return session.SettingsFunc(func() session.Settings {
		return session.Settings{
			MaxFileSize: cfg.Search.MaxFileSize,
			Extensions:  cfg.Search.Extensions,
		}
	})
}
