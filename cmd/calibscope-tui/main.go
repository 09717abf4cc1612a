// calibscope-tui is the interactive calibration dashboard: hand-eye
// sessions and joint calibration statistics per device.
//
// Usage:
//
//	calibscope-tui [flags]
//
// Flags:
//
//	--config   Config file (default: ~/.calibscope/config.yaml)
//	--db       Path to SQLite database file (default: ~/.calibscope/calibscope.db)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/calibscope/internal/config"
	"github.com/Mr-Dark-debug/calibscope/internal/database"
	"github.com/Mr-Dark-debug/calibscope/internal/logging"
	"github.com/Mr-Dark-debug/calibscope/internal/session"
	"github.com/Mr-Dark-debug/calibscope/internal/tui"
)

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "calibscope-tui",
		Short:        "Interactive calibration dashboard",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := loader.Viper().BindPFlag("database.path", cmd.Flags().Lookup("db")); err != nil {
				return err
			}
			if err := loader.Refresh(); err != nil {
				return err
			}
			return run(loader)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file path")
	cmd.Flags().String("db", "", "path to the SQLite database")
	return cmd
}

// logConfig sends logs to a file: the UI owns the terminal.
func logConfig(c config.LoggingConfig) config.LoggingConfig {
	if c.File == "" {
		c.File = logging.TUIFile()
	}
	return c
}

func run(loader *config.Loader) error {
	conf := loader.Config()

	closer, err := logging.Setup(logConfig(conf.Logging), nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := os.MkdirAll(filepath.Dir(conf.Database.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := database.NewDBService(conf.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database at %s: %w", conf.Database.Path, err)
	}
	defer store.Close()

	source := session.NewPlaceholderPoseSource(conf.Session.CaptureDelay, nil)
	solver := session.NewPlaceholderSolver(conf.Session.SolveDelay, nil)

	loader.Watch(func(c config.Config) {
		source.SetDelay(c.Session.CaptureDelay)
		solver.SetDelay(c.Session.SolveDelay)
		logrus.WithFields(logrus.Fields{
			"capture_delay": c.Session.CaptureDelay,
			"solve_delay":   c.Session.SolveDelay,
		}).Info("session latencies updated")
	})

	model := tui.NewModel(store, tui.Options{Source: source, Solver: solver})
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
