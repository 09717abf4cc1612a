// calibscope is the command-line interface to the calibration store:
// devices, intrinsic calibrations, joint calibration imports and
// statistics, and saved hand-eye calibrations.
//
// Usage:
//
//	calibscope <command> [flags]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/calibscope/internal/analysis"
	"github.com/Mr-Dark-debug/calibscope/internal/config"
	"github.com/Mr-Dark-debug/calibscope/internal/database"
	"github.com/Mr-Dark-debug/calibscope/internal/logging"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	conf       config.Config
	logCloser  io.Closer
)

var (
	gStore    = "Calibration data:"
	gServer   = "Server:"
	cmdGroups = []string{gStore, gServer}
)

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		fmt.Fprintln(os.Stderr, "\nError: no such record")
		fmt.Fprintln(os.Stderr, "  - List what exists with 'calibscope devices list' or 'calibscope handeye list'")
	case errors.Is(err, analysis.ErrNoData):
		fmt.Fprintln(os.Stderr, "\nError: no joint calibrations for this device")
		fmt.Fprintln(os.Stderr, "  - Import some with 'calibscope joints import <file>'")
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibscope",
		Short: "calibscope manages robot camera and joint calibrations",
		Long: `calibscope manages robot camera and joint calibrations.

It stores intrinsic and hand-eye camera calibrations and joint homing
offsets per device, and reports how stable the joint calibrations are
across runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVar(&configPath, "config", "", "config file path (default ~/.calibscope/config.yaml)")
	globalFlags.String("db", "", "path to the SQLite database")
	globalFlags.StringP("log-level", "l", "", "log level (trace, debug, info, warn, error, fatal, panic)")

	for _, g := range cmdGroups {
		cmd.AddGroup(&cobra.Group{ID: g, Title: g})
	}

	cmd.AddCommand(
		NewVersionCommand(),
		NewDevicesCommand(),
		NewIntrinsicsCommand(),
		NewJointsCommand(),
		NewHandEyeCommand(),
		NewStatusCommand(),
	)

	return cmd
}

// setup loads configuration, applies flag overrides and configures the
// logger. Flags win over the environment, which wins over the file.
func setup(cmd *cobra.Command) error {
	loader, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Root().PersistentFlags()
	v := loader.Viper()
	if err := v.BindPFlag("database.path", flags.Lookup("db")); err != nil {
		return err
	}
	if err := v.BindPFlag("logging.level", flags.Lookup("log-level")); err != nil {
		return err
	}
	if err := loader.Refresh(); err != nil {
		return err
	}
	conf = loader.Config()

	logCloser, err = logging.Setup(conf.Logging, os.Stderr)
	if err != nil {
		return err
	}
	if f := loader.FileUsed(); f != "" {
		logrus.WithField("file", f).Debug("loaded config file")
	}
	return nil
}

// openStore opens the configured database, creating its directory.
func openStore() (*database.DBService, error) {
	if err := os.MkdirAll(filepath.Dir(conf.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := database.NewDBService(conf.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", conf.Database.Path, err)
	}
	return store, nil
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("calibscope %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		},
	}
}
