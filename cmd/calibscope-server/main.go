// calibscope-server serves the calibration store and remote hand-eye
// sessions over HTTP.
//
// Usage:
//
//	calibscope-server [flags]
//
// Flags:
//
//	--config      Config file (default: ~/.calibscope/config.yaml)
//	--listen      Address to listen on (default: 127.0.0.1:8420)
//	--db          Path to SQLite database file (default: ~/.calibscope/calibscope.db)
//	--log-level   Log level (default: info)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/calibscope/internal/config"
	"github.com/Mr-Dark-debug/calibscope/internal/database"
	"github.com/Mr-Dark-debug/calibscope/internal/logging"
	"github.com/Mr-Dark-debug/calibscope/internal/server"
)

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "calibscope-server",
		Short:        "Serve calibration data and hand-eye sessions over HTTP",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := config.Load(configPath)
			if err != nil {
				return err
			}
			v := loader.Viper()
			for key, flag := range map[string]string{
				"server.addr":   "listen",
				"database.path": "db",
				"logging.level": "log-level",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			if err := loader.Refresh(); err != nil {
				return err
			}
			return run(cmd.Context(), loader)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "config file path")
	f.String("listen", "", "TCP address to listen on")
	f.String("db", "", "path to the SQLite database")
	f.StringP("log-level", "l", "", "log level (trace, debug, info, warn, error, fatal, panic)")

	return cmd
}

func run(parent context.Context, loader *config.Loader) error {
	conf := loader.Config()

	closer, err := logging.Setup(conf.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Ensure the database directory exists
	dbDir := filepath.Dir(conf.Database.Path)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
	}

	store, err := database.NewDBService(conf.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	srvConf := server.DefaultConfig()
	srvConf.Addr = conf.Server.Addr
	srvConf.CaptureDelay = conf.Session.CaptureDelay
	srvConf.SolveDelay = conf.Session.SolveDelay
	srv := server.New(srvConf, store)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if loader.Watch(func(c config.Config) {
		srv.SetDelays(c.Session.CaptureDelay, c.Session.SolveDelay)
		if level, err := logrus.ParseLevel(c.Logging.Level); err == nil {
			logrus.SetLevel(level)
		} else {
			logrus.WithError(err).Warn("keeping previous log level")
		}
	}) {
		logrus.WithField("file", loader.FileUsed()).Info("watching config file")
	}

	// Print startup banner
	fmt.Println()
	fmt.Println("  CALIBSCOPE SERVER")
	fmt.Println()
	fmt.Printf("  Listen:  http://%s\n", srv.Addr())
	fmt.Printf("  DB:      %s\n", conf.Database.Path)
	fmt.Printf("  Metrics: http://%s/metrics\n", srv.Addr())
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop.")
	fmt.Println()

	<-ctx.Done()

	fmt.Println("\n  Shutting down gracefully...")
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	m := srv.Metrics()
	logrus.WithFields(logrus.Fields{
		"requests":        m.Requests,
		"errors":          m.ErrorCount,
		"handeye_saved":   m.HandEyeSaved,
		"joints_imported": m.JointsImported,
	}).Info("server stopped")
	return nil
}
