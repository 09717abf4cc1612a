// Package config loads calibscope settings with viper: built-in
// defaults, then ~/.calibscope/config.yaml (or an explicit file), then
// CALIBSCOPE_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// CALIBSCOPE_DATABASE_PATH.
const EnvPrefix = "CALIBSCOPE"

// Config is the top-level configuration structure.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Session  SessionConfig  `mapstructure:"session"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds settings for the logger. An empty File logs to
// stderr only.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SessionConfig holds the latencies of the placeholder capture and solve.
type SessionConfig struct {
	CaptureDelay time.Duration `mapstructure:"capture_delay"`
	SolveDelay   time.Duration `mapstructure:"solve_delay"`
}

// Dir returns the calibscope state directory, ~/.calibscope.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".calibscope"
	}
	return filepath.Join(home, ".calibscope")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(Dir(), "calibscope.db"))

	v.SetDefault("server.addr", "127.0.0.1:8420")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 10) // MB
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7) // days
	v.SetDefault("logging.compress", true)

	v.SetDefault("session.capture_delay", 500*time.Millisecond)
	v.SetDefault("session.solve_delay", 2*time.Second)
}

// Loader owns a viper instance and the last decoded Config.
type Loader struct {
	v *viper.Viper

	mu   sync.RWMutex
	conf Config
}

// Load reads the configuration. With an empty file the default location
// is searched and a missing file is not an error; an explicit file must
// exist.
func Load(file string) (*Loader, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, pkgerrors.Wrapf(err, "failed to read config file")
		}
	}

	l := &Loader{v: v}
	if err := l.decode(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) decode() error {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return pkgerrors.Wrap(err, "unable to decode config")
	}
	l.mu.Lock()
	l.conf = c
	l.mu.Unlock()
	return nil
}

// Config returns the current configuration.
func (l *Loader) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conf
}

// Viper exposes the underlying instance so command-line flags can be
// bound over the file and environment values.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Refresh re-decodes the configuration, picking up bound flags.
func (l *Loader) Refresh() error {
	return l.decode()
}

// FileUsed returns the config file that was read, if any.
func (l *Loader) FileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads the configuration whenever the config file changes and
// passes the new value to onChange. It reports false when no file was
// read and there is nothing to watch.
func (l *Loader) Watch(onChange func(Config)) bool {
	if l.FileUsed() == "" {
		return false
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		logrus.WithField("file", e.Name).Info("configuration file changed, reloading")
		if err := l.decode(); err != nil {
			logrus.WithError(err).Error("reloading configuration failed")
			return
		}
		if onChange != nil {
			onChange(l.Config())
		}
	})
	l.v.WatchConfig()
	return true
}
