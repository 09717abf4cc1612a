// Package logging configures the global logrus logger: level, a text
// formatter with full timestamps on a terminal, and optional rotating
// file output.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Mr-Dark-debug/calibscope/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup applies c to the standard logger. Entries go to console, to the
// rotating file named by c.File, or to both. A nil console with no file
// discards output. The returned closer flushes and closes the file.
func Setup(c config.LoggingConfig, console io.Writer) (io.Closer, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse log level")
	}
	logrus.SetLevel(level)

	logrus.SetFormatter(&logrus.TextFormatter{})
	if f, ok := console.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	var closer io.Closer = nopCloser{}
	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to create log directory")
		}
		lj := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSize,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAge,
			Compress:   c.Compress,
		}
		writers = append(writers, lj)
		closer = lj
	}

	switch len(writers) {
	case 0:
		logrus.SetOutput(io.Discard)
	case 1:
		logrus.SetOutput(writers[0])
	default:
		logrus.SetOutput(io.MultiWriter(writers...))
	}

	return closer, nil
}

// TUIFile is the log file used by the terminal UI when none is
// configured, since the UI owns the terminal.
func TUIFile() string {
	return filepath.Join(config.Dir(), "calibscope-tui.log")
}
