package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/models"
)

// SeverityField carries the framework severities that have no logrus level.
const SeverityField = "severity"

const (
	SeverityShot          = "SHOT"
	SeverityStatus        = "STATUS"
	SeverityDocumentation = "DOCUMENTATION"
)

// Level maps a LogVerbosity (1-5) to a logrus level.
func Level(verbosity int) logrus.Level {
	switch verbosity {
	case 5:
		return logrus.DebugLevel
	case 4:
		return logrus.InfoLevel
	case 3:
		return logrus.WarnLevel
	case 2, 1:
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds a JSON logrus logger from cfg. Output goes to the configured log
// file (appended to unless LogFileMode is "w") and also to stdout when LogStream is
// set. With no file configured it logs to stderr. The returned closer releases the
// file.
func NewLogger(cfg models.LoggingConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(Level(cfg.LogVerbosity))

	path := cfg.LogFilename
	if path != "" && cfg.LogPath != "" && !filepath.IsAbs(path) {
		path = filepath.Join(cfg.LogPath, path)
	}
	if path == "" {
		logger.SetOutput(os.Stderr)
		if cfg.LogStream {
			logger.SetOutput(os.Stdout)
		}
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if cfg.LogFileMode == "w" {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	var out io.Writer = f
	if cfg.LogStream {
		out = io.MultiWriter(f, os.Stdout)
	}
	logger.SetOutput(out)
	if cfg.LogName != "" {
		logger.AddHook(nameHook(cfg.LogName))
	}
	return logger, f, nil
}

type nameHook string

func (h nameHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h nameHook) Fire(e *logrus.Entry) error {
	e.Data["log_name"] = string(h)
	return nil
}

// Shot records a screenshot taken for a step.
func Shot(l *logrus.Logger, path string) {
	l.WithField(SeverityField, SeverityShot).Info(path)
}

// Status records the final status of a case. It is written whatever the verbosity.
func Status(l *logrus.Logger, msg string) {
	l.WithField(SeverityField, SeverityStatus).Log(alwaysLevel(l), msg)
}

// Documentation records a documentation step. It is written whatever the verbosity.
func Documentation(l *logrus.Logger, msg string) {
	l.WithField(SeverityField, SeverityDocumentation).Log(alwaysLevel(l), msg)
}

func alwaysLevel(l *logrus.Logger) logrus.Level {
	if l.IsLevelEnabled(logrus.InfoLevel) {
		return logrus.InfoLevel
	}
	return l.GetLevel()
}
