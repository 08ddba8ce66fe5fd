// Package logging provides per-component structured loggers for acsbot.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// EnvVarLogLevel overrides the configured log level.
const EnvVarLogLevel = "ACSBOT_LOG_LEVEL"

// Config controls logger construction.
type Config struct {
	// Level is a logrus level name ("debug", "info", ...).
	Level string `toml:"level"`

	// Format is "text" (default) or "json".
	Format string `toml:"format"`
}

var (
	base     = logrus.New()
	loggers  = make(map[string]*logrus.Entry)
	loggerMu sync.Mutex
)

func init() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Configure applies cfg to the shared logger. Components created before or
// after the call share the same underlying logger.
func Configure(cfg Config) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	levelStr := "info"
	if env := os.Getenv(EnvVarLogLevel); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		base.Warnf("Unknown log level %q, using info", levelStr)
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetOutput redirects all component loggers. The console transport uses it
// to keep log lines out of the terminal UI.
func SetOutput(w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	base.SetOutput(w)
}

// NewLogger returns the logger for a component, creating it on first use.
func NewLogger(component string) *logrus.Entry {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logger, ok := loggers[component]; ok {
		return logger
	}
	logger := base.WithField("component", component)
	loggers[component] = logger
	return logger
}
