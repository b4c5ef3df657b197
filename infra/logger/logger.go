package logger

import (
	"os"
	"strings"

	corelogger "github.com/kilianp07/trafficgrid/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns a Logger for the given component. LOG_BACKEND selects the
// implementation (zerolog by default, logrus on request) and APP_ENV=dev
// switches to human readable output.
func New(component string) Logger {
	switch strings.ToLower(os.Getenv("LOG_BACKEND")) {
	case "logrus":
		return NewLogrusLogger(component)
	default:
		return NewZerologLogger(component)
	}
}

func devMode() bool { return strings.ToLower(os.Getenv("APP_ENV")) == "dev" }

func levelFromEnv() string {
	lvl := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if lvl == "" {
		return "info"
	}
	return lvl
}
